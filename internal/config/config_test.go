package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sonica.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndApply(t *testing.T) {
	path := writeConfig(t, `
effects = ["bloom", "vignette"]

[output]
width = 1280
height = 720
fps = 30

[audio]
smoothing = 0.5
`)

	f, err := Load(path, false)
	require.NoError(t, err)

	s := Default()
	s.Apply(f)

	assert.Equal(t, 1280, s.Width)
	assert.Equal(t, 720, s.Height)
	assert.Equal(t, 30, s.FPS)
	assert.Equal(t, 0.5, s.Smoothing)
	assert.Equal(t, []string{"bloom", "vignette"}, s.Effects)

	// Unset fields keep their defaults.
	assert.Equal(t, 18, s.CRF)
	assert.Equal(t, "libx264", s.Codec)
	assert.Equal(t, "yuv420p", s.PixFmt)
}

func TestLoadPartialSections(t *testing.T) {
	path := writeConfig(t, `
[output]
crf = 23
`)

	f, err := Load(path, false)
	require.NoError(t, err)

	s := Default()
	s.Apply(f)
	assert.Equal(t, 23, s.CRF)
	assert.Equal(t, 1920, s.Width)
	assert.Nil(t, s.Effects)
}

func TestLoadMissingOptional(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "absent.toml"), true)
	require.NoError(t, err)

	s := Default()
	s.Apply(f)
	assert.Equal(t, Default(), s)
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"), false)
	require.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "not [valid toml")
	_, err := Load(path, false)
	require.Error(t, err)
}
