package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryOrder(t *testing.T) {
	all := All()
	require.Len(t, all, 6)

	names := make([]string, len(all))
	for i, tpl := range all {
		names[i] = tpl.Name
	}
	assert.Equal(t, []string{
		"frequency_bars", "circular_spectrum", "waveform",
		"spectrogram", "particles", "kaleidoscope",
	}, names)
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("nope")
	var unknownErr *UnknownTemplateError
	require.ErrorAs(t, err, &unknownErr)
	assert.Contains(t, err.Error(), "frequency_bars")
}

func TestCompileSourceDefaults(t *testing.T) {
	tpl, err := Get("frequency_bars")
	require.NoError(t, err)

	src, err := tpl.CompileSource(nil)
	require.NoError(t, err)

	assert.NotContains(t, src, "PARAM_")
	assert.Contains(t, src, "BAR_COUNT: u32 = 64")
	assert.Contains(t, src, "MIRROR: bool = true")
}

func TestCompileSourceOverrides(t *testing.T) {
	tpl, err := Get("frequency_bars")
	require.NoError(t, err)

	src, err := tpl.CompileSource(map[string]string{
		"bar_count": "128",
		"mirror":    "false",
	})
	require.NoError(t, err)

	assert.Contains(t, src, "BAR_COUNT: u32 = 128")
	assert.Contains(t, src, "MIRROR: bool = false")
}

func TestCompileSourceUnknownKey(t *testing.T) {
	tpl, err := Get("frequency_bars")
	require.NoError(t, err)

	_, err = tpl.CompileSource(map[string]string{"foo": "1"})
	var paramErr *ParamError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "foo", paramErr.Key)
}

func TestCompileSourceRange(t *testing.T) {
	tpl, err := Get("frequency_bars")
	require.NoError(t, err)

	_, err = tpl.CompileSource(map[string]string{"bar_count": "100000"})
	var paramErr *ParamError
	require.ErrorAs(t, err, &paramErr)
}

func TestFloatLiteralsAreTyped(t *testing.T) {
	tpl, err := Get("waveform")
	require.NoError(t, err)

	src, err := tpl.CompileSource(map[string]string{"gain": "2"})
	require.NoError(t, err)
	// An f32 parameter substituted with an integer-looking value must
	// still render as a float literal.
	assert.Contains(t, src, "GAIN: f32 = 2.0")
}

func TestParseOverrides(t *testing.T) {
	m, err := ParseOverrides("bar_count=128,mirror=false")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bar_count": "128", "mirror": "false"}, m)

	_, err = ParseOverrides("oops")
	var paramErr *ParamError
	require.ErrorAs(t, err, &paramErr)

	m, err = ParseOverrides("")
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestEveryTemplateCompilesClean(t *testing.T) {
	for _, tpl := range All() {
		src, err := tpl.CompileSource(nil)
		require.NoError(t, err, tpl.Name)
		assert.False(t, strings.Contains(src, "PARAM_"), "%s left a PARAM_ token", tpl.Name)
		assert.Contains(t, src, "fs_main", tpl.Name)
	}
}
