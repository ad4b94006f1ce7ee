// Package config handles the optional sonica.toml configuration file
// and its merge with command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is probed when no --config flag is given; a missing file
// there is not an error.
const DefaultPath = "sonica.toml"

// Settings are the fully resolved output and analysis options after
// defaults, config file and CLI flags have been merged (in that order;
// CLI wins per field).
type Settings struct {
	Width     int
	Height    int
	FPS       int
	CRF       int
	Bitrate   string
	Codec     string
	PixFmt    string
	Smoothing float64

	// Effects is nil when neither config nor CLI named a chain; the
	// template's manifest defaults then apply.
	Effects []string
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Width:     1920,
		Height:    1080,
		FPS:       60,
		CRF:       18,
		Codec:     "libx264",
		PixFmt:    "yuv420p",
		Smoothing: 0.85,
	}
}

// File mirrors the TOML schema. Every field is optional; pointers
// distinguish absent from zero.
type File struct {
	Output struct {
		Width  *int    `toml:"width"`
		Height *int    `toml:"height"`
		FPS    *int    `toml:"fps"`
		CRF    *int    `toml:"crf"`
		Codec  *string `toml:"codec"`
		PixFmt *string `toml:"pix_fmt"`
	} `toml:"output"`
	Audio struct {
		Smoothing *float64 `toml:"smoothing"`
	} `toml:"audio"`
	Effects *[]string `toml:"effects"`
}

// Load parses a TOML config file. When optional is true a missing file
// yields an empty config instead of an error (the default-path probe).
func Load(path string, optional bool) (*File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && optional {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &f, nil
}

// Apply overlays the file's set fields onto the settings. Called before
// the CLI overlay so flags win.
func (s *Settings) Apply(f *File) {
	if f == nil {
		return
	}
	if f.Output.Width != nil {
		s.Width = *f.Output.Width
	}
	if f.Output.Height != nil {
		s.Height = *f.Output.Height
	}
	if f.Output.FPS != nil {
		s.FPS = *f.Output.FPS
	}
	if f.Output.CRF != nil {
		s.CRF = *f.Output.CRF
	}
	if f.Output.Codec != nil {
		s.Codec = *f.Output.Codec
	}
	if f.Output.PixFmt != nil {
		s.PixFmt = *f.Output.PixFmt
	}
	if f.Audio.Smoothing != nil {
		s.Smoothing = *f.Audio.Smoothing
	}
	if f.Effects != nil {
		s.Effects = *f.Effects
	}
}
