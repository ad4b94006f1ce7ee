package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rath/sonica/internal/audio"
)

func TestAlignUp(t *testing.T) {
	assert.Equal(t, 256, alignUp(4, 256))
	assert.Equal(t, 256, alignUp(256, 256))
	assert.Equal(t, 512, alignUp(257, 256))
	assert.Equal(t, 7680, alignUp(1920*4, 256))
}

func TestStripRowPadding(t *testing.T) {
	for _, width := range []int{1, 2, 63, 64, 65, 1280, 1920, 3840} {
		height := 3
		rowBytes := width * 4
		padded := alignUp(rowBytes, rowAlignment)

		// Rows hold a per-row marker byte; padding holds 0xEE, which
		// must never survive the strip.
		buf := make([]byte, padded*height)
		for y := 0; y < height; y++ {
			for x := 0; x < padded; x++ {
				if x < rowBytes {
					buf[y*padded+x] = byte(y + 1)
				} else {
					buf[y*padded+x] = 0xEE
				}
			}
		}

		out := stripRowPadding(buf, width, height, padded)
		require.Len(t, out, rowBytes*height, "width %d", width)
		for y := 0; y < height; y++ {
			for x := 0; x < rowBytes; x++ {
				require.Equal(t, byte(y+1), out[y*rowBytes+x], "width %d row %d col %d", width, y, x)
			}
		}
	}
}

func TestPackUniformsLayout(t *testing.T) {
	frame := &audio.SmoothedFrame{
		Time:             1.5,
		FrameIndex:       45,
		RMS:              0.5,
		SpectralCentroid: 0.25,
		SpectralFlux:     0.125,
		BeatIntensity:    1,
		BeatPhase:        0.75,
		IsBeat:           true,
	}
	for b := 0; b < audio.NumBands; b++ {
		frame.Bands[b] = float64(b) / 10
	}

	u := packUniforms(frame, 1920, 1080, 30, 10)
	require.Len(t, u[:], 16)

	assert.Equal(t, float32(1920), u[0])
	assert.Equal(t, float32(1080), u[1])
	assert.Equal(t, float32(1.5), u[2])
	assert.Equal(t, float32(45), u[3])
	assert.Equal(t, float32(30), u[4])
	assert.Equal(t, float32(10), u[5])
	assert.Equal(t, float32(0.5), u[6])
	assert.Equal(t, float32(0.25), u[7])
	assert.Equal(t, float32(0.125), u[8])
	assert.Equal(t, float32(1), u[9])
	assert.Equal(t, float32(0.75), u[10])
	assert.Equal(t, float32(1), u[11])
	assert.InDelta(t, (0.0+0.1)/2, float64(u[12]), 1e-6)
	assert.InDelta(t, (0.2+0.3+0.4)/3, float64(u[13]), 1e-6)
	assert.InDelta(t, (0.5+0.6)/2, float64(u[14]), 1e-6)
	assert.Equal(t, float32(0), u[15])
}

func TestExpandEffectsCRT(t *testing.T) {
	effects, err := ExpandEffects([]string{"crt"})
	require.NoError(t, err)

	names := make([]string, len(effects))
	for i, e := range effects {
		names[i] = e.Name
	}
	assert.Equal(t, []string{
		"crt_scanlines", "chromatic_aberration", "vignette", "film_grain", "color_grading",
	}, names)
}

func TestExpandEffectsUnknown(t *testing.T) {
	_, err := ExpandEffects([]string{"sparkle"})
	var unknownErr *UnknownEffectError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "sparkle", unknownErr.Name)
}

func TestExpandEffectsIntensity(t *testing.T) {
	effects, err := ExpandEffects([]string{"bloom:0.5", "vignette"})
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.Equal(t, float32(0.5), effects[0].Intensity)
	assert.Equal(t, float32(1), effects[1].Intensity)
}

func TestEffectSourcesComplete(t *testing.T) {
	for _, name := range effectOrder {
		src, ok := effectSources[name]
		require.True(t, ok, name)
		assert.Contains(t, src, "fs_main", name)
	}
	// The crt preset only names real effects.
	for _, name := range crtPreset {
		_, ok := effectSources[name]
		assert.True(t, ok, name)
	}
}
