package gpu

import (
	"github.com/rath/sonica/internal/audio"
)

// UniformFloats is the number of f32 fields in FrameUniforms; the
// buffer is exactly UniformFloats * 4 = 64 bytes.
const UniformFloats = 16

// packUniforms lays out one frame's FrameUniforms record. The field
// order is the shader contract and must match the WGSL struct in the
// prelude: (res_x, res_y, time, frame, fps, duration, rms, centroid,
// flux, beat_intensity, beat_phase, is_beat, bass, mid, high, pad).
func packUniforms(f *audio.SmoothedFrame, width, height, fps int, duration float64) [UniformFloats]float32 {
	isBeat := float32(0)
	if f.IsBeat {
		isBeat = 1
	}

	// The seven analysis bands fold into the uniform's three: lows,
	// mids and highs are the means of their member bands.
	bass := float32((f.Bands[0] + f.Bands[1]) / 2)
	mid := float32((f.Bands[2] + f.Bands[3] + f.Bands[4]) / 3)
	high := float32((f.Bands[5] + f.Bands[6]) / 2)

	return [UniformFloats]float32{
		float32(width),
		float32(height),
		float32(f.Time),
		float32(f.FrameIndex),
		float32(fps),
		float32(duration),
		float32(f.RMS),
		float32(f.SpectralCentroid),
		float32(f.SpectralFlux),
		float32(f.BeatIntensity),
		float32(f.BeatPhase),
		isBeat,
		bass,
		mid,
		high,
		0,
	}
}

// alignUp rounds n up to the next multiple of align.
func alignUp(n, align int) int {
	return (n + align - 1) / align * align
}

// stripRowPadding copies the meaningful width*4 bytes of each row out
// of a readback buffer whose rows are padded to paddedRowBytes, per the
// copy API's 256-byte row alignment.
func stripRowPadding(padded []byte, width, height, paddedRowBytes int) []byte {
	rowBytes := width * 4
	out := make([]byte, rowBytes*height)
	for y := 0; y < height; y++ {
		copy(out[y*rowBytes:(y+1)*rowBytes], padded[y*paddedRowBytes:y*paddedRowBytes+rowBytes])
	}
	return out
}
