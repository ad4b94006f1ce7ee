package audio

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, amp float64, sampleRate int, seconds float64) []float32 {
	n := int(float64(sampleRate) * seconds)
	pcm := make([]float32, n)
	for i := range pcm {
		pcm[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return pcm
}

// clickTrain builds short full-scale bursts at the given interval over
// digital silence.
func clickTrain(intervalSec float64, sampleRate int, seconds float64) []float32 {
	n := int(float64(sampleRate) * seconds)
	pcm := make([]float32, n)
	step := int(intervalSec * float64(sampleRate))
	for start := 0; start < n; start += step {
		for i := 0; i < 16 && start+i < n; i++ {
			if i%2 == 0 {
				pcm[start+i] = 1
			} else {
				pcm[start+i] = -1
			}
		}
	}
	return pcm
}

// noise produces deterministic pseudo-random samples from a fixed LCG
// seed so tests stay reproducible.
func noise(sampleRate int, seconds float64) []float32 {
	n := int(float64(sampleRate) * seconds)
	pcm := make([]float32, n)
	state := uint64(0x9e3779b97f4a7c15)
	for i := range pcm {
		state = state*6364136223846793005 + 1442695040888963407
		pcm[i] = float32(int32(uint32(state>>32))) / float32(1<<31) * 0.8
	}
	return pcm
}

func TestAnalyzeSilence(t *testing.T) {
	pcm := make([]float32, 44100) // 1 s of zeros
	res, err := Analyze(context.Background(), pcm, 44100, Params{FPS: 30, Smoothing: DefaultSmoothing})
	require.NoError(t, err)

	require.Len(t, res.Frames, 30)
	assert.Empty(t, res.Global.Onsets)
	assert.Zero(t, res.Global.TempoBPM)

	for _, f := range res.Frames {
		assert.Zero(t, f.RMS)
		assert.Zero(t, f.SpectralCentroid)
		assert.Zero(t, f.SpectralFlux)
		assert.Zero(t, f.BeatIntensity)
		assert.False(t, f.IsBeat)
		for b := 0; b < NumBands; b++ {
			assert.Zero(t, f.Bands[b])
		}
	}
}

func TestAnalyzeSine440(t *testing.T) {
	const sr = 44100
	pcm := sine(440, 1.0, sr, 2)
	res, err := Analyze(context.Background(), pcm, sr, Params{FPS: 30, Smoothing: DefaultSmoothing})
	require.NoError(t, err)
	require.Len(t, res.Frames, 60)

	want := 440.0 / (float64(sr) / 2)
	for _, f := range res.Frames {
		assert.InDelta(t, want, f.SpectralCentroid, 0.03,
			"frame %d centroid %f", f.FrameIndex, f.SpectralCentroid)
	}

	// 440 Hz sits in low_mid (250-500 Hz); that band must dominate the
	// seven, and the aggregated mid range must beat bass and high.
	for _, f := range res.Frames {
		maxBand := 0
		for b := 1; b < NumBands; b++ {
			if f.Bands[b] > f.Bands[maxBand] {
				maxBand = b
			}
		}
		assert.Equal(t, 2, maxBand, "frame %d", f.FrameIndex)

		bass := (f.Bands[0] + f.Bands[1]) / 2
		mid := (f.Bands[2] + f.Bands[3] + f.Bands[4]) / 3
		high := (f.Bands[5] + f.Bands[6]) / 2
		assert.Greater(t, mid, bass, "frame %d", f.FrameIndex)
		assert.Greater(t, mid, high, "frame %d", f.FrameIndex)
	}
}

func TestAnalyzeClickTrainTempo(t *testing.T) {
	const sr = 44100
	pcm := clickTrain(1.0, sr, 5)
	res, err := Analyze(context.Background(), pcm, sr, Params{FPS: 60, Smoothing: DefaultSmoothing})
	require.NoError(t, err)

	require.Len(t, res.Global.Onsets, 5)
	assert.InDelta(t, 60.0, res.Global.TempoBPM, 2.0)

	beatCount := 0
	for _, f := range res.Frames {
		if f.IsBeat {
			beatCount++
			// Intensity peaks on the beat frame.
			assert.Greater(t, f.BeatIntensity, 0.8, "frame %d", f.FrameIndex)
		}
	}
	assert.Equal(t, 5, beatCount)

	// Intensity decays between beats.
	half := res.Frames[30] // 0.5 s after the first onset
	assert.Less(t, half.BeatIntensity, 0.1)
}

func TestAnalyzeRanges(t *testing.T) {
	res, err := Analyze(context.Background(), noise(22050, 2), 22050, Params{FPS: 24, Smoothing: DefaultSmoothing})
	require.NoError(t, err)

	for _, f := range res.Frames {
		inUnit := func(v float64, name string) {
			assert.GreaterOrEqual(t, v, 0.0, "%s frame %d", name, f.FrameIndex)
			assert.LessOrEqual(t, v, 1.0, "%s frame %d", name, f.FrameIndex)
		}
		inUnit(f.RMS, "rms")
		inUnit(f.SpectralCentroid, "centroid")
		inUnit(f.SpectralFlux, "flux")
		inUnit(f.BeatIntensity, "beat_intensity")
		assert.GreaterOrEqual(t, f.BeatPhase, 0.0)
		assert.Less(t, f.BeatPhase, 1.0)
		for b := 0; b < NumBands; b++ {
			inUnit(f.Bands[b], BandNames[b])
		}
	}
}

func TestAnalyzeDeterminism(t *testing.T) {
	pcm := noise(44100, 1.5)
	a, err := Analyze(context.Background(), pcm, 44100, Params{FPS: 30, Smoothing: DefaultSmoothing})
	require.NoError(t, err)
	b, err := Analyze(context.Background(), pcm, 44100, Params{FPS: 30, Smoothing: DefaultSmoothing})
	require.NoError(t, err)

	if !reflect.DeepEqual(a.Frames, b.Frames) {
		t.Fatal("repeated analysis produced differing frame streams")
	}
	if !reflect.DeepEqual(a.Hops, b.Hops) {
		t.Fatal("repeated analysis produced differing hop features")
	}
}

func TestAnalyzeParamValidation(t *testing.T) {
	pcm := make([]float32, 1024)
	var analysisErr *AnalysisError

	_, err := Analyze(context.Background(), pcm, 44100, Params{FPS: 0, Smoothing: 0.5})
	require.ErrorAs(t, err, &analysisErr)

	_, err = Analyze(context.Background(), pcm, 44100, Params{FPS: 30, Smoothing: 1.5})
	require.ErrorAs(t, err, &analysisErr)

	_, err = Analyze(context.Background(), nil, 44100, Params{FPS: 30, Smoothing: 0.5})
	require.ErrorAs(t, err, &analysisErr)
}

func TestFrameCountRounding(t *testing.T) {
	// 1.5 s at 30 fps rounds to 45 frames.
	pcm := make([]float32, 66150)
	res, err := Analyze(context.Background(), pcm, 44100, Params{FPS: 30, Smoothing: 0})
	require.NoError(t, err)
	assert.Len(t, res.Frames, 45)
}

func TestBidirectionalEMAZeroPhase(t *testing.T) {
	// The impulse response of the forward+backward pass must be
	// symmetric about its centroid.
	series := make([]float64, 201)
	series[100] = 1
	bidirectionalEMA(series, 0.85)

	for i := 1; i <= 100; i++ {
		assert.InDelta(t, series[100-i], series[100+i], 1e-6, "offset %d", i)
	}

	// And the peak stays where the impulse was.
	peak := 0
	for i := range series {
		if series[i] > series[peak] {
			peak = i
		}
	}
	assert.Equal(t, 100, peak)
}
