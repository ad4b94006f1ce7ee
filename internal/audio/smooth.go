package audio

import (
	"math"
	"sort"
)

// beatDecayTau is the time constant, in seconds, of the exponential
// beat-intensity decay after an onset.
const beatDecayTau = 0.15

// smoothAndNormalize runs Pass 3: resample the hop features to the video
// frame rate, smooth every scalar series with a zero-phase bidirectional
// EMA, normalize by the global peaks, and synthesize the beat fields.
func smoothAndNormalize(hops []FrameFeatures, g *GlobalAnalysis, sampleRate int, duration float64, p Params) []SmoothedFrame {
	numFrames := int(math.Round(duration * float64(p.FPS)))
	if numFrames < 1 {
		numFrames = 1
	}

	hopDur := float64(HopSize) / float64(sampleRate)

	// Resample each scalar series from hop time to frame time.
	sample := func(get func(*FrameFeatures) float64) []float64 {
		series := make([]float64, len(hops))
		for h := range hops {
			series[h] = get(&hops[h])
		}
		out := make([]float64, numFrames)
		for k := range out {
			out[k] = lerpSeries(series, float64(k)/float64(p.FPS)/hopDur)
		}
		return out
	}

	rms := sample(func(f *FrameFeatures) float64 { return f.RMS })
	centroid := sample(func(f *FrameFeatures) float64 { return f.SpectralCentroid })
	flux := sample(func(f *FrameFeatures) float64 { return f.SpectralFlux })
	var bands [NumBands][]float64
	for b := 0; b < NumBands; b++ {
		bands[b] = sample(func(f *FrameFeatures) float64 { return f.Bands[b] })
	}

	bidirectionalEMA(rms, p.Smoothing)
	bidirectionalEMA(centroid, p.Smoothing)
	bidirectionalEMA(flux, p.Smoothing)
	for b := 0; b < NumBands; b++ {
		bidirectionalEMA(bands[b], p.Smoothing)
	}

	// Normalization divisors. The centroid normalizes by Nyquist so the
	// result is a fraction of the representable frequency range; the
	// rest divide by their global peaks.
	nyquist := float64(sampleRate) / 2

	beatFrames := onsetFrames(g.Onsets, p.FPS, numFrames)

	frames := make([]SmoothedFrame, numFrames)
	for k := range frames {
		t := float64(k) / float64(p.FPS)
		f := &frames[k]
		f.Time = t
		f.FrameIndex = uint32(k)

		f.RMS = normalize(rms[k], g.PeakRMS)
		f.SpectralCentroid = normalize(centroid[k], nyquist)
		f.SpectralFlux = normalize(flux[k], g.PeakFlux)
		for b := 0; b < NumBands; b++ {
			f.Bands[b] = normalize(bands[b][k], g.PeakBands[b])
		}

		f.BeatIntensity = beatIntensityAt(g.Onsets, t, 1/float64(p.FPS))
		f.BeatPhase = beatPhaseAt(g.Onsets, g.TempoBPM, t)
		f.IsBeat = beatFrames[k]
	}

	return frames
}

// lerpSeries linearly interpolates a series at fractional index pos,
// clamping at both ends.
func lerpSeries(series []float64, pos float64) float64 {
	if len(series) == 0 {
		return 0
	}
	if pos <= 0 {
		return series[0]
	}
	i := int(pos)
	if i >= len(series)-1 {
		return series[len(series)-1]
	}
	frac := pos - float64(i)
	return series[i]*(1-frac) + series[i+1]*frac
}

// bidirectionalEMA smooths a series in place with a forward then a
// backward exponential moving average, yielding zero phase delay.
func bidirectionalEMA(series []float64, lambda float64) {
	if len(series) == 0 || lambda == 0 {
		return
	}
	prev := series[0]
	for i := 1; i < len(series); i++ {
		series[i] = lambda*prev + (1-lambda)*series[i]
		prev = series[i]
	}
	prev = series[len(series)-1]
	for i := len(series) - 2; i >= 0; i-- {
		series[i] = lambda*prev + (1-lambda)*series[i]
		prev = series[i]
	}
}

// normalize divides by the peak and clamps to [0, 1]. A zero peak maps
// to zero.
func normalize(v, peak float64) float64 {
	if peak <= 0 {
		return 0
	}
	n := v / peak
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// onsetFrames marks, for each video frame, whether it is the single
// frame containing an onset.
func onsetFrames(onsets []float64, fps, numFrames int) []bool {
	marks := make([]bool, numFrames)
	for _, t := range onsets {
		k := int(t * float64(fps))
		if k >= 0 && k < numFrames {
			marks[k] = true
		}
	}
	return marks
}

// beatIntensityAt returns 1.0 on the frame containing an onset,
// decaying exponentially with time constant beatDecayTau until the next
// onset. Zero before the first onset. An onset landing anywhere inside
// the frame's [t, t+frameDur) interval counts as this frame's peak.
func beatIntensityAt(onsets []float64, t, frameDur float64) float64 {
	i := lastOnsetBefore(onsets, t+frameDur)
	if i < 0 {
		return 0
	}
	elapsed := t - onsets[i]
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Exp(-elapsed / beatDecayTau)
}

// beatPhaseAt returns the [0, 1) ramp from the previous onset to the
// next. Past the final onset the ramp period falls back to the tempo
// period when a tempo is known, and to zero otherwise.
func beatPhaseAt(onsets []float64, tempoBPM, t float64) float64 {
	i := lastOnsetBefore(onsets, t)
	if i < 0 {
		return 0
	}
	if i+1 < len(onsets) {
		span := onsets[i+1] - onsets[i]
		if span <= 0 {
			return 0
		}
		return (t - onsets[i]) / span
	}
	if tempoBPM <= 0 {
		return 0
	}
	period := 60.0 / tempoBPM
	return math.Mod((t-onsets[i])/period, 1.0)
}

// lastOnsetBefore returns the index of the latest onset at or before t,
// or -1.
func lastOnsetBefore(onsets []float64, t float64) int {
	return sort.SearchFloat64s(onsets, t+1e-9) - 1
}
