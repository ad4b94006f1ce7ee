package audio

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// medianHalfWindow is the half-width, in hops, of the local window
	// used by the adaptive onset threshold (~half a second per side).
	medianHalfWindow = 20
	// onsetThresholdScale is the multiplier applied to the local median
	// flux before a hop qualifies as an onset candidate.
	onsetThresholdScale = 1.6
	// minOnsetGap coalesces candidates closer than this many seconds;
	// the earlier one wins.
	minOnsetGap = 0.15

	// Tempo search range in BPM.
	minTempoBPM = 60.0
	maxTempoBPM = 200.0
	// tempoConfidence is the fraction of the zero-lag energy the best
	// autocorrelation lag must exceed for a tempo to be reported.
	tempoConfidence = 0.3
)

// detectOnsets finds percussive onsets in the per-hop flux series using
// an adaptive median threshold, then coalesces candidates that fall
// within minOnsetGap of each other. Returned times are in seconds.
func detectOnsets(flux []float64, sampleRate int) []float64 {
	hopDur := float64(HopSize) / float64(sampleRate)

	scratch := make([]float64, 0, 2*medianHalfWindow+1)
	var onsets []float64

	for i := range flux {
		lo := i - medianHalfWindow
		if lo < 0 {
			lo = 0
		}
		hi := i + medianHalfWindow + 1
		if hi > len(flux) {
			hi = len(flux)
		}

		scratch = scratch[:0]
		scratch = append(scratch, flux[lo:hi]...)
		sort.Float64s(scratch)
		threshold := stat.Quantile(0.5, stat.Empirical, scratch, nil) * onsetThresholdScale

		if flux[i] > threshold && flux[i] > 0 {
			t := float64(i) * hopDur
			if len(onsets) > 0 && t-onsets[len(onsets)-1] < minOnsetGap {
				continue
			}
			onsets = append(onsets, t)
		}
	}

	return onsets
}

// estimateTempo derives a BPM estimate from the onset list by
// autocorrelating a binary onset impulse train sampled at the hop rate.
// The lag range spans minTempoBPM..maxTempoBPM; the best lag wins.
// Returns 0 when no lag's correlation exceeds tempoConfidence of the
// zero-lag energy.
func estimateTempo(onsets []float64, hopCount int, sampleRate int) float64 {
	if len(onsets) < 2 || hopCount < 2 {
		return 0
	}

	hopDur := float64(HopSize) / float64(sampleRate)

	// Binary impulse train at hop resolution.
	train := make([]float64, hopCount)
	for _, t := range onsets {
		h := int(math.Round(t / hopDur))
		if h >= 0 && h < hopCount {
			train[h] = 1
		}
	}

	var zeroLag float64
	for _, v := range train {
		zeroLag += v * v
	}
	if zeroLag == 0 {
		return 0
	}

	minLag := int(math.Floor(60.0 / maxTempoBPM / hopDur))
	maxLag := int(math.Ceil(60.0 / minTempoBPM / hopDur))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= hopCount {
		maxLag = hopCount - 1
	}
	if maxLag < minLag {
		return 0
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var corr float64
		for i := 0; i < len(train)-lag; i++ {
			corr += train[i] * train[i+lag]
		}
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestLag == 0 || bestCorr <= tempoConfidence*zeroLag {
		return 0
	}

	bpm := 60.0 / (float64(bestLag) * hopDur)
	if bpm < minTempoBPM {
		bpm = minTempoBPM
	}
	if bpm > maxTempoBPM {
		bpm = maxTempoBPM
	}
	return bpm
}
