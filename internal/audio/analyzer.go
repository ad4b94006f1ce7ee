// Package audio decodes audio files to mono PCM and extracts the
// per-frame feature stream that drives the shader uniforms.
package audio

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// WindowSize is the FFT window length in samples.
	WindowSize = 2048
	// HopSize is the stride between successive analysis windows.
	HopSize = 1024
	// SpectrumSize is the length of the one-sided magnitude spectrum.
	SpectrumSize = WindowSize/2 + 1
	// WaveformPoints is the fixed length of the decimated waveform.
	WaveformPoints = 512
	// NumBands is the number of aggregated frequency bands.
	NumBands = 7

	// DefaultSmoothing is the bidirectional EMA factor used when the
	// caller does not override it.
	DefaultSmoothing = 0.85
)

// bandEdges are the [low, high) boundaries in Hz of the seven bands:
// sub_bass, bass, low_mid, mid, upper_mid, presence, brilliance.
var bandEdges = [NumBands][2]float64{
	{20, 60},
	{60, 250},
	{250, 500},
	{500, 2000},
	{2000, 4000},
	{4000, 6000},
	{6000, 20000},
}

// BandNames are the band labels in bandEdges order.
var BandNames = [NumBands]string{
	"sub_bass", "bass", "low_mid", "mid", "upper_mid", "presence", "brilliance",
}

// FrameFeatures holds the spectral features of one analysis hop.
type FrameFeatures struct {
	RMS              float64
	SpectralCentroid float64
	SpectralFlux     float64
	Bands            [NumBands]float64
	PeakAmplitude    float64

	// Spectrum is the one-sided magnitude spectrum, retained so the
	// renderer can upload it to the FFT storage buffer.
	Spectrum []float32
	// Waveform is the windowed hop decimated to WaveformPoints samples.
	Waveform []float32
}

// GlobalAnalysis holds the stream-wide statistics used for normalization
// and beat synthesis.
type GlobalAnalysis struct {
	PeakRMS       float64
	PeakAmplitude float64
	PeakFlux      float64
	PeakBands     [NumBands]float64

	// Onsets are detected onset times in seconds, ascending.
	Onsets []float64
	// TempoBPM is the estimated tempo in [60, 200], or 0 when no
	// confident estimate exists.
	TempoBPM float64
}

// SmoothedFrame is one record of the per-video-frame feature stream.
// All scalar fields except Time and FrameIndex are normalized to [0, 1].
type SmoothedFrame struct {
	Time       float64
	FrameIndex uint32

	Bands            [NumBands]float64
	RMS              float64
	SpectralCentroid float64
	SpectralFlux     float64

	BeatIntensity float64
	BeatPhase     float64
	IsBeat        bool
}

// Params configures an analysis run.
type Params struct {
	FPS       int
	Smoothing float64
}

// Result is the complete output of Analyze.
type Result struct {
	SampleRate int
	Duration   float64 // seconds

	Global GlobalAnalysis
	Hops   []FrameFeatures
	Frames []SmoothedFrame
}

// AnalysisError reports impossible analysis parameters.
type AnalysisError struct {
	Msg string
}

func (e *AnalysisError) Error() string {
	return "analysis: " + e.Msg
}

// Analyze runs the three analysis passes over a mono PCM stream and
// returns the per-hop features, global statistics, and the smoothed
// per-video-frame stream. The output is a pure function of the inputs:
// identical PCM, fps and smoothing produce byte-identical results
// regardless of worker count.
func Analyze(ctx context.Context, pcm []float32, sampleRate int, p Params) (*Result, error) {
	if p.FPS <= 0 {
		return nil, &AnalysisError{Msg: fmt.Sprintf("fps must be positive, got %d", p.FPS)}
	}
	if p.Smoothing < 0 || p.Smoothing > 1 {
		return nil, &AnalysisError{Msg: fmt.Sprintf("smoothing must be in [0, 1], got %g", p.Smoothing)}
	}
	if sampleRate <= 0 {
		return nil, &AnalysisError{Msg: fmt.Sprintf("sample rate must be positive, got %d", sampleRate)}
	}
	if len(pcm) == 0 {
		return nil, &AnalysisError{Msg: "empty PCM stream"}
	}

	duration := float64(len(pcm)) / float64(sampleRate)

	hops, err := computeHopFeatures(ctx, pcm, sampleRate)
	if err != nil {
		return nil, err
	}

	global := computeGlobalAnalysis(pcm, hops, sampleRate)

	frames := smoothAndNormalize(hops, &global, sampleRate, duration, p)

	return &Result{
		SampleRate: sampleRate,
		Duration:   duration,
		Global:     global,
		Hops:       hops,
		Frames:     frames,
	}, nil
}

// numHops returns the hop count for a stream length: one hop per started
// HopSize stride, with the tail window zero-padded.
func numHops(samples int) int {
	return (samples + HopSize - 1) / HopSize
}

// computeHopFeatures runs Pass 2: the data-parallel per-hop spectral
// analysis. Each worker owns its own FFT plan and scratch buffers and
// writes only its own hop indices, so the output is deterministic for
// any worker count. Spectral flux needs the previous hop's magnitudes
// and is resolved in a serial reduction afterward.
func computeHopFeatures(ctx context.Context, pcm []float32, sampleRate int) ([]FrameFeatures, error) {
	n := numHops(len(pcm))
	hops := make([]FrameFeatures, n)

	window := hannWindow(WindowSize)

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			fft := fourier.NewFFT(WindowSize)
			windowed := make([]float64, WindowSize)
			for h := w; h < n; h += workers {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				analyzeHop(h, pcm, window, windowed, fft, sampleRate, &hops[h])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Serial flux reduction: the only cross-hop dependency.
	prev := make([]float64, SpectrumSize)
	cur := make([]float64, SpectrumSize)
	for h := range hops {
		for i, m := range hops[h].Spectrum {
			cur[i] = float64(m)
		}
		var flux float64
		for i := range cur {
			diff := cur[i] - prev[i]
			if diff > 0 {
				flux += diff * diff
			}
		}
		hops[h].SpectralFlux = math.Sqrt(flux)
		prev, cur = cur, prev
	}

	return hops, nil
}

// analyzeHop fills out one hop's features. windowed is caller-owned
// scratch of WindowSize samples.
func analyzeHop(h int, pcm []float32, window, windowed []float64, fft *fourier.FFT, sampleRate int, out *FrameFeatures) {
	start := h * HopSize

	// Window the hop, zero-padding past the end of the stream.
	var peak, sumSq float64
	for i := 0; i < WindowSize; i++ {
		var s float64
		if start+i < len(pcm) {
			s = float64(pcm[start+i])
		}
		if a := math.Abs(s); a > peak {
			peak = a
		}
		sumSq += s * s
		windowed[i] = s * window[i]
	}
	out.PeakAmplitude = peak
	out.RMS = math.Sqrt(sumSq / WindowSize)

	coeffs := fft.Coefficients(nil, windowed)

	out.Spectrum = make([]float32, SpectrumSize)
	freqPerBin := float64(sampleRate) / WindowSize

	var weightedSum, magSum float64
	var bandSums [NumBands]float64
	var bandCounts [NumBands]int
	for i := 0; i < SpectrumSize && i < len(coeffs); i++ {
		mag := math.Hypot(real(coeffs[i]), imag(coeffs[i]))
		out.Spectrum[i] = float32(mag)

		freq := float64(i) * freqPerBin
		weightedSum += freq * mag
		magSum += mag

		for b := 0; b < NumBands; b++ {
			if freq >= bandEdges[b][0] && freq < bandEdges[b][1] {
				bandSums[b] += mag
				bandCounts[b]++
				break
			}
		}
	}

	if magSum > 0 {
		out.SpectralCentroid = weightedSum / magSum
	}
	for b := 0; b < NumBands; b++ {
		if bandCounts[b] > 0 {
			out.Bands[b] = bandSums[b] / float64(bandCounts[b])
		}
	}

	// Decimate the windowed samples to a fixed-length waveform by
	// averaging contiguous sub-ranges.
	out.Waveform = make([]float32, WaveformPoints)
	step := WindowSize / WaveformPoints
	for i := 0; i < WaveformPoints; i++ {
		var sum float64
		for j := i * step; j < (i+1)*step; j++ {
			sum += windowed[j]
		}
		out.Waveform[i] = float32(sum / float64(step))
	}
}

// computeGlobalAnalysis runs Pass 1's aggregation over the hop features:
// stream peaks, onset detection and tempo estimation.
func computeGlobalAnalysis(pcm []float32, hops []FrameFeatures, sampleRate int) GlobalAnalysis {
	var g GlobalAnalysis

	for i := range pcm {
		if a := math.Abs(float64(pcm[i])); a > g.PeakAmplitude {
			g.PeakAmplitude = a
		}
	}

	flux := make([]float64, len(hops))
	for h := range hops {
		flux[h] = hops[h].SpectralFlux
		if hops[h].RMS > g.PeakRMS {
			g.PeakRMS = hops[h].RMS
		}
		if hops[h].SpectralFlux > g.PeakFlux {
			g.PeakFlux = hops[h].SpectralFlux
		}
		for b := 0; b < NumBands; b++ {
			if hops[h].Bands[b] > g.PeakBands[b] {
				g.PeakBands[b] = hops[h].Bands[b]
			}
		}
	}

	g.Onsets = detectOnsets(flux, sampleRate)
	g.TempoBPM = estimateTempo(g.Onsets, len(hops), sampleRate)

	return g
}

// hannWindow builds a Hann window of the given length.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}
