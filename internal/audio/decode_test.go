package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestWAV writes a 16-bit stereo WAV with the given interleaved
// samples and returns its path.
func writeTestWAV(t *testing.T, samples []int, sampleRate int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	err = enc.Write(&goaudio.IntBuffer{
		Data:           samples,
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: 16,
	})
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	return path
}

func TestDecodeWAVDownmix(t *testing.T) {
	// Left at +16384, right at -16384: mono downmix must cancel to 0.
	// A second frame with both at +16384 must land at 0.5.
	samples := []int{16384, -16384, 16384, 16384}
	path := writeTestWAV(t, samples, 44100)

	pcm, sr, err := Decode(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 44100, sr)
	require.Len(t, pcm, 2)
	assert.InDelta(t, 0.0, float64(pcm[0]), 1e-4)
	assert.InDelta(t, 0.5, float64(pcm[1]), 1e-4)
}

func TestDecodeMissingFile(t *testing.T) {
	_, _, err := Decode(context.Background(), "missing.wav")
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "missing.wav", decodeErr.Path)
	assert.Contains(t, err.Error(), "missing.wav")
}

func TestDecodeEmptyStream(t *testing.T) {
	path := writeTestWAV(t, nil, 44100)

	_, _, err := Decode(context.Background(), path)
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}
