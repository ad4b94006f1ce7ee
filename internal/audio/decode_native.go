package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"

	"github.com/go-audio/wav"
)

// decodeWAV decodes a RIFF/WAVE file with go-audio.
func decodeWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read PCM: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, fmt.Errorf("no audio samples")
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	scale := float32(int64(1) << (dec.BitDepth - 1))
	if dec.BitDepth == 0 {
		scale = 1 << 15
	}

	frames := len(buf.Data) / channels
	pcm := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(buf.Data[i*channels+ch]) / scale
		}
		pcm[i] = sum / float32(channels)
	}
	return pcm, int(dec.SampleRate), nil
}

// decodeMP3 decodes an MP3 file with go-mp3, which always emits
// 16-bit little-endian stereo.
func decodeMP3(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open MP3 stream: %w", err)
	}

	var pcm []float32
	buf := make([]byte, 16*1024)
	carry := 0
	for {
		n, readErr := dec.Read(buf[carry:])
		n += carry
		// One stereo frame is 4 bytes: two s16le samples.
		whole := n - n%4
		for i := 0; i < whole; i += 4 {
			l := int16(buf[i]) | int16(buf[i+1])<<8
			r := int16(buf[i+2]) | int16(buf[i+3])<<8
			pcm = append(pcm, (float32(l)+float32(r))/2/32768)
		}
		carry = copy(buf, buf[whole:n])
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, 0, fmt.Errorf("failed to decode MP3: %w", readErr)
		}
	}
	return pcm, dec.SampleRate(), nil
}

// decodeFLAC decodes a FLAC file with mewkiz/flac, frame by frame.
func decodeFLAC(path string) ([]float32, int, error) {
	stream, err := flac.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open FLAC stream: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	if channels < 1 {
		channels = 1
	}
	scale := float32(int64(1) << (stream.Info.BitsPerSample - 1))

	var pcm []float32
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse FLAC frame: %w", err)
		}

		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			var sum float32
			for ch := 0; ch < channels && ch < len(frame.Subframes); ch++ {
				sum += float32(frame.Subframes[ch].Samples[i]) / scale
			}
			pcm = append(pcm, sum/float32(channels))
		}
	}
	return pcm, int(stream.Info.SampleRate), nil
}
