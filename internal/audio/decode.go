package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// DecodeError reports a container or codec problem with an input file.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode reads an audio file and returns its full stream as mono float32
// PCM in [-1, 1] plus the sample rate. WAV, MP3 and FLAC are decoded
// natively; every other container falls back to an ffmpeg child process.
// Multi-channel input is averaged to mono on the fly.
func Decode(ctx context.Context, path string) ([]float32, int, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, 0, &DecodeError{Path: path, Err: err}
	}

	var (
		pcm []float32
		sr  int
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		pcm, sr, err = decodeWAV(path)
	case ".mp3":
		pcm, sr, err = decodeMP3(path)
	case ".flac":
		pcm, sr, err = decodeFLAC(path)
	default:
		pcm, sr, err = decodeFFmpeg(ctx, path)
	}
	if err != nil {
		return nil, 0, &DecodeError{Path: path, Err: err}
	}
	if len(pcm) == 0 {
		return nil, 0, &DecodeError{Path: path, Err: fmt.Errorf("zero-length audio stream")}
	}
	return pcm, sr, nil
}

// decodeFFmpeg shells out to ffmpeg for containers without a native
// decoder, reading raw mono f32le samples from its stdout at the
// stream's own rate.
func decodeFFmpeg(ctx context.Context, path string) ([]float32, int, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, 0, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	sr, err := probeSampleRate(path)
	if err != nil {
		return nil, 0, err
	}

	args := []string{
		"-v", "error",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-ar", strconv.Itoa(sr),
		"-",
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, 0, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	// Ensure the process is killed and reaped on any exit path.
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
			cmd.Wait()
		}
	}()

	var pcm []float32
	buf := make([]byte, 64*1024)
	carry := 0
	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		n, readErr := stdout.Read(buf[carry:])
		n += carry
		whole := n - n%4
		for i := 0; i < whole; i += 4 {
			pcm = append(pcm, math.Float32frombits(binary.LittleEndian.Uint32(buf[i:i+4])))
		}
		carry = copy(buf, buf[whole:n])
		if readErr != nil {
			break
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, 0, fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return pcm, sr, nil
}

// probeSampleRate asks ffprobe for the first audio stream's sample rate.
func probeSampleRate(path string) (int, error) {
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}

	out, err := exec.Command(ffprobePath, args...).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	sr, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil || sr <= 0 {
		return 0, fmt.Errorf("no audio track")
	}
	return sr, nil
}
