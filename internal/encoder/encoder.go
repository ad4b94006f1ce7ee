// Package encoder feeds raw RGBA frames to an external ffmpeg process
// over its standard input and lets ffmpeg mux the original audio back
// in from the source file.
package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// EncodeError reports an encoder failure: a non-zero exit status, or
// ffmpeg failing to start, or a frame of the wrong size.
type EncodeError struct {
	Err    error
	Stderr string
}

func (e *EncodeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("encoder failed: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("encoder failed: %v", e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// GoneError reports a broken pipe mid-stream: the encoder process died
// while frames were still being written.
type GoneError struct {
	Err error
}

func (e *GoneError) Error() string {
	return fmt.Sprintf("encoder went away: %v", e.Err)
}

func (e *GoneError) Unwrap() error { return e.Err }

// Config describes one encode job.
type Config struct {
	OutputPath string
	AudioPath  string
	Width      int
	Height     int
	FPS        int
	Codec      string
	CRF        int
	Bitrate    string // overrides CRF when set
	PixFmt     string
}

// Sink is a running encoder child process.
type Sink struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stderr    *bytes.Buffer
	frameSize int
}

// buildArgs assembles the ffmpeg invocation: rawvideo RGBA on stdin,
// the original audio file as the second input, remuxed with -shortest.
func buildArgs(cfg Config) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", strconv.Itoa(cfg.FPS),
		"-i", "-",
		"-i", cfg.AudioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", cfg.Codec,
	}
	if cfg.Bitrate != "" {
		args = append(args, "-b:v", cfg.Bitrate)
	} else {
		args = append(args, "-crf", strconv.Itoa(cfg.CRF))
	}
	args = append(args,
		"-pix_fmt", cfg.PixFmt,
		"-c:a", "aac",
		"-shortest",
		"-movflags", "+faststart",
		cfg.OutputPath,
	)
	return args
}

// Start spawns the encoder with its stdin bound to a pipe.
func Start(ctx context.Context, cfg Config) (*Sink, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, &EncodeError{Err: fmt.Errorf("ffmpeg not found in PATH: %w", err)}
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, buildArgs(cfg)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &EncodeError{Err: fmt.Errorf("failed to get stdin pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return nil, &EncodeError{Err: fmt.Errorf("failed to start ffmpeg: %w", err)}
	}

	return &Sink{
		cmd:       cmd,
		stdin:     stdin,
		stderr:    stderr,
		frameSize: cfg.Width * cfg.Height * 4,
	}, nil
}

// WriteFrame streams one tightly packed RGBA frame. Frames must arrive
// in order and are written back-to-back with no padding.
func (s *Sink) WriteFrame(rgba []byte) error {
	if len(rgba) != s.frameSize {
		return &EncodeError{Err: fmt.Errorf("frame size %d, want %d", len(rgba), s.frameSize)}
	}
	if _, err := s.stdin.Write(rgba); err != nil {
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe) {
			return &GoneError{Err: err}
		}
		return &GoneError{Err: err}
	}
	return nil
}

// Close ends the frame stream, waits for the child and checks its exit
// status.
func (s *Sink) Close() error {
	if err := s.stdin.Close(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		s.cmd.Process.Kill()
		s.cmd.Wait()
		return &EncodeError{Err: err, Stderr: stderrTail(s.stderr)}
	}
	if err := s.cmd.Wait(); err != nil {
		return &EncodeError{Err: err, Stderr: stderrTail(s.stderr)}
	}
	return nil
}

// Kill terminates the child without waiting for a clean finish; used on
// any mid-run error or cancellation.
func (s *Sink) Kill() {
	s.stdin.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
}

// stderrTail keeps error messages readable: ffmpeg is chatty, the
// useful diagnostic is at the end.
func stderrTail(buf *bytes.Buffer) string {
	const max = 512
	out := strings.TrimSpace(buf.String())
	if len(out) > max {
		out = "..." + out[len(out)-max:]
	}
	return out
}
