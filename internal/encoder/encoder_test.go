package encoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildArgsCRF(t *testing.T) {
	args := buildArgs(Config{
		OutputPath: "out.mp4",
		AudioPath:  "in.wav",
		Width:      1920,
		Height:     1080,
		FPS:        60,
		Codec:      "libx264",
		CRF:        18,
		PixFmt:     "yuv420p",
	})
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-f rawvideo")
	assert.Contains(t, joined, "-pixel_format rgba")
	assert.Contains(t, joined, "-video_size 1920x1080")
	assert.Contains(t, joined, "-framerate 60")
	assert.Contains(t, joined, "-i - -i in.wav")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-crf 18")
	assert.Contains(t, joined, "-pix_fmt yuv420p")
	assert.Contains(t, joined, "-shortest")
	assert.Equal(t, "out.mp4", args[len(args)-1])
	assert.NotContains(t, joined, "-b:v")
}

func TestBuildArgsBitrateOverridesCRF(t *testing.T) {
	args := buildArgs(Config{
		OutputPath: "out.mp4",
		AudioPath:  "in.flac",
		Width:      640,
		Height:     480,
		FPS:        30,
		Codec:      "libx265",
		CRF:        23,
		Bitrate:    "6M",
		PixFmt:     "yuv420p",
	})
	joined := strings.Join(args, " ")

	assert.Contains(t, joined, "-b:v 6M")
	assert.NotContains(t, joined, "-crf")
}
