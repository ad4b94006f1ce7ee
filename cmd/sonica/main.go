// Package main is the sonica command line: it turns an audio file into
// an MP4 whose picture track is a shader-driven visualization
// synchronized to the audio.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/rath/sonica/internal/audio"
	"github.com/rath/sonica/internal/config"
	"github.com/rath/sonica/internal/encoder"
	"github.com/rath/sonica/internal/gpu"
	"github.com/rath/sonica/internal/render"
	"github.com/rath/sonica/internal/template"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Exit codes, part of the stable CLI contract.
const (
	exitOK        = 0
	exitUsage     = 2
	exitDecode    = 3
	exitGPU       = 4
	exitShader    = 5
	exitEncoder   = 6
	exitCancelled = 130
)

var cli struct {
	Input string `arg:"" optional:"" help:"Input audio file."`

	Output   string `short:"o" default:"output.mp4" help:"Output file path."`
	Template string `short:"t" default:"frequency_bars" help:"Template name, or 'all' to cycle every template."`

	Width  *int `help:"Video width in pixels (default 1920)."`
	Height *int `help:"Video height in pixels (default 1080)."`
	FPS    *int `help:"Video frame rate (default 60)."`

	CRF     *int    `help:"Encoder constant rate factor (default 18)."`
	Bitrate *string `short:"b" help:"Video bitrate (e.g. 6M); overrides CRF."`
	Codec   *string `help:"Video codec (default libx264)."`
	PixFmt  *string `name:"pix-fmt" help:"Encoder pixel format (default yuv420p)."`

	Effects   *string  `help:"Comma-separated effect chain; 'none' disables, 'crt' expands to the CRT preset."`
	Smoothing *float64 `help:"Feature smoothing factor in [0,1] (default 0.85)."`
	Param     string   `help:"Shader parameter overrides: KEY=VALUE[,KEY=VALUE]."`

	Config   string   `help:"Config file path (default ./sonica.toml when present)."`
	Snapshot *float64 `short:"s" help:"Render a single frame at this timestamp to PNG instead of a video."`

	ListTemplates bool `help:"List registered templates and exit."`
	Verbose       bool `short:"v" help:"Enable debug logging."`
	Version       bool `help:"Show version information."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("sonica"),
		kong.Description("Render an audio file into a shader-driven visualization video."),
		kong.UsageOnError(),
		kong.Exit(func(code int) {
			if code != 0 {
				os.Exit(exitUsage)
			}
			os.Exit(exitOK)
		}),
	)

	if cli.Version {
		fmt.Printf("sonica version %s\n", Version)
		os.Exit(exitOK)
	}

	if cli.ListTemplates {
		listTemplates()
		os.Exit(exitOK)
	}

	if cli.Input == "" {
		fmt.Fprintln(os.Stderr, "sonica: error: <input> is required")
		os.Exit(exitUsage)
	}

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Cancel on interrupt; the run loop kills the encoder child and
	// drops GPU resources on its way out.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	job, err := buildJob()
	if err == nil {
		err = render.Run(ctx, log, *job)
	}
	if err != nil {
		if ctx.Err() != nil {
			log.Error("cancelled")
			os.Exit(exitCancelled)
		}
		log.Error("run failed", "error", err)
		os.Exit(exitCode(err))
	}
}

// buildJob merges defaults, the config file and CLI flags (flags win
// per field) into the render job.
func buildJob() (*render.Job, error) {
	settings := config.Default()

	configPath := cli.Config
	optional := false
	if configPath == "" {
		configPath = config.DefaultPath
		optional = true
	}
	file, err := config.Load(configPath, optional)
	if err != nil {
		return nil, err
	}
	settings.Apply(file)

	if cli.Width != nil {
		settings.Width = *cli.Width
	}
	if cli.Height != nil {
		settings.Height = *cli.Height
	}
	if cli.FPS != nil {
		settings.FPS = *cli.FPS
	}
	if cli.CRF != nil {
		settings.CRF = *cli.CRF
	}
	if cli.Bitrate != nil {
		settings.Bitrate = *cli.Bitrate
	}
	if cli.Codec != nil {
		settings.Codec = *cli.Codec
	}
	if cli.PixFmt != nil {
		settings.PixFmt = *cli.PixFmt
	}
	if cli.Smoothing != nil {
		settings.Smoothing = *cli.Smoothing
	}
	if cli.Effects != nil {
		settings.Effects = splitEffects(*cli.Effects)
	}

	params, err := template.ParseOverrides(cli.Param)
	if err != nil {
		return nil, err
	}

	return &render.Job{
		InputPath:  cli.Input,
		OutputPath: cli.Output,
		Template:   cli.Template,
		Effects:    settings.Effects,
		Params:     params,
		Settings:   settings,
		Snapshot:   cli.Snapshot,
	}, nil
}

// splitEffects turns the --effects value into a chain list: "none"
// yields an empty (but non-nil) chain that disables manifest defaults.
func splitEffects(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func listTemplates() {
	for _, t := range template.All() {
		fmt.Printf("%-20s %s\n", t.Name, t.Manifest.Description)
	}
}

// exitCode maps error kinds to the documented exit codes.
func exitCode(err error) int {
	var (
		decodeErr   *audio.DecodeError
		analysisErr *audio.AnalysisError
		gpuInitErr  *gpu.InitError
		shaderErr   *gpu.ShaderError
		effectErr   *gpu.UnknownEffectError
		deviceLost  *gpu.DeviceLostError
		templateErr *template.UnknownTemplateError
		paramErr    *template.ParamError
		encodeErr   *encoder.EncodeError
		encoderGone *encoder.GoneError
	)
	switch {
	case errors.As(err, &analysisErr):
		return exitUsage
	case errors.As(err, &decodeErr):
		return exitDecode
	case errors.As(err, &gpuInitErr):
		return exitGPU
	case errors.As(err, &shaderErr),
		errors.As(err, &effectErr),
		errors.As(err, &templateErr),
		errors.As(err, &paramErr):
		return exitShader
	case errors.As(err, &deviceLost):
		return exitGPU
	case errors.As(err, &encodeErr), errors.As(err, &encoderGone):
		return exitEncoder
	case errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return 1
	}
}
