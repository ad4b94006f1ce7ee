// Package render drives the per-frame loop: feature record in, RGBA
// bytes out to the encoder, one frame in flight.
package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"

	"github.com/rath/sonica/internal/audio"
	"github.com/rath/sonica/internal/config"
	"github.com/rath/sonica/internal/encoder"
	"github.com/rath/sonica/internal/gpu"
	"github.com/rath/sonica/internal/template"
)

// Job describes one full conversion.
type Job struct {
	InputPath  string
	OutputPath string

	// Template is a registry name, or "all" to cycle every template in
	// registration order over the duration in equal shares.
	Template string

	// Effects overrides the template manifests' default chains when
	// non-nil. An empty non-nil slice disables effects entirely.
	Effects []string

	// Params are raw KEY=VALUE shader parameter overrides.
	Params map[string]string

	Settings config.Settings

	// Snapshot, when set, renders only the frame containing this
	// timestamp and writes it as PNG instead of invoking the encoder.
	Snapshot *float64
}

// share is one contiguous frame range rendered with a single template.
type share struct {
	tpl  *template.Template
	from int // inclusive frame index
	to   int // exclusive
}

// Run decodes, analyzes and renders the job. Any error aborts the run;
// the encoder child is killed and GPU resources are dropped.
func Run(ctx context.Context, log *slog.Logger, job Job) error {
	pcm, sampleRate, err := audio.Decode(ctx, job.InputPath)
	if err != nil {
		return err
	}
	log.Info("decoded audio",
		"path", job.InputPath,
		"samples", len(pcm),
		"sample_rate", sampleRate)

	result, err := audio.Analyze(ctx, pcm, sampleRate, audio.Params{
		FPS:       job.Settings.FPS,
		Smoothing: job.Settings.Smoothing,
	})
	if err != nil {
		return err
	}
	log.Info("analysis complete",
		"frames", len(result.Frames),
		"onsets", len(result.Global.Onsets),
		"tempo_bpm", result.Global.TempoBPM)

	shares, err := planShares(job.Template, len(result.Frames))
	if err != nil {
		return err
	}

	gctx, err := gpu.NewContext()
	if err != nil {
		return err
	}
	defer gctx.Release()

	renderer, err := gpu.NewRenderer(gctx, job.Settings.Width, job.Settings.Height, job.Settings.FPS, result.Duration)
	if err != nil {
		return err
	}
	defer renderer.Release()

	if job.Snapshot != nil {
		return renderSnapshot(renderer, result, shares, job)
	}

	sink, err := encoder.Start(ctx, encoder.Config{
		OutputPath: job.OutputPath,
		AudioPath:  job.InputPath,
		Width:      job.Settings.Width,
		Height:     job.Settings.Height,
		FPS:        job.Settings.FPS,
		Codec:      job.Settings.Codec,
		CRF:        job.Settings.CRF,
		Bitrate:    job.Settings.Bitrate,
		PixFmt:     job.Settings.PixFmt,
	})
	if err != nil {
		return err
	}

	if err := renderLoop(ctx, log, renderer, result, shares, job, sink); err != nil {
		sink.Kill()
		return err
	}

	if err := sink.Close(); err != nil {
		return err
	}
	log.Info("encode complete", "output", job.OutputPath, "frames", len(result.Frames))
	return nil
}

// renderLoop walks every frame strictly in order, swapping templates on
// share boundaries.
func renderLoop(ctx context.Context, log *slog.Logger, renderer *gpu.Renderer, result *audio.Result, shares []share, job Job, sink *encoder.Sink) error {
	for _, sh := range shares {
		if err := activateShare(renderer, sh, job); err != nil {
			return err
		}
		log.Debug("template active", "template", sh.tpl.Name, "from", sh.from, "to", sh.to)

		for k := sh.from; k < sh.to; k++ {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			rgba, err := renderer.RenderFrame(&result.Frames[k], hopForFrame(result, k, job.Settings.FPS))
			if err != nil {
				return err
			}
			if err := sink.WriteFrame(rgba); err != nil {
				return err
			}
		}
	}
	return nil
}

// activateShare compiles the share's template, installs its effect
// chain and clears the post-process intermediates so nothing leaks
// across template switches.
func activateShare(renderer *gpu.Renderer, sh share, job Job) error {
	src, err := sh.tpl.CompileSource(job.Params)
	if err != nil {
		return err
	}
	if err := renderer.SetTemplate(sh.tpl.Name, src); err != nil {
		return err
	}

	names := job.Effects
	if names == nil {
		names = sh.tpl.Manifest.DefaultEffects
	}
	effects, err := gpu.ExpandEffects(names)
	if err != nil {
		return err
	}
	if err := renderer.SetEffects(effects); err != nil {
		return err
	}
	return renderer.ResetIntermediates()
}

// planShares splits the frame range across templates: the whole range
// for a named template, equal shares in registration order for "all".
func planShares(name string, numFrames int) ([]share, error) {
	if name != "all" {
		tpl, err := template.Get(name)
		if err != nil {
			return nil, err
		}
		return []share{{tpl: tpl, from: 0, to: numFrames}}, nil
	}

	all := template.All()
	shares := make([]share, 0, len(all))
	for i, tpl := range all {
		from := numFrames * i / len(all)
		to := numFrames * (i + 1) / len(all)
		if from == to {
			continue
		}
		shares = append(shares, share{tpl: tpl, from: from, to: to})
	}
	return shares, nil
}

// hopForFrame picks the analysis hop whose window covers the frame's
// timestamp, clamped to the final hop.
func hopForFrame(result *audio.Result, frame, fps int) *audio.FrameFeatures {
	t := float64(frame) / float64(fps)
	h := int(t * float64(result.SampleRate) / audio.HopSize)
	if h >= len(result.Hops) {
		h = len(result.Hops) - 1
	}
	if h < 0 {
		h = 0
	}
	return &result.Hops[h]
}

// renderSnapshot renders the single frame containing the requested
// timestamp and writes it as a PNG.
func renderSnapshot(renderer *gpu.Renderer, result *audio.Result, shares []share, job Job) error {
	k := int(*job.Snapshot * float64(job.Settings.FPS))
	if k < 0 || k >= len(result.Frames) {
		return fmt.Errorf("snapshot time %.2fs is beyond the audio duration", *job.Snapshot)
	}

	for _, sh := range shares {
		if k < sh.from || k >= sh.to {
			continue
		}
		if err := activateShare(renderer, sh, job); err != nil {
			return err
		}
		rgba, err := renderer.RenderFrame(&result.Frames[k], hopForFrame(result, k, job.Settings.FPS))
		if err != nil {
			return err
		}

		img := &image.RGBA{
			Pix:    rgba,
			Stride: job.Settings.Width * 4,
			Rect:   image.Rect(0, 0, job.Settings.Width, job.Settings.Height),
		}
		f, err := os.Create(job.OutputPath)
		if err != nil {
			return fmt.Errorf("failed to create snapshot file: %w", err)
		}
		defer f.Close()
		if err := png.Encode(f, img); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return nil
	}
	return fmt.Errorf("no template share covers frame %d", k)
}
