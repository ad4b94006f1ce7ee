package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/rath/sonica/internal/audio"
)

// rowAlignment is the copy API's required row pitch for
// texture-to-buffer copies.
const rowAlignment = 256

// Renderer owns the color target, the row-aligned readback buffer and
// the per-frame uniform/storage buffers, and issues the draw + copy +
// map sequence for each video frame. One frame is in flight at a time.
type Renderer struct {
	ctx      *Context
	width    int
	height   int
	fps      int
	duration float64

	paddedRowBytes int

	target     *wgpu.Texture
	targetView *wgpu.TextureView
	readback   *wgpu.Buffer

	uniforms *wgpu.Buffer
	fftBuf   *wgpu.Buffer
	wavBuf   *wgpu.Buffer

	layout    *wgpu.BindGroupLayout
	bindGroup *wgpu.BindGroup
	pipeline  *wgpu.RenderPipeline

	chain *Chain
}

// NewRenderer creates the render target, readback buffer and feature
// buffers for a fixed output size. The template pipeline and effect
// chain are attached afterward with SetTemplate and SetEffects.
func NewRenderer(ctx *Context, width, height, fps int, duration float64) (*Renderer, error) {
	device := ctx.Device()

	r := &Renderer{
		ctx:            ctx,
		width:          width,
		height:         height,
		fps:            fps,
		duration:       duration,
		paddedRowBytes: alignUp(width*4, rowAlignment),
	}

	var err error
	r.target, err = device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "color-target",
		Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        targetFormat,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, &InitError{Err: fmt.Errorf("color target: %w", err)}
	}
	r.targetView, err = r.target.CreateView(nil)
	if err != nil {
		r.Release()
		return nil, &InitError{Err: fmt.Errorf("color target view: %w", err)}
	}

	r.readback, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "readback",
		Size:  uint64(r.paddedRowBytes * height),
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		r.Release()
		return nil, &InitError{Err: fmt.Errorf("readback buffer: %w", err)}
	}

	r.uniforms, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "frame-uniforms",
		Size:  UniformFloats * 4,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err == nil {
		r.fftBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "fft-storage",
			Size:  uint64(audio.SpectrumSize * 4),
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
	}
	if err == nil {
		r.wavBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "waveform-storage",
			Size:  uint64(audio.WaveformPoints * 4),
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
	}
	if err != nil {
		r.Release()
		return nil, &InitError{Err: fmt.Errorf("feature buffers: %w", err)}
	}

	r.layout, err = templateBindGroupLayout(device)
	if err != nil {
		r.Release()
		return nil, &InitError{Err: fmt.Errorf("bind group layout: %w", err)}
	}

	r.bindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "template-bind-group",
		Layout: r.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.uniforms, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: r.fftBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: r.wavBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		r.Release()
		return nil, &InitError{Err: fmt.Errorf("bind group: %w", err)}
	}

	return r, nil
}

// SetTemplate compiles the template's fragment source into the active
// render pipeline, replacing any previous one ("all" mode swaps
// templates on share boundaries).
func (r *Renderer) SetTemplate(name, fragmentSrc string) error {
	pipeline, err := buildRenderPipeline(r.ctx, name, fragmentSrc, r.layout)
	if err != nil {
		return err
	}
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	r.pipeline = pipeline
	return nil
}

// SetEffects builds the post-process chain reading from the color
// target. An empty instance list installs a pass-through chain.
func (r *Renderer) SetEffects(effects []EffectInstance) error {
	chain, err := NewChain(r.ctx, effects, r.width, r.height, r.targetView)
	if err != nil {
		return err
	}
	if r.chain != nil {
		r.chain.Release()
	}
	r.chain = chain
	return nil
}

// ResetIntermediates clears the effect chain's ping-pong textures;
// called on template switches so no content leaks across shares.
func (r *Renderer) ResetIntermediates() error {
	if r.chain == nil || r.chain.Empty() {
		return nil
	}
	encoder, err := r.ctx.Device().CreateCommandEncoder(nil)
	if err != nil {
		return &DeviceLostError{Reason: err.Error()}
	}
	r.chain.ClearIntermediates(encoder)
	cmd, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return &DeviceLostError{Reason: err.Error()}
	}
	r.ctx.Queue().Submit(cmd)
	cmd.Release()
	return nil
}

// RenderFrame uploads one frame's features, draws the template across
// the full-screen triangle, runs the effect chain, and reads the final
// texture back as tightly packed RGBA bytes of length width*height*4.
func (r *Renderer) RenderFrame(frame *audio.SmoothedFrame, hop *audio.FrameFeatures) ([]byte, error) {
	if r.pipeline == nil {
		return nil, &ShaderError{Name: "none", Err: fmt.Errorf("no template pipeline set")}
	}

	queue := r.ctx.Queue()
	u := packUniforms(frame, r.width, r.height, r.fps, r.duration)
	queue.WriteBuffer(r.uniforms, 0, wgpu.ToBytes(u[:]))
	queue.WriteBuffer(r.fftBuf, 0, wgpu.ToBytes(hop.Spectrum))
	queue.WriteBuffer(r.wavBuf, 0, wgpu.ToBytes(hop.Waveform))

	encoder, err := r.ctx.Device().CreateCommandEncoder(nil)
	if err != nil {
		return nil, &DeviceLostError{Reason: err.Error()}
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "template",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       r.targetView,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{A: 1},
		}},
	})
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, r.bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()

	copySrc := r.target
	if r.chain != nil && !r.chain.Empty() {
		r.chain.Encode(encoder, frame.Time)
		copySrc = r.chain.OutputTexture()
	}

	encoder.CopyTextureToBuffer(
		copySrc.AsImageCopy(),
		&wgpu.ImageCopyBuffer{
			Buffer: r.readback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  uint32(r.paddedRowBytes),
				RowsPerImage: uint32(r.height),
			},
		},
		&wgpu.Extent3D{Width: uint32(r.width), Height: uint32(r.height), DepthOrArrayLayers: 1},
	)

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, &DeviceLostError{Reason: err.Error()}
	}
	queue.Submit(cmd)
	cmd.Release()

	// Map the readback buffer and drive the queue until the mapping is
	// visible. This blocking poll is the loop's throughput bottleneck;
	// one frame in flight keeps it simple.
	var mapStatus wgpu.BufferMapAsyncStatus
	err = r.readback.MapAsync(wgpu.MapModeRead, 0, uint64(r.paddedRowBytes*r.height),
		func(status wgpu.BufferMapAsyncStatus) {
			mapStatus = status
		})
	if err != nil {
		return nil, &DeviceLostError{Reason: err.Error()}
	}
	r.ctx.Poll()
	if mapStatus != wgpu.BufferMapAsyncStatusSuccess {
		return nil, &DeviceLostError{Reason: fmt.Sprintf("readback map failed: %v", mapStatus)}
	}

	padded := r.readback.GetMappedRange(0, uint(r.paddedRowBytes*r.height))
	out := stripRowPadding(padded, r.width, r.height, r.paddedRowBytes)
	r.readback.Unmap()

	return out, nil
}

// Release drops every renderer-owned GPU resource.
func (r *Renderer) Release() {
	if r.chain != nil {
		r.chain.Release()
		r.chain = nil
	}
	if r.pipeline != nil {
		r.pipeline.Release()
		r.pipeline = nil
	}
	if r.bindGroup != nil {
		r.bindGroup.Release()
		r.bindGroup = nil
	}
	if r.layout != nil {
		r.layout.Release()
		r.layout = nil
	}
	for _, b := range []*wgpu.Buffer{r.wavBuf, r.fftBuf, r.uniforms, r.readback} {
		if b != nil {
			b.Release()
		}
	}
	r.wavBuf, r.fftBuf, r.uniforms, r.readback = nil, nil, nil, nil
	if r.targetView != nil {
		r.targetView.Release()
		r.targetView = nil
	}
	if r.target != nil {
		r.target.Release()
		r.target = nil
	}
}
