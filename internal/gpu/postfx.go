package gpu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// UnknownEffectError reports an effect name outside the closed set.
type UnknownEffectError struct {
	Name string
}

func (e *UnknownEffectError) Error() string {
	return fmt.Sprintf("unknown effect %q (available: %s)", e.Name, strings.Join(effectNames(), ", "))
}

// EffectInstance is one configured effect in a chain.
type EffectInstance struct {
	Name      string
	Intensity float32
}

// crtPreset is the ordered expansion of the "crt" preset name.
var crtPreset = []string{
	"crt_scanlines", "chromatic_aberration", "vignette", "film_grain", "color_grading",
}

func effectNames() []string {
	names := make([]string, 0, len(effectSources))
	for _, e := range effectOrder {
		names = append(names, e)
	}
	return names
}

// ExpandEffects turns a list of effect names into chain instances,
// expanding the crt preset in place before construction. A name may
// carry an optional ":intensity" suffix; the default intensity is 1.
func ExpandEffects(names []string) ([]EffectInstance, error) {
	var out []EffectInstance
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		intensity := float32(1)
		if base, suffix, ok := strings.Cut(name, ":"); ok {
			v, err := strconv.ParseFloat(suffix, 32)
			if err != nil {
				return nil, &UnknownEffectError{Name: name}
			}
			name = base
			intensity = float32(v)
		}
		if name == "crt" {
			for _, e := range crtPreset {
				out = append(out, EffectInstance{Name: e, Intensity: intensity})
			}
			continue
		}
		if _, ok := effectSources[name]; !ok {
			return nil, &UnknownEffectError{Name: name}
		}
		out = append(out, EffectInstance{Name: name, Intensity: intensity})
	}
	return out, nil
}

// effectPass is one built effect: its pipeline, uniforms, and the
// statically assigned source view and destination texture.
type effectPass struct {
	name      string
	intensity float32
	pipeline  *wgpu.RenderPipeline
	uniforms  *wgpu.Buffer
	bindGroup *wgpu.BindGroup
	dst       int // index into Chain.inter
}

// Chain owns the post-process pipelines and the two ping-pong
// intermediate textures. An empty chain is valid and passes the
// template's color target straight through.
type Chain struct {
	ctx    *Context
	width  int
	height int

	passes []*effectPass
	inter  [2]*wgpu.Texture
	views  [2]*wgpu.TextureView

	sampler *wgpu.Sampler
	layout  *wgpu.BindGroupLayout
}

// ppPrelude is the shared effect shader contract: PPUniforms @ 0, the
// previous pass's texture @ 1 and a linear sampler @ 2.
const ppPrelude = `
struct PPUniforms {
    res: vec2<f32>,
    time: f32,
    intensity: f32,
}

@group(0) @binding(0) var<uniform> pp: PPUniforms;
@group(0) @binding(1) var src: texture_2d<f32>;
@group(0) @binding(2) var samp: sampler;

struct VSOut {
    @builtin(position) pos: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) vi: u32) -> VSOut {
    var out: VSOut;
    let x = f32(i32(vi) / 2) * 4.0 - 1.0;
    let y = f32(i32(vi) & 1) * 4.0 - 1.0;
    out.pos = vec4<f32>(x, y, 0.0, 1.0);
    out.uv = vec2<f32>((x + 1.0) * 0.5, 1.0 - (y + 1.0) * 0.5);
    return out;
}
`

// NewChain builds one pipeline per effect and the ping-pong textures.
// input is the template color target's view; effect i reads the
// previous output and writes the intermediate not holding it.
func NewChain(ctx *Context, effects []EffectInstance, width, height int, input *wgpu.TextureView) (*Chain, error) {
	c := &Chain{ctx: ctx, width: width, height: height}
	if len(effects) == 0 {
		return c, nil
	}

	device := ctx.Device()

	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "postfx-bind-group-layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		return nil, &ShaderError{Name: "postfx", Err: err}
	}
	c.layout = layout

	c.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:        "postfx-sampler",
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
	})
	if err != nil {
		c.Release()
		return nil, &ShaderError{Name: "postfx", Err: err}
	}

	for i := 0; i < 2; i++ {
		tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         fmt.Sprintf("postfx-intermediate-%d", i),
			Size:          wgpu.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        targetFormat,
			Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
		})
		if err != nil {
			c.Release()
			return nil, &ShaderError{Name: "postfx", Err: err}
		}
		c.inter[i] = tex
		c.views[i], err = tex.CreateView(nil)
		if err != nil {
			c.Release()
			return nil, &ShaderError{Name: "postfx", Err: err}
		}
	}

	for i, eff := range effects {
		src := input
		if i > 0 {
			src = c.views[(i-1)%2]
		}
		pass, err := c.buildPass(eff, i%2, src)
		if err != nil {
			c.Release()
			return nil, err
		}
		c.passes = append(c.passes, pass)
	}

	return c, nil
}

func (c *Chain) buildPass(eff EffectInstance, dst int, src *wgpu.TextureView) (*effectPass, error) {
	device := c.ctx.Device()

	source, ok := effectSources[eff.Name]
	if !ok {
		return nil, &UnknownEffectError{Name: eff.Name}
	}

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "effect-" + eff.Name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: ppPrelude + source},
	})
	if err != nil {
		return nil, &ShaderError{Name: eff.Name, Err: err}
	}
	defer module.Release()

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "effect-" + eff.Name + "-layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{c.layout},
	})
	if err != nil {
		return nil, &ShaderError{Name: eff.Name, Err: err}
	}
	defer pipelineLayout.Release()

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "effect-" + eff.Name,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: "vs_main"},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    targetFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
	})
	if err != nil {
		return nil, &ShaderError{Name: eff.Name, Err: err}
	}

	uniforms, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "effect-" + eff.Name + "-uniforms",
		Size:  16,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		pipeline.Release()
		return nil, &ShaderError{Name: eff.Name, Err: err}
	}

	bindGroup, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "effect-" + eff.Name + "-bind-group",
		Layout: c.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniforms, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: src},
			{Binding: 2, Sampler: c.sampler},
		},
	})
	if err != nil {
		uniforms.Release()
		pipeline.Release()
		return nil, &ShaderError{Name: eff.Name, Err: err}
	}

	return &effectPass{
		name:      eff.Name,
		intensity: eff.Intensity,
		pipeline:  pipeline,
		uniforms:  uniforms,
		bindGroup: bindGroup,
		dst:       dst,
	}, nil
}

// Empty reports whether the chain has no effects.
func (c *Chain) Empty() bool { return len(c.passes) == 0 }

// OutputTexture returns the texture holding the final effect's output,
// or nil for an empty chain (the caller then reads the template target
// directly).
func (c *Chain) OutputTexture() *wgpu.Texture {
	if len(c.passes) == 0 {
		return nil
	}
	return c.inter[c.passes[len(c.passes)-1].dst]
}

// Encode writes each effect's uniforms for this frame and records the
// ping-pong passes onto the encoder.
func (c *Chain) Encode(encoder *wgpu.CommandEncoder, timeSec float64) {
	for _, p := range c.passes {
		vals := [4]float32{float32(c.width), float32(c.height), float32(timeSec), p.intensity}
		c.ctx.Queue().WriteBuffer(p.uniforms, 0, wgpu.ToBytes(vals[:]))

		pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			Label: "effect-" + p.name,
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       c.views[p.dst],
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{A: 1},
			}},
		})
		pass.SetPipeline(p.pipeline)
		pass.SetBindGroup(0, p.bindGroup, nil)
		pass.Draw(3, 1, 0, 0)
		pass.End()
		pass.Release()
	}
}

// ClearIntermediates records clear-only passes over both ping-pong
// textures so a template switch does not leak the previous template's
// content into the first frames of the next.
func (c *Chain) ClearIntermediates(encoder *wgpu.CommandEncoder) {
	for i := 0; i < 2; i++ {
		if c.views[i] == nil {
			continue
		}
		pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			Label: "postfx-clear",
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       c.views[i],
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{A: 1},
			}},
		})
		pass.End()
		pass.Release()
	}
}

// Release drops every chain resource.
func (c *Chain) Release() {
	for _, p := range c.passes {
		p.bindGroup.Release()
		p.uniforms.Release()
		p.pipeline.Release()
	}
	c.passes = nil
	for i := 0; i < 2; i++ {
		if c.views[i] != nil {
			c.views[i].Release()
			c.views[i] = nil
		}
		if c.inter[i] != nil {
			c.inter[i].Release()
			c.inter[i] = nil
		}
	}
	if c.sampler != nil {
		c.sampler.Release()
		c.sampler = nil
	}
	if c.layout != nil {
		c.layout.Release()
		c.layout = nil
	}
}
