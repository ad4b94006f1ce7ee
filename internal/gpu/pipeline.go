package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// targetFormat is the color format of every render target in the
// pipeline: 8-bit-per-channel linear RGBA.
const targetFormat = wgpu.TextureFormatRGBA8Unorm

// ShaderError reports a template or effect shader that failed
// validation, with the backend diagnostic verbatim.
type ShaderError struct {
	Name string
	Err  error
}

func (e *ShaderError) Error() string {
	return fmt.Sprintf("shader %q failed to compile: %v", e.Name, e.Err)
}

func (e *ShaderError) Unwrap() error { return e.Err }

// shaderPrelude declares the bind-group-0 contract shared by every
// template: the frame uniforms, the FFT magnitudes and the waveform,
// plus the full-screen-triangle vertex stage. Templates supply fs_main.
const shaderPrelude = `
struct FrameUniforms {
    res: vec2<f32>,
    time: f32,
    frame: f32,
    fps: f32,
    duration: f32,
    rms: f32,
    centroid: f32,
    flux: f32,
    beat_intensity: f32,
    beat_phase: f32,
    is_beat: f32,
    bass: f32,
    mid: f32,
    high: f32,
    _pad: f32,
}

@group(0) @binding(0) var<uniform> u: FrameUniforms;
@group(0) @binding(1) var<storage, read> fft: array<f32>;
@group(0) @binding(2) var<storage, read> waveform: array<f32>;

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

// templateBindGroupLayout builds the fixed layout every template
// pipeline shares: uniform @ 0, read-only storage @ 1 and @ 2.
func templateBindGroupLayout(device *wgpu.Device) (*wgpu.BindGroupLayout, error) {
	return device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "template-bind-group-layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
		},
	})
}

// buildRenderPipeline compiles the assembled shader source and builds a
// graphics pipeline drawing a full-screen triangle: 3 vertices, no
// vertex buffer, no depth, no blend.
func buildRenderPipeline(ctx *Context, name, fragmentSrc string, layout *wgpu.BindGroupLayout) (*wgpu.RenderPipeline, error) {
	device := ctx.Device()

	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          name,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaderPrelude + fragmentSrc},
	})
	if err != nil {
		return nil, &ShaderError{Name: name, Err: err}
	}
	defer module.Release()

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            name + "-layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return nil, &ShaderError{Name: name, Err: err}
	}
	defer pipelineLayout.Release()

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  name,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
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
		return nil, &ShaderError{Name: name, Err: err}
	}
	return pipeline, nil
}
