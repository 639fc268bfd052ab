package backend

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// copyShader draws a fullscreen triangle that samples level 0 of its source view. It serves both
// blits onto targets of a different format and mip level downsampling.
const copyShader = `
@group(0) @binding(0) var src: texture_2d<f32>;
@group(0) @binding(1) var src_sampler: sampler;

struct VertexOutput {
    @builtin(position) clip: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    var out: VertexOutput;
    out.clip = vec4<f32>(uv.x * 2.0 - 1.0, 1.0 - uv.y * 2.0, 0.0, 1.0);
    out.uv = uv;
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    return textureSampleLevel(src, src_sampler, in.uv, 0.0);
}
`

// blitter owns the copy shader and one copy pipeline per destination format.
type blitter struct {
	device     *wgpu.Device
	module     *wgpu.ShaderModule
	layout     *wgpu.BindGroupLayout
	pipeLayout *wgpu.PipelineLayout
	sampler    *wgpu.Sampler
	pipelines  map[wgpu.TextureFormat]*wgpu.RenderPipeline
}

func newBlitter(device *wgpu.Device) (*blitter, error) {
	bl := &blitter{device: device, pipelines: make(map[wgpu.TextureFormat]*wgpu.RenderPipeline)}

	var err error
	bl.module, err = device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Copy Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: copyShader},
	})
	if err != nil {
		return nil, err
	}

	bl.layout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Copy Group",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		bl.release()
		return nil, err
	}

	bl.pipeLayout, err = device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Copy Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bl.layout},
	})
	if err != nil {
		bl.release()
		return nil, err
	}

	bl.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Copy Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		bl.release()
		return nil, err
	}
	return bl, nil
}

func (bl *blitter) pipeline(format wgpu.TextureFormat) (*wgpu.RenderPipeline, error) {
	if p, ok := bl.pipelines[format]; ok {
		return p, nil
	}
	p, err := bl.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("Copy Pipeline %d", format),
		Layout: bl.pipeLayout,
		Vertex: wgpu.VertexState{
			Module:     bl.module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     bl.module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
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
	})
	if err != nil {
		return nil, err
	}
	bl.pipelines[format] = p
	return p, nil
}

// copy records a pass on encoder that draws from into to.
func (bl *blitter) copy(encoder *wgpu.CommandEncoder, from, to *wgpu.TextureView, format wgpu.TextureFormat) error {
	p, err := bl.pipeline(format)
	if err != nil {
		return err
	}
	bg, err := bl.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Copy Bind Group",
		Layout: bl.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: from},
			{Binding: 1, Sampler: bl.sampler},
		},
	})
	if err != nil {
		return err
	}
	defer bg.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    to,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(p)
	pass.SetBindGroup(0, bg, nil)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.Release()
	return nil
}

func (bl *blitter) release() {
	for f, p := range bl.pipelines {
		p.Release()
		delete(bl.pipelines, f)
	}
	if bl.sampler != nil {
		bl.sampler.Release()
	}
	if bl.pipeLayout != nil {
		bl.pipeLayout.Release()
	}
	if bl.layout != nil {
		bl.layout.Release()
	}
	if bl.module != nil {
		bl.module.Release()
	}
}
