// Package program compiles the renderer's shader programs and owns the resources every program
// binds: the uniform block buffers at their fixed slots and the texture units.
package program

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
)

// ProgramID identifies one of the renderer's shader programs.
type ProgramID int

const (
	NoProgram ProgramID = iota
	GBuffer
	Ambient
	PointLight
	SpotLight
	SpotShadow
	Shadows
	SSR
	Edge
	Blend
	Resolve
	programCount
)

var programNames = [programCount]string{
	NoProgram:  "none",
	GBuffer:    "gbuffer",
	Ambient:    "ambient",
	PointLight: "point_light",
	SpotLight:  "spot_light",
	SpotShadow: "spot_shadow",
	Shadows:    "shadows",
	SSR:        "ssr",
	Edge:       "smaa_edge",
	Blend:      "smaa_blend",
	Resolve:    "smaa_resolve",
}

func (p ProgramID) String() string {
	if p < 0 || p >= programCount {
		return fmt.Sprintf("ProgramID(%d)", int(p))
	}
	return programNames[p]
}

// Programs returns every compiled program id in order.
func Programs() []ProgramID {
	out := make([]ProgramID, 0, programCount-1)
	for p := GBuffer; p < programCount; p++ {
		out = append(out, p)
	}
	return out
}

// UniformBlock identifies a uniform block. The value is the block's binding in the uniform group.
type UniformBlock int

const (
	Static UniformBlock = iota
	Frame
	Light
	Shadow
	Viewport
	blockCount
)

var blockNames = [blockCount]string{"Static", "Frame", "Light", "Shadow", "Viewport"}

var blockTypes = [blockCount]string{"StaticData", "PerFrameData", "LightData", "ShadowData", "ViewportData"}

var blockSizes = [blockCount]uint64{
	Static:   GPUStaticSize,
	Frame:    GPUPerFrameSize,
	Light:    light.GPULightSize,
	Shadow:   light.GPUShadowSize,
	Viewport: GPUViewportSize,
}

func (u UniformBlock) String() string {
	if u < 0 || u >= blockCount {
		return fmt.Sprintf("UniformBlock(%d)", int(u))
	}
	return blockNames[u]
}

// WGSLType returns the WGSL struct type of the block.
func (u UniformBlock) WGSLType() string {
	return blockTypes[u]
}

// Size returns the byte size of the block's buffer.
func (u UniformBlock) Size() uint64 {
	return blockSizes[u]
}

// UniformBlocks returns every uniform block in slot order.
func UniformBlocks() []UniformBlock {
	return []UniformBlock{Static, Frame, Light, Shadow, Viewport}
}

// TextureSlot identifies a texture unit. Unit 0 is left empty.
type TextureSlot int

const (
	Empty TextureSlot = iota
	Position
	Normal
	Material
	ShadowMap
	Input
	Area
	Search
	slotCount
)

var slotNames = [slotCount]string{"Empty", "Position", "Normal", "Material", "Shadow", "Input", "Area", "Search"}

func (t TextureSlot) String() string {
	if t < 0 || t >= slotCount {
		return fmt.Sprintf("TextureSlot(%d)", int(t))
	}
	return slotNames[t]
}

// Descriptor describes how one program is built: its WGSL sources, the shared snippet injected
// ahead of both, and the uniform blocks and texture slots the sources must declare.
type Descriptor struct {
	Vertex   string
	Fragment string
	Prefix   string
	Blocks   []UniformBlock
	Slots    []TextureSlot
}

const (
	prefixStructures = "structures"
	prefixSMAA       = "smaa"
)

var gbufferSlots = []TextureSlot{Position, Normal, Material}

var descriptors = [programCount]Descriptor{
	GBuffer: {
		Vertex: "gbuffer_vs.wgsl", Fragment: "gbuffer_fs.wgsl", Prefix: prefixStructures,
		Blocks: []UniformBlock{Frame},
	},
	Ambient: {
		Vertex: "quad_vs.wgsl", Fragment: "ambient_fs.wgsl", Prefix: prefixStructures,
		Blocks: []UniformBlock{Static, Frame},
		Slots:  gbufferSlots,
	},
	PointLight: {
		Vertex: "light_volume_vs.wgsl", Fragment: "point_light_fs.wgsl", Prefix: prefixStructures,
		Blocks: []UniformBlock{Static, Frame, Light},
		Slots:  gbufferSlots,
	},
	SpotLight: {
		Vertex: "light_volume_vs.wgsl", Fragment: "spot_light_fs.wgsl", Prefix: prefixStructures,
		Blocks: []UniformBlock{Static, Frame, Light},
		Slots:  gbufferSlots,
	},
	SpotShadow: {
		Vertex: "light_volume_vs.wgsl", Fragment: "spot_shadow_fs.wgsl", Prefix: prefixStructures,
		Blocks: []UniformBlock{Static, Frame, Light, Shadow},
		Slots:  []TextureSlot{Position, Normal, Material, ShadowMap},
	},
	Shadows: {
		Vertex: "shadow_vs.wgsl", Prefix: prefixStructures,
		Blocks: []UniformBlock{Frame, Shadow},
	},
	SSR: {
		Vertex: "quad_vs.wgsl", Fragment: "ssr_fs.wgsl", Prefix: prefixStructures,
		Blocks: []UniformBlock{Static, Frame, Viewport},
		Slots:  []TextureSlot{Position, Normal, Material, Input, Search},
	},
	Edge: {
		Vertex: "smaa_edge_vs.wgsl", Fragment: "smaa_edge_fs.wgsl", Prefix: prefixSMAA,
		Blocks: []UniformBlock{Viewport},
		Slots:  []TextureSlot{Input},
	},
	Blend: {
		Vertex: "smaa_blend_vs.wgsl", Fragment: "smaa_blend_fs.wgsl", Prefix: prefixSMAA,
		Blocks: []UniformBlock{Viewport},
		Slots:  []TextureSlot{Input, Area, Search},
	},
	Resolve: {
		Vertex: "smaa_resolve_vs.wgsl", Fragment: "smaa_resolve_fs.wgsl", Prefix: prefixSMAA,
		Blocks: []UniformBlock{Viewport},
		Slots:  []TextureSlot{Input, Search},
	},
}

// DescriptorOf returns the descriptor of a program. NoProgram and unknown ids panic.
func DescriptorOf(p ProgramID) Descriptor {
	if p <= NoProgram || p >= programCount {
		panic(fmt.Sprintf("program: unknown program %v", p))
	}
	return descriptors[p]
}
