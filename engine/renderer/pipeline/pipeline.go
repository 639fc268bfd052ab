package pipeline

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/cogentcore/webgpu/wgpu"
)

// pipeline is the implementation of the Pipeline interface.
// It pairs a render pipeline object with the inputs it was created from.
type pipeline struct {
	// key is the hash of every input that produced this pipeline, used for caching and lookups.
	key uint64
	// label is a debug label for the pipeline.
	label string
	// programID identifies the program the pipeline was built from, used for eviction on recompile.
	programID uint64

	state        PassState
	colorFormats []wgpu.TextureFormat
	depthFormat  wgpu.TextureFormat

	// renderPipeline is the created GPU pipeline, nil until SetRenderPipeline is called.
	renderPipeline *wgpu.RenderPipeline
}

// Pipeline defines the interface for a cached render pipeline. Each pipeline is the product of a
// program, a PassState, the formats of the bound target and the bound vertex layout.
type Pipeline interface {
	// Key returns the cache key this pipeline was registered under.
	//
	// Returns:
	//   - uint64: the cache key
	Key() uint64

	// Label returns the debug label of the pipeline.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// ProgramID returns the identifier of the program this pipeline was built from.
	//
	// Returns:
	//   - uint64: the program identifier
	ProgramID() uint64

	// State returns the fixed-function state baked into this pipeline.
	//
	// Returns:
	//   - PassState: the pass state
	State() PassState

	// Descriptor builds the render pipeline descriptor for this pipeline's state and formats.
	//
	// Parameters:
	//   - layout: the pipeline layout of the program
	//   - vertex: the vertex stage including its buffer layouts
	//   - fragmentModule: the fragment shader module
	//   - fragmentEntryPoint: the fragment shader entry point
	//
	// Returns:
	//   - *wgpu.RenderPipelineDescriptor: a descriptor ready for Device.CreateRenderPipeline
	Descriptor(layout *wgpu.PipelineLayout, vertex wgpu.VertexState, fragmentModule *wgpu.ShaderModule, fragmentEntryPoint string) *wgpu.RenderPipelineDescriptor

	// RenderPipeline returns the created GPU pipeline, or nil when it has not been created yet.
	//
	// Returns:
	//   - *wgpu.RenderPipeline: the GPU pipeline
	RenderPipeline() *wgpu.RenderPipeline

	// SetRenderPipeline sets the render pipeline
	//
	// Parameters:
	//   - p: the WebGPU render pipeline to set
	SetRenderPipeline(p *wgpu.RenderPipeline)

	// Release releases the GPU pipeline if one was created.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline is the entry point to create a new Pipeline. The key is normally produced by Key.
//
// Parameters:
//   - key: the unique cache key for this pipeline
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance
func NewPipeline(key uint64, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		key:         key,
		depthFormat: wgpu.TextureFormatUndefined,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key hashes every input that influences render pipeline creation.
//
// Parameters:
//   - programID: the identifier of the program
//   - state: the fixed-function pass state
//   - colorFormats: the color attachment formats of the target
//   - depthFormat: the depth attachment format of the target, undefined when absent
//   - vertexLayoutID: an identifier of the vertex buffer layout
//
// Returns:
//   - uint64: the cache key
func Key(programID uint64, state PassState, colorFormats []wgpu.TextureFormat, depthFormat wgpu.TextureFormat, vertexLayoutID uint64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], programID)
	_, _ = d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], vertexLayoutID)
	_, _ = d.Write(buf[:])
	state.hash(d)
	for _, f := range colorFormats {
		binary.LittleEndian.PutUint32(buf[:4], uint32(f))
		_, _ = d.Write(buf[:4])
	}
	binary.LittleEndian.PutUint32(buf[:4], uint32(depthFormat)|1<<31)
	_, _ = d.Write(buf[:4])
	return d.Sum64()
}

func (p *pipeline) Key() uint64 {
	return p.key
}

func (p *pipeline) Label() string {
	return p.label
}

func (p *pipeline) ProgramID() uint64 {
	return p.programID
}

func (p *pipeline) State() PassState {
	return p.state
}

func (p *pipeline) Descriptor(layout *wgpu.PipelineLayout, vertex wgpu.VertexState, fragmentModule *wgpu.ShaderModule, fragmentEntryPoint string) *wgpu.RenderPipelineDescriptor {
	desc := &wgpu.RenderPipelineDescriptor{
		Label:     p.label + " Render Pipeline",
		Layout:    layout,
		Vertex:    vertex,
		Primitive: p.state.Primitive(),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: p.state.DepthStencil(p.depthFormat),
	}
	if fragmentModule != nil {
		desc.Fragment = &wgpu.FragmentState{
			Module:     fragmentModule,
			EntryPoint: fragmentEntryPoint,
			Targets:    p.state.ColorTargets(p.colorFormats),
		}
	}
	return desc
}

func (p *pipeline) RenderPipeline() *wgpu.RenderPipeline {
	return p.renderPipeline
}

func (p *pipeline) SetRenderPipeline(rp *wgpu.RenderPipeline) {
	p.renderPipeline = rp
}

func (p *pipeline) Release() {
	if p.renderPipeline != nil {
		p.renderPipeline.Release()
		p.renderPipeline = nil
	}
}
