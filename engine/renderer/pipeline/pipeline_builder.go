package pipeline

import "github.com/cogentcore/webgpu/wgpu"

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithLabel sets the debug label of the pipeline.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - PipelineBuilderOption: a function that sets the label for this pipeline
func WithLabel(label string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.label = label
	}
}

// WithProgramID records the program the pipeline is built from.
//
// Parameters:
//   - id: the program identifier
//
// Returns:
//   - PipelineBuilderOption: a function that sets the program identifier for this pipeline
func WithProgramID(id uint64) PipelineBuilderOption {
	return func(p *pipeline) {
		p.programID = id
	}
}

// WithPassState sets the fixed-function state of the pipeline.
//
// Parameters:
//   - state: the pass state to bake into the pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the pass state for this pipeline
func WithPassState(state PassState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.state = state
	}
}

// WithColorFormats sets the color attachment formats the pipeline renders into.
//
// Parameters:
//   - formats: one format per color attachment, in attachment order
//
// Returns:
//   - PipelineBuilderOption: a function that sets the color formats for this pipeline
func WithColorFormats(formats ...wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.colorFormats = append([]wgpu.TextureFormat(nil), formats...)
	}
}

// WithDepthFormat sets the depth/stencil attachment format. Leave unset for targets without depth.
//
// Parameters:
//   - format: the depth/stencil format
//
// Returns:
//   - PipelineBuilderOption: a function that sets the depth format for this pipeline
func WithDepthFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthFormat = format
	}
}
