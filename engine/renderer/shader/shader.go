package shader

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader is written for.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// shader is the implementation of the Shader interface.
// It holds the pre-processed source and the metadata reflected from it.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	vertexAttributes           []wgpu.VertexAttribute
	entryPoint                 string
	declarations               []Annotation
}

// Shader defines the interface for a pre-processed and reflected WGSL shader. It exposes the
// shader's key, source, entry point, bind group layout descriptors, vertex inputs and the
// uniform/texture declarations found by the pre-processor.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for labels and error reports.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex or ShaderTypeFragment
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "vs_main")
	EntryPoint() string

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors.
	// These are the CPU-side descriptors extracted from the shader source which can be
	// used to create the actual wgpu.BindGroupLayout GPU objects.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name for a given group and binding index, if it exists.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name associated with the group and binding, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// VertexAttributes returns the @location inputs of the vertex entry point's input struct.
	// Offsets are left zero; the vertex buffer layout supplies them.
	//
	// Returns:
	//   - []wgpu.VertexAttribute: the declared vertex inputs, or nil for fragment shaders
	VertexAttributes() []wgpu.VertexAttribute

	// Declarations returns the uniform and texture annotations found in the raw source.
	//
	// Returns:
	//   - []Annotation: the declarations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes raw WGSL source and reflects the result.
//
// Parameters:
//   - key: a unique identifier for the shader, used for labels and error reports
//   - shaderType: the stage of the shader
//   - source: the raw WGSL source containing @oxy: annotations
//   - pp: the pre-processor that expands the annotations
//
// Returns:
//   - Shader: the reflected shader
//   - error: an error if pre-processing fails or no entry point for the stage is found
func NewShader(key string, shaderType ShaderType, source string, pp PreProcessor) (Shader, error) {
	processed, err := pp.Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader: failed to pre-process %s: %w", key, err)
	}

	s := &shader{
		key:          key,
		source:       processed,
		shaderType:   shaderType,
		declarations: append([]Annotation(nil), pp.Declarations()...),
	}
	s.entryPoint = parseEntryPoint(processed, shaderType)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader: %s has no entry point for its stage", key)
	}

	visibility := wgpu.ShaderStageFragment
	if shaderType == ShaderTypeVertex {
		visibility = wgpu.ShaderStageVertex
		s.vertexAttributes = parseVertexAttributes(processed)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(processed, visibility)
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) VertexAttributes() []wgpu.VertexAttribute {
	return s.vertexAttributes
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
