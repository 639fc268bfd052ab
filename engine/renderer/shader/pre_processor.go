// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source for
// @oxy: annotations and replaces them with registered snippets or generated binding
// declarations, collecting the uniform blocks and texture slots each shader reads.
//
// The pre-processor maintains three registries, all filled through builder options:
//   - includes: snippet name to WGSL source, used by @oxy:include
//   - uniformBlocks: block name to fixed binding slot and WGSL type, used by @oxy:uniform
//   - textureSlots: slot name to texture unit, used by @oxy:texture
package shader

import (
	"fmt"
	"strings"
)

// UniformGroup and TextureGroup are the bind group indices used for generated declarations.
const (
	UniformGroup = 0
	TextureGroup = 1
)

// uniformBlockEntry pairs a uniform block's fixed binding slot with its WGSL struct type.
type uniformBlockEntry struct {
	Slot int
	Type string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	includes      map[string]string
	uniformBlocks map[string]uniformBlockEntry
	textureSlots  map[string]int

	// declarations accumulates uniform and texture annotations during a Process call.
	// Reset at the start of each Process invocation.
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations,
// replacing them with generated declarations or injected snippets.
type PreProcessor interface {
	// Process takes raw WGSL shader source code and replaces every @oxy: annotation with its
	// WGSL output. Includes are expanded recursively so snippets may include other snippets.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code with annotations replaced
	//   - error: an error if any annotation is malformed or references an unknown name
	Process(source string) (string, error)

	// Declarations returns the uniform and texture annotations collected during the most
	// recent call to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation

	// TextureBinding returns the @group(1) binding of a texture slot's texture. Its sampler
	// lives at the next binding.
	//
	// Parameters:
	//   - slot: the texture unit
	//
	// Returns:
	//   - int: the binding index
	TextureBinding(slot int) int
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with the registries filled by the given options.
//
// Parameters:
//   - opts: a variadic list of PreProcessorBuilderOption functions
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor(opts ...PreProcessorBuilderOption) PreProcessor {
	p := &preProcessor{
		includes:      make(map[string]string),
		uniformBlocks: make(map[string]uniformBlockEntry),
		textureSlots:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	return p.process(source, 0)
}

func (p *preProcessor) process(source string, depth int) (string, error) {
	if depth > 8 {
		return "", fmt.Errorf("@oxy include nesting deeper than %d", depth)
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case AnnotationTypeInclude:
			snippet, ok := p.includes[a.Name]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include snippet %q", a.Line, a.Name)
			}
			expanded, err := p.process(snippet, depth+1)
			if err != nil {
				return "", fmt.Errorf("include %q: %w", a.Name, err)
			}
			out = append(out, expanded)
		case AnnotationTypeUniform:
			entry, ok := p.uniformBlocks[a.Name]
			if !ok {
				return "", fmt.Errorf("line %d: unknown uniform block %q", a.Line, a.Name)
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) var<uniform> %s: %s;", UniformGroup, entry.Slot, a.VarName, entry.Type))
			p.declarations = append(p.declarations, *a)
		case AnnotationTypeTexture:
			slot, ok := p.textureSlots[a.Name]
			if !ok {
				return "", fmt.Errorf("line %d: unknown texture slot %q", a.Line, a.Name)
			}
			samplerType := "sampler"
			if a.Comparison {
				samplerType = "sampler_comparison"
			}
			binding := p.TextureBinding(slot)
			out = append(out,
				fmt.Sprintf("@group(%d) @binding(%d) var %s: %s;", TextureGroup, binding, a.VarName, a.WGSLType),
				fmt.Sprintf("@group(%d) @binding(%d) var %s_sampler: %s;", TextureGroup, binding+1, a.VarName, samplerType),
			)
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

func (p *preProcessor) TextureBinding(slot int) int {
	return slot * 2
}
