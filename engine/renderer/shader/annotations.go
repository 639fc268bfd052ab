// annotations.go defines the annotation types and parser for the Oxy WGSL shader pre-processor.
// Annotations are single-line WGSL comments prefixed with @oxy: that inject shared source,
// declare uniform blocks by name and declare sampled texture units by name. The parsed results
// are stored as Annotation values so callers can check which resources a shader reads.
package shader

import (
	"fmt"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a registered source snippet at the annotation site.
	//
	// Syntax: //@oxy:include <snippet>
	//
	// Example: //@oxy:include shared_structures
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeUniform declares a uniform block by its registered name. The pre-processor
	// replaces it with a @group(0) declaration whose binding is the block's fixed slot.
	//
	// Syntax: //@oxy:uniform <block> <var_name>
	//
	// Example: //@oxy:uniform PerFrameData frame
	AnnotationTypeUniform AnnotationType = "uniform"

	// AnnotationTypeTexture declares a sampled texture unit by its registered slot name. The
	// pre-processor replaces it with a @group(1) texture declaration at binding 2*slot and its
	// sampler at binding 2*slot+1.
	//
	// Syntax: //@oxy:texture <slot> <var_name> <wgsl_texture_type> [sampler|comparison]
	//
	// Example: //@oxy:texture TShadow shadow_map texture_depth_2d comparison
	AnnotationTypeTexture AnnotationType = "texture"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Name is the snippet, uniform block or texture slot name the annotation refers to.
	Name string

	// VarName is the WGSL variable name for uniform and texture annotations.
	VarName string

	// WGSLType is the texture type for texture annotations, e.g. "texture_2d<f32>".
	WGSLType string

	// Comparison is true when a texture annotation requests a comparison sampler.
	Comparison bool

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{Type: AnnotationTypeInclude, Name: args[1], Line: lineNum}, nil
	case AnnotationTypeUniform:
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy uniform annotation requires a block name and a variable name", lineNum)
		}
		return &Annotation{Type: AnnotationTypeUniform, Name: args[1], VarName: args[2], Line: lineNum}, nil
	case AnnotationTypeTexture:
		if len(args) < 4 || len(args) > 5 {
			return nil, fmt.Errorf("line %d: @oxy texture annotation requires a slot, a variable name, a texture type and an optional sampler kind", lineNum)
		}
		if !strings.HasPrefix(args[3], "texture_") {
			return nil, fmt.Errorf("line %d: %q is not a WGSL texture type", lineNum, args[3])
		}
		a := &Annotation{Type: AnnotationTypeTexture, Name: args[1], VarName: args[2], WGSLType: args[3], Line: lineNum}
		if len(args) == 5 {
			switch args[4] {
			case "sampler":
			case "comparison":
				a.Comparison = true
			default:
				return nil, fmt.Errorf("line %d: unknown sampler kind %q in @oxy texture annotation", lineNum, args[4])
			}
		}
		return a, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
