package shader

import (
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// typeLayout is the byte size and alignment of a host-shareable WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

type structField struct {
	name     string
	typeName string
	location int // -1 without @location
	builtin  bool
}

type structDecl struct {
	name   string
	fields []structField
}

// vertexInput reports whether the struct only carries @location inputs. Vertex outputs always
// declare @builtin(position).
func (d structDecl) vertexInput() bool {
	located := false
	for _, f := range d.fields {
		if f.builtin {
			return false
		}
		located = located || f.location >= 0
	}
	return located
}

// baseLayouts holds scalar, vector and matrix layouts keyed by their short spelling.
var baseLayouts = map[string]typeLayout{
	"f32": {4, 4}, "i32": {4, 4}, "u32": {4, 4},
	"vec2f": {8, 8}, "vec3f": {12, 16}, "vec4f": {16, 16},
	"vec2i": {8, 8}, "vec3i": {12, 16}, "vec4i": {16, 16},
	"vec2u": {8, 8}, "vec3u": {12, 16}, "vec4u": {16, 16},
	"mat3x3f": {48, 16},
	"mat4x4f": {64, 16},
}

// shortTypeName rewrites vec3<f32> as vec3f and mat4x4<f32> as mat4x4f. Other types are returned as is.
func shortTypeName(typeName string) string {
	base, param := splitTypeParams(typeName)
	if param == "" || !(strings.HasPrefix(base, "vec") || strings.HasPrefix(base, "mat")) {
		return typeName
	}
	return base + param[:1]
}

func alignTo(value, alignment uint64) uint64 {
	return (value + alignment - 1) / alignment * alignment
}

// layoutOf resolves a type against the base layouts, the structs resolved so far and fixed-size
// arrays of either. Runtime-sized arrays never back a uniform block and do not resolve.
func layoutOf(typeName string, structs map[string]typeLayout) (typeLayout, bool) {
	typeName = shortTypeName(strings.TrimSpace(typeName))
	if l, ok := baseLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := structs[typeName]; ok {
		return l, true
	}

	base, params := splitTypeParams(typeName)
	comma := strings.LastIndexByte(params, ',')
	if base != "array" || comma < 0 {
		return typeLayout{}, false
	}
	count, err := strconv.ParseUint(strings.TrimSpace(params[comma+1:]), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	elem, ok := layoutOf(params[:comma], structs)
	if !ok {
		return typeLayout{}, false
	}
	return typeLayout{count * alignTo(elem.size, elem.align), elem.align}, true
}

func structLayout(d structDecl, structs map[string]typeLayout) (typeLayout, bool) {
	var offset uint64
	maxAlign := uint64(1)
	for _, f := range d.fields {
		if f.builtin {
			continue
		}
		l, ok := layoutOf(f.typeName, structs)
		if !ok {
			return typeLayout{}, false
		}
		offset = alignTo(offset, l.align) + l.size
		maxAlign = max(maxAlign, l.align)
	}
	return typeLayout{alignTo(offset, maxAlign), maxAlign}, true
}

// structLayouts resolves every struct it can. Structs may nest in any declaration order, so
// resolution repeats until a pass makes no progress.
func structLayouts(decls []structDecl) map[string]typeLayout {
	resolved := make(map[string]typeLayout, len(decls))
	for pending := decls; len(pending) > 0; {
		var next []structDecl
		for _, d := range pending {
			if l, ok := structLayout(d, resolved); ok {
				resolved[d.name] = l
			} else {
				next = append(next, d)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return resolved
}

// bindingEntry builds the layout entry of one @group/@binding declaration.
func bindingEntry(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}
	base, param := splitTypeParams(typeName)

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case base == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case base == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case base == "texture_depth_2d":
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
	case strings.HasPrefix(base, "texture_"):
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		switch base {
		case "texture_2d_array":
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2DArray
		case "texture_cube":
			entry.Texture.ViewDimension = wgpu.TextureViewDimensionCube
		}
		switch param {
		case "u32":
			entry.Texture.SampleType = wgpu.TextureSampleTypeUint
		case "i32":
			entry.Texture.SampleType = wgpu.TextureSampleTypeSint
		default:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		}
	}
	return entry
}

// splitTypeParams splits "texture_2d<f32>" into "texture_2d" and "f32".
func splitTypeParams(typeName string) (string, string) {
	base, rest, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return base, strings.TrimSpace(strings.TrimSuffix(rest, ">"))
}

// stripComments drops line comments and nested block comments, keeping every newline.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		switch {
		case strings.HasPrefix(source[i:], "/*"):
			depth++
			i++
		case depth > 0 && strings.HasPrefix(source[i:], "*/"):
			depth--
			i++
		case depth > 0:
			if source[i] == '\n' {
				sb.WriteByte('\n')
			}
		case strings.HasPrefix(source[i:], "//"):
			end := strings.IndexByte(source[i:], '\n')
			if end < 0 {
				return sb.String()
			}
			i += end - 1
		default:
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// splitFields splits a struct body at commas outside angle brackets, so array<T, N> stays whole.
func splitFields(body string) []string {
	var fields []string
	depth, start := 0, 0
	for i, c := range body {
		switch c {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				fields = append(fields, body[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, body[start:])
}
