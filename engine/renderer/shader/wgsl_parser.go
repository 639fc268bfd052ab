package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormats maps vertex input types, in their short spelling, to wgpu vertex formats.
var vertexFormats = map[string]wgpu.VertexFormat{
	"f32":   wgpu.VertexFormatFloat32,
	"vec2f": wgpu.VertexFormatFloat32x2,
	"vec3f": wgpu.VertexFormatFloat32x3,
	"vec4f": wgpu.VertexFormatFloat32x4,
	"i32":   wgpu.VertexFormatSint32,
	"u32":   wgpu.VertexFormatUint32,
	"vec2u": wgpu.VertexFormatUint32x2,
	"vec4u": wgpu.VertexFormatUint32x4,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type.
	// The type capture (.+) is greedy to handle parameterized types like array<T, N>.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// vertexEntryRegex matches @vertex functions and captures the entry point name
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(1) var<uniform> frame: PerFrameData;
	// or handle types: @group(1) @binding(2) var position_tex: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseVertexAttributes collects the @location inputs of every pure vertex input struct
// (a struct with @location fields and no @builtin fields) in the source, ordered by location.
// Fields of unrecognized types are skipped.
//
// Parameters:
//   - source: the WGSL source code string
//
// Returns:
//   - []wgpu.VertexAttribute: the declared inputs with zero offsets
func parseVertexAttributes(source string) []wgpu.VertexAttribute {
	var attrs []wgpu.VertexAttribute
	for _, ps := range parseStructBlocks(stripComments(source)) {
		if !ps.vertexInput() {
			continue
		}
		for _, f := range ps.fields {
			format, ok := vertexFormats[shortTypeName(f.typeName)]
			if !ok || f.location < 0 {
				continue
			}
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         format,
				ShaderLocation: uint32(f.location),
			})
		}
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].ShaderLocation < attrs[j].ShaderLocation
	})
	return attrs
}

// parseBindGroupLayouts extracts all @group(N) @binding(M) resource declarations from WGSL
// source and returns them as wgpu.BindGroupLayoutDescriptor values grouped by group index.
// Each descriptor's entries are sorted by binding index. The provided visibility flag is
// applied to all entries, corresponding to the shader stage that declared them.
//
// Parameters:
//   - source: the WGSL source code string
//   - visibility: the shader stage visibility flag to set on each entry
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: layout descriptors keyed by group index
//   - map[int]map[int]string: variable names keyed by group and binding index
func parseBindGroupLayouts(source string, visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	varNames := make(map[int]map[int]string)
	cleaned := stripComments(source)

	// struct sizes give uniform entries their MinBindingSize
	structSizes := structLayouts(parseStructBlocks(cleaned))

	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		varName := strings.TrimSpace(match[4])
		typeName := strings.TrimSpace(match[5])

		entry := bindingEntry(uint32(binding), visibility, addressSpace, typeName)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if layout, ok := layoutOf(typeName, structSizes); ok && layout.size > 0 {
				entry.Buffer.MinBindingSize = layout.size
			}
		}
		groups[group] = append(groups[group], entry)

		if varNames[group] == nil {
			varNames[group] = make(map[int]string)
		}
		varNames[group][binding] = varName
	}

	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = wgpu.BindGroupLayoutDescriptor{
			Entries: entries,
		}
	}
	return result, varNames
}

// parseEntryPoint extracts the entry point function name for the given shader type
// from WGSL source. Returns an empty string if no matching entry point annotation is found.
func parseEntryPoint(source string, shaderType ShaderType) string {
	re := fragmentEntryRegex
	if shaderType == ShaderTypeVertex {
		re = vertexEntryRegex
	}
	if match := re.FindStringSubmatch(stripComments(source)); match != nil {
		return match[1]
	}
	return ""
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
func parseStructBlocks(source string) []structDecl {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]structDecl, 0, len(matches))
	for _, match := range matches {
		structs = append(structs, structDecl{
			name:   match[1],
			fields: parseStructFields(match[2]),
		})
	}
	return structs
}

// parseStructFields parses the body of a struct block into individual fields,
// extracting @location and @builtin attributes along with the field name and type
func parseStructFields(body string) []structField {
	lines := splitFields(body)
	fields := make([]structField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := structField{location: -1}
		field.builtin = builtinRegex.MatchString(line)
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			if loc, err := strconv.Atoi(locMatch[1]); err == nil {
				field.location = loc
			}
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, field)
	}
	return fields
}
