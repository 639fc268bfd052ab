package material

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

// GPUMaterialSource is the canonical WGSL definition of the Material struct.
// Matches GPUMaterial layout exactly (32 bytes, uniform aligned).
//
//go:embed assets/material.wgsl
var GPUMaterialSource string

// GPUMaterialSize is the byte size of one GPUMaterial.
const GPUMaterialSize = 32

// GPUMaterial is the GPU-aligned representation of one scene material, indexed by the material
// index stored per instance.
// Matches the WGSL Material struct layout exactly (see GPUMaterialSource).
// Size: 32 bytes.
type GPUMaterial struct {
	DiffuseColour  [3]float32 // offset  0
	Shininess      float32    // offset 12
	SpecularColour [3]float32 // offset 16
	IsShiny        int32      // offset 28: 1 = reflective surface
}

// NewGPUMaterial converts a scene material into its GPU representation.
//
// Parameters:
//   - m: the scene material
//
// Returns:
//   - GPUMaterial: the GPU material
func NewGPUMaterial(m scene.Material) GPUMaterial {
	g := GPUMaterial{
		DiffuseColour:  m.DiffuseColour,
		Shininess:      m.Shininess,
		SpecularColour: m.SpecularColour,
	}
	if m.IsShiny {
		g.IsShiny = 1
	}
	return g
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes (32)
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo writes the material into dst, which must hold at least GPUMaterialSize bytes.
//
// Parameters:
//   - dst: the destination slice
func (g *GPUMaterial) MarshalTo(dst []byte) {
	common.PutVec3(dst[0:12], g.DiffuseColour)
	common.PutFloat32(dst[12:16], g.Shininess)
	common.PutVec3(dst[16:28], g.SpecularColour)
	binary.LittleEndian.PutUint32(dst[28:32], uint32(g.IsShiny))
}
