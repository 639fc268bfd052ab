package light

import (
	_ "embed"
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GPULightSource is the canonical WGSL definition of the LightData, GlobalLight and ShadowData
// structs. Matches GPULight, GPUGlobalLight and GPUShadow exactly.
//
//go:embed assets/light.wgsl
var GPULightSource string

// Byte sizes of the GPU light structs.
const (
	GPULightSize       = 112
	GPUGlobalLightSize = 80
	GPUShadowSize      = 64
)

// GPULight is the GPU-aligned representation of the single point or spot light being shaded.
// Matches the WGSL LightData struct layout exactly. The buffer is overwritten once per light.
// Size: 112 bytes (uniform / WGSL aligned).
type GPULight struct {
	Position       [3]float32 // offset  0: world-space position
	Range          float32    // offset 12: sphere radius or cone height
	Intensity      [3]float32 // offset 16: color * intensity
	Angle          float32    // offset 28: half cone angle in radians, spot only
	Direction      [3]float32 // offset 32: normalized cone axis, spot only
	CastsShadows   uint32     // offset 44: 1 = shade with the shadow map
	ModelTransform mgl32.Mat4 // offset 48: places the unit light volume over the light
}

// NewGPULight builds the GPU representation of a point or spot light, deriving the half angle
// and the volume transform.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - GPULight: the GPU light data
func NewGPULight(l Light) GPULight {
	g := GPULight{
		Position:       l.Position(),
		Range:          l.Range(),
		Intensity:      l.Radiance(),
		ModelTransform: ModelTransform(l),
	}
	if l.Type() == LightTypeSpot {
		g.Angle = HalfAngle(l)
		g.Direction = l.Direction()
		if l.CastsShadows() {
			g.CastsShadows = 1
		}
	}
	return g
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (112)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 112-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 112)
	common.PutVec3(buf[0:12], g.Position)
	common.PutFloat32(buf[12:16], g.Range)
	common.PutVec3(buf[16:28], g.Intensity)
	common.PutFloat32(buf[28:32], g.Angle)
	common.PutVec3(buf[32:44], g.Direction)
	binary.LittleEndian.PutUint32(buf[44:48], g.CastsShadows)
	common.PutMat4(buf[48:112], g.ModelTransform)
	return buf
}

// GPUDirectionalLight is one directional light inside GPUGlobalLight.
// Size: 32 bytes.
type GPUDirectionalLight struct {
	Direction [3]float32 // offset  0
	_pad0     float32    // offset 12
	Intensity [3]float32 // offset 16: color * intensity
	_pad1     float32    // offset 28
}

// GPUGlobalLight holds the scene-wide lighting evaluated by the ambient pass.
// Size: 80 bytes.
type GPUGlobalLight struct {
	AmbientIntensity      [3]float32                                // offset  0
	DirectionalLightCount uint32                                    // offset 12
	DirectionalLights     [MaxDirectionalLights]GPUDirectionalLight // offset 16
}

// NewGPUGlobalLight builds the global light data from the ambient intensity and the scene's
// directional lights. Disabled lights are skipped and at most MaxDirectionalLights are kept.
//
// Parameters:
//   - ambient: the ambient intensity
//   - directional: the directional lights
//
// Returns:
//   - GPUGlobalLight: the global light data
func NewGPUGlobalLight(ambient [3]float32, directional []Light) GPUGlobalLight {
	g := GPUGlobalLight{AmbientIntensity: ambient}
	for _, l := range directional {
		if !l.Enabled() || l.Type() != LightTypeDirectional {
			continue
		}
		if g.DirectionalLightCount == MaxDirectionalLights {
			break
		}
		g.DirectionalLights[g.DirectionalLightCount] = GPUDirectionalLight{
			Direction: l.Direction(),
			Intensity: l.Radiance(),
		}
		g.DirectionalLightCount++
	}
	return g
}

// Size returns the size of the GPUGlobalLight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUGlobalLight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalTo writes the global light data into dst, which must hold at least 80 bytes.
//
// Parameters:
//   - dst: the destination slice
func (g *GPUGlobalLight) MarshalTo(dst []byte) {
	common.PutVec3(dst[0:12], g.AmbientIntensity)
	binary.LittleEndian.PutUint32(dst[12:16], g.DirectionalLightCount)
	for i, d := range g.DirectionalLights {
		off := 16 + i*32
		common.PutVec3(dst[off:off+12], d.Direction)
		common.PutVec3(dst[off+16:off+28], d.Intensity)
	}
}

// GPUShadow is the light-space view-projection used by the shadow and shadowed shading passes.
// Size: 64 bytes.
type GPUShadow struct {
	ViewProjection mgl32.Mat4
}

// Marshal serializes the GPUShadow struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (s *GPUShadow) Marshal() []byte {
	buf := make([]byte, 64)
	common.PutMat4(buf, s.ViewProjection)
	return buf
}
