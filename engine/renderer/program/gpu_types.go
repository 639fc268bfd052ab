package program

import (
	"encoding/binary"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/go-gl/mathgl/mgl32"
)

// MaxInstances is the number of instances the per-frame uniform block holds.
const MaxInstances = 100

// Byte sizes of the uniform block structs.
const (
	GPUInstanceSize = 80
	GPUPerFrameSize = MaxInstances*GPUInstanceSize + 80
	GPUStaticSize   = material.MaxMaterials*material.GPUMaterialSize + light.GPUGlobalLightSize
	GPUViewportSize = 16
)

// GPUInstance is one entry of the per-frame instance array, indexed by the instance id the mesh
// registry assigns.
// Size: 80 bytes.
type GPUInstance struct {
	ModelTransform mgl32.Mat4 // offset  0
	MaterialIndex  uint32     // offset 64: dense material table index
	_pad           [3]uint32  // offset 68
}

// GPUPerFrame is the per-frame uniform block: instance data followed by the camera.
// Matches the WGSL PerFrameData struct.
// Size: 8080 bytes.
type GPUPerFrame struct {
	Instances      [MaxInstances]GPUInstance // offset    0
	ViewProjection mgl32.Mat4                // offset 8000
	EyePosition    [3]float32                // offset 8064
	_pad           float32                   // offset 8076
}

// Size returns the size of the GPUPerFrame struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (8080)
func (g *GPUPerFrame) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInstances writes instances [from, to) into dst, which holds the whole block.
//
// Parameters:
//   - dst: the destination slice, at least GPUPerFrameSize bytes
//   - from: the first instance written
//   - to: one past the last instance written
func (g *GPUPerFrame) MarshalInstances(dst []byte, from, to int) {
	for i := from; i < to; i++ {
		off := i * GPUInstanceSize
		common.PutMat4(dst[off:off+64], g.Instances[i].ModelTransform)
		binary.LittleEndian.PutUint32(dst[off+64:off+68], g.Instances[i].MaterialIndex)
		clear(dst[off+68 : off+GPUInstanceSize])
	}
}

// MarshalCamera writes the view-projection and eye position into dst, which holds the whole block.
//
// Parameters:
//   - dst: the destination slice, at least GPUPerFrameSize bytes
func (g *GPUPerFrame) MarshalCamera(dst []byte) {
	off := MaxInstances * GPUInstanceSize
	common.PutMat4(dst[off:off+64], g.ViewProjection)
	common.PutVec3(dst[off+64:off+76], g.EyePosition)
	clear(dst[off+76 : off+80])
}

// Marshal serializes the whole block.
//
// Returns:
//   - []byte: GPUPerFrameSize bytes ready for GPU upload
func (g *GPUPerFrame) Marshal() []byte {
	buf := make([]byte, GPUPerFrameSize)
	g.MarshalInstances(buf, 0, MaxInstances)
	g.MarshalCamera(buf)
	return buf
}

// GPUStatic is the static uniform block: the material table and the global lighting.
// Matches the WGSL StaticData struct.
// Size: 592 bytes.
type GPUStatic struct {
	Materials   [material.MaxMaterials]material.GPUMaterial // offset   0
	GlobalLight light.GPUGlobalLight                        // offset 512
}

// NewGPUStatic builds the static block from a material table and the global lighting.
//
// Parameters:
//   - table: the material table
//   - global: the global light data
//
// Returns:
//   - GPUStatic: the static block
func NewGPUStatic(table material.Table, global light.GPUGlobalLight) GPUStatic {
	s := GPUStatic{GlobalLight: global}
	copy(s.Materials[:], table.Materials())
	return s
}

// Size returns the size of the GPUStatic struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (592)
func (g *GPUStatic) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUStatic struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: GPUStaticSize bytes ready for GPU upload
func (g *GPUStatic) Marshal() []byte {
	buf := make([]byte, GPUStaticSize)
	for i := range g.Materials {
		g.Materials[i].MarshalTo(buf[i*material.GPUMaterialSize:])
	}
	g.GlobalLight.MarshalTo(buf[material.MaxMaterials*material.GPUMaterialSize:])
	return buf
}

// GPUViewport holds the render target metrics the screen-space passes need.
// Matches the WGSL ViewportData struct.
// Size: 16 bytes.
type GPUViewport struct {
	PixelWidth   float32 // 1 / ScreenWidth
	PixelHeight  float32 // 1 / ScreenHeight
	ScreenWidth  float32
	ScreenHeight float32
}

// NewGPUViewport builds the viewport block for a render target size.
//
// Parameters:
//   - width: the target width in pixels
//   - height: the target height in pixels
//
// Returns:
//   - GPUViewport: the viewport block
func NewGPUViewport(width, height int) GPUViewport {
	w, h := float32(max(width, 1)), float32(max(height, 1))
	return GPUViewport{PixelWidth: 1 / w, PixelHeight: 1 / h, ScreenWidth: w, ScreenHeight: h}
}

// Marshal serializes the GPUViewport struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (g *GPUViewport) Marshal() []byte {
	buf := make([]byte, GPUViewportSize)
	common.PutFloat32(buf[0:4], g.PixelWidth)
	common.PutFloat32(buf[4:8], g.PixelHeight)
	common.PutFloat32(buf[8:12], g.ScreenWidth)
	common.PutFloat32(buf[12:16], g.ScreenHeight)
	return buf
}
