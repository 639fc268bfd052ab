package common

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// clipSpaceCorrection remaps OpenGL style clip depth [-1, 1] (as produced by mgl32.Perspective)
// into the WebGPU clip depth range [0, 1].
var clipSpaceCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Perspective creates a perspective projection matrix with a WebGPU clip depth range of [0, 1].
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	return clipSpaceCorrection.Mul4(mgl32.Perspective(fovY, aspect, near, far))
}

// LookAt creates a view matrix looking from eye along dir. When dir is (nearly) parallel to up
// an orthogonal fallback up vector is used so the basis never degenerates.
//
// Parameters:
//   - eye: the viewer position in world space
//   - dir: the viewing direction (need not be normalized)
//   - up: the world up direction
//
// Returns:
//   - mgl32.Mat4: the view matrix
func LookAt(eye, dir, up mgl32.Vec3) mgl32.Mat4 {
	d := dir.Normalize()
	if math.Abs(float64(d.Dot(up.Normalize()))) > 0.999 {
		up = mgl32.Vec3{1, 0, 0}
		if math.Abs(float64(d.X())) > 0.999 {
			up = mgl32.Vec3{0, 0, 1}
		}
	}
	return mgl32.LookAtV(eye, eye.Add(d), up)
}

// ViewProjection builds the camera view-projection matrix.
//
// Parameters:
//   - eye: camera position
//   - dir: camera direction
//   - up: scene up direction
//   - fovYDegrees: vertical field of view in degrees
//   - aspect: viewport aspect ratio
//   - near, far: clip plane distances
//
// Returns:
//   - mgl32.Mat4: projection * view
func ViewProjection(eye, dir, up mgl32.Vec3, fovYDegrees, aspect, near, far float32) mgl32.Mat4 {
	return Perspective(mgl32.DegToRad(fovYDegrees), aspect, near, far).Mul4(LookAt(eye, dir, up))
}

// PointLightTransform returns the model matrix placing a unit sphere over a point light's volume.
func PointLightTransform(position mgl32.Vec3, lightRange float32) mgl32.Mat4 {
	return mgl32.Translate3D(position.X(), position.Y(), position.Z()).
		Mul4(mgl32.Scale3D(lightRange, lightRange, lightRange))
}

// SpotLightAngle converts a full cone angle in degrees to the half angle in radians used by shaders.
func SpotLightAngle(coneAngleDegrees float32) float32 {
	return mgl32.DegToRad(coneAngleDegrees / 2)
}

// SpotLightTransform returns the model matrix placing the unit cone (apex at z=1, base of radius
// 1 at z=0) over a spot light's volume, with the apex at the light position and the base
// lightRange units along the light direction.
//
// Parameters:
//   - position: the light position
//   - direction: the light direction
//   - lightRange: the light range
//   - halfAngle: half of the cone angle in radians
//
// Returns:
//   - mgl32.Mat4: the cone model matrix
func SpotLightTransform(position, direction mgl32.Vec3, lightRange, halfAngle float32) mgl32.Mat4 {
	d := direction.Normalize()
	radius := float32(math.Tan(float64(halfAngle))) * lightRange
	offset := d.Mul(lightRange)
	return mgl32.Translate3D(offset.X(), offset.Y(), offset.Z()).
		Mul4(LookAt(position, d, mgl32.Vec3{0, 1, 0}).Inv()).
		Mul4(mgl32.Scale3D(radius, radius, lightRange))
}

// SpotShadowViewProjection builds the view-projection used to render a spot light's shadow map.
//
// Parameters:
//   - position: the light position
//   - direction: the light direction
//   - up: the scene up direction
//   - halfAngle: half of the cone angle in radians
//   - lightRange: the far plane of the shadow frustum
//
// Returns:
//   - mgl32.Mat4: projection * view from the light
func SpotShadowViewProjection(position, direction, up mgl32.Vec3, halfAngle, lightRange float32) mgl32.Mat4 {
	return Perspective(halfAngle*2, 1, 0.1, lightRange).Mul4(LookAt(position, direction, up))
}

// PutMat4 writes a column-major 4x4 matrix as 16 little-endian float32 values into dst.
//
// Parameters:
//   - dst: destination slice (must be at least 64 bytes)
//   - m: the matrix to write
func PutMat4(dst []byte, m mgl32.Mat4) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

// PutVec3 writes a vector as 3 little-endian float32 values into dst.
func PutVec3(dst []byte, v mgl32.Vec3) {
	for i, c := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(c))
	}
}

// PutFloat32 writes a little-endian float32 into dst.
func PutFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
