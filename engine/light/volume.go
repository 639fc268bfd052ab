package light

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
)

// HalfAngle returns half of the light's cone angle in radians, the angle shaders compare against.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - float32: the half angle in radians
func HalfAngle(l Light) float32 {
	return common.SpotLightAngle(l.ConeAngle())
}

// ModelTransform returns the matrix that places the unit light volume over the light: the unit
// sphere for point lights and the unit cone for spot lights. Directional lights have no volume
// and yield the identity.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - mgl32.Mat4: the volume model matrix
func ModelTransform(l Light) mgl32.Mat4 {
	switch l.Type() {
	case LightTypePoint:
		return common.PointLightTransform(l.Position(), l.Range())
	case LightTypeSpot:
		return common.SpotLightTransform(l.Position(), l.Direction(), l.Range(), HalfAngle(l))
	}
	return mgl32.Ident4()
}

// ShadowViewProjection returns the view-projection a spot light renders its shadow map with.
//
// Parameters:
//   - l: the spot light
//   - up: the scene's up direction
//
// Returns:
//   - mgl32.Mat4: projection * view from the light
func ShadowViewProjection(l Light, up mgl32.Vec3) mgl32.Mat4 {
	return common.SpotShadowViewProjection(l.Position(), l.Direction(), up, HalfAngle(l), l.Range())
}

// Bounds returns a sphere enclosing the light's volume.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - mgl32.Vec3: the sphere center
//   - float32: the sphere radius, zero for directional lights
func Bounds(l Light) (mgl32.Vec3, float32) {
	switch l.Type() {
	case LightTypePoint:
		return l.Position(), l.Range()
	case LightTypeSpot:
		return common.SpotLightBounds(l.Position(), l.Direction(), l.Range(), HalfAngle(l))
	}
	return mgl32.Vec3{}, 0
}

// Visible reports whether any part of the light's volume can touch the view frustum. Directional
// lights are always visible.
//
// Parameters:
//   - l: the light
//   - frustum: the camera frustum
//
// Returns:
//   - bool: false when the volume lies entirely outside the frustum
func Visible(l Light, frustum common.Frustum) bool {
	if l.Type() == LightTypeDirectional {
		return true
	}
	center, radius := Bounds(l)
	return frustum.IntersectsSphere(center, radius)
}
