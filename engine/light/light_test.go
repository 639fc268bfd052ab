package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestNewLightDefaultsAndOptions(t *testing.T) {
	l := NewLight(LightTypeSpot,
		WithPosition(1, 2, 3),
		WithDirection(0, 0, -2),
		WithColor(1, 0.5, 0.25),
		WithIntensity(2),
		WithRange(20),
		WithConeAngle(60),
		WithCastsShadows(true),
	)
	assert.Equal(t, LightTypeSpot, l.Type())
	assert.Equal(t, [3]float32{0, 0, -1}, l.Direction())
	assert.Equal(t, [3]float32{2, 1, 0.5}, l.Radiance())
	assert.True(t, l.Enabled())
	assert.True(t, l.CastsShadows())
	assert.InDelta(t, math.Pi/6, HalfAngle(l), 1e-6)

	d := NewLight(LightTypeDirectional)
	assert.Equal(t, [3]float32{0, -1, 0}, d.Direction())
	assert.False(t, d.CastsShadows())
	assert.Equal(t, "directional", d.Type().String())
}

func TestPointLightModelTransform(t *testing.T) {
	l := NewLight(LightTypePoint, WithPosition(4, 5, 6), WithRange(3))
	m := ModelTransform(l)
	p := m.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 7, p.X(), 1e-5)
	assert.InDelta(t, 5, p.Y(), 1e-5)
	assert.InDelta(t, 6, p.Z(), 1e-5)
}

func TestSpotLightVolumeApexAtLight(t *testing.T) {
	l := NewLight(LightTypeSpot, WithPosition(0, 10, 0), WithDirection(0, -1, 0), WithRange(10), WithConeAngle(90))
	m := ModelTransform(l)

	apex := m.Mul4x1(mgl32.Vec4{0, 0, 1, 1})
	assert.InDelta(t, 0, apex.X(), 1e-4)
	assert.InDelta(t, 10, apex.Y(), 1e-4)
	assert.InDelta(t, 0, apex.Z(), 1e-4)

	baseCenter := m.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, baseCenter.Y(), 1e-4)
}

func TestGPULightMarshal(t *testing.T) {
	l := NewLight(LightTypeSpot, WithPosition(1, 2, 3), WithRange(8), WithCastsShadows(true))
	g := NewGPULight(l)
	assert.Equal(t, 112, g.Size())

	buf := g.Marshal()
	assert.Len(t, buf, 112)
	assert.Equal(t, float32(8), math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16])))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[44:48]))
	assert.Equal(t, g.Angle, math.Float32frombits(binary.LittleEndian.Uint32(buf[28:32])))

	point := NewGPULight(NewLight(LightTypePoint, WithCastsShadows(true)))
	assert.Equal(t, uint32(0), point.CastsShadows)
	assert.Equal(t, float32(0), point.Angle)
}

func TestGlobalLightKeepsTwoEnabledDirectionals(t *testing.T) {
	lights := []Light{
		NewLight(LightTypeDirectional, WithEnabled(false)),
		NewLight(LightTypeDirectional, WithDirection(1, 0, 0)),
		NewLight(LightTypeDirectional, WithDirection(0, 1, 0)),
		NewLight(LightTypeDirectional, WithDirection(0, 0, 1)),
	}
	g := NewGPUGlobalLight([3]float32{0.1, 0.1, 0.1}, lights)
	assert.Equal(t, 80, g.Size())
	assert.Equal(t, uint32(2), g.DirectionalLightCount)
	assert.Equal(t, [3]float32{1, 0, 0}, g.DirectionalLights[0].Direction)
	assert.Equal(t, [3]float32{0, 1, 0}, g.DirectionalLights[1].Direction)

	buf := make([]byte, 80)
	g.MarshalTo(buf)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(buf[12:16]))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:20])))
}

func TestVisibleCullsLightsBehindCamera(t *testing.T) {
	vp := common.ViewProjection(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}, 60, 1, 0.1, 100)
	frustum := common.ExtractFrustum(vp)

	assert.True(t, Visible(NewLight(LightTypePoint, WithPosition(0, 0, -10), WithRange(1)), frustum))
	assert.False(t, Visible(NewLight(LightTypePoint, WithPosition(0, 0, 10), WithRange(1)), frustum))
	assert.True(t, Visible(NewLight(LightTypePoint, WithPosition(0, 0, 1), WithRange(2)), frustum))
	assert.True(t, Visible(NewLight(LightTypeDirectional), frustum))
}
