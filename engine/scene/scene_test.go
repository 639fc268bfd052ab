package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancesFollowMeshOrder(t *testing.T) {
	s := NewScene(WithMeshes(Box(7, mgl32.Vec3{1, 1, 1}), Box(3, mgl32.Vec3{1, 1, 1})))
	s.AddInstance(Instance{MeshID: 3, MaterialID: 1})
	s.AddInstance(Instance{MeshID: 7, MaterialID: 2})
	s.AddInstance(Instance{MeshID: 3, MaterialID: 3})

	inst := s.Instances()
	require.Len(t, inst, 3)
	assert.Equal(t, uint32(7), inst[0].MeshID)
	assert.Equal(t, uint32(1), inst[1].MaterialID)
	assert.Equal(t, uint32(3), inst[2].MaterialID)
	assert.Equal(t, 2, s.InstanceCount(3))
	assert.Equal(t, 0, s.InstanceCount(99))
}

func TestMaterialsVersionTracksChanges(t *testing.T) {
	s := NewScene()
	v := s.MaterialsVersion()
	s.AddMaterial(Material{ID: 4})
	s.AddMaterial(Material{ID: 4, Shininess: 2})
	assert.Equal(t, v+2, s.MaterialsVersion())
	require.Len(t, s.Materials(), 1)
	assert.Equal(t, float32(2), s.Materials()[0].Shininess)
}

func TestGeometryVersionTracksMeshesAndInstances(t *testing.T) {
	s := NewScene()
	v := s.GeometryVersion()
	s.AddMesh(Box(1, mgl32.Vec3{1, 1, 1}))
	s.AddInstance(Instance{MeshID: 1, Transform: mgl32.Ident4()})
	assert.Equal(t, v+2, s.GeometryVersion())

	s.AddMaterial(Material{ID: 1})
	assert.Equal(t, v+2, s.GeometryVersion())
}

func TestLightsAreFiledByType(t *testing.T) {
	spot := light.NewLight(light.LightTypeSpot)
	s := NewScene(WithLights(light.NewLight(light.LightTypePoint), spot, light.NewLight(light.LightTypeDirectional)))
	assert.Len(t, s.PointLights(), 1)
	assert.Len(t, s.SpotLights(), 1)
	assert.Len(t, s.DirectionalLights(), 1)

	s.RemoveLight(spot)
	assert.Empty(t, s.SpotLights())
}

func TestBoxGeometry(t *testing.T) {
	b := Box(1, mgl32.Vec3{2, 4, 6})
	assert.Equal(t, 24, b.VertexCount())
	assert.Len(t, b.Elements, 36)
	assert.Len(t, b.UVs, 24)
	for i, p := range b.Positions {
		assert.InDelta(t, 1, abs(p.X()), 1e-6)
		assert.InDelta(t, 2, abs(p.Y()), 1e-6)
		assert.InDelta(t, 3, abs(p.Z()), 1e-6)
		assert.InDelta(t, 1, b.Normals[i].Len(), 1e-6)
	}

	// Every triangle winds counter clockwise seen from outside: its geometric normal points along the face normal.
	for i := 0; i < len(b.Elements); i += 3 {
		a, c, d := b.Positions[b.Elements[i]], b.Positions[b.Elements[i+1]], b.Positions[b.Elements[i+2]]
		n := c.Sub(a).Cross(d.Sub(a))
		assert.Greater(t, n.Dot(b.Normals[b.Elements[i]]), float32(0))
	}
}

func TestSampleScene(t *testing.T) {
	s := NewSampleScene()
	assert.Equal(t, "sample_hall", s.Name())
	assert.Equal(t, 1, s.InstanceCount(SampleFloorMesh))
	assert.Equal(t, 12, s.InstanceCount(SamplePillarMesh))
	assert.Len(t, s.SpotLights(), 2)
	assert.Len(t, s.PointLights(), 6)
	assert.LessOrEqual(t, len(s.Instances()), 100)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, s.UpDirection())
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
