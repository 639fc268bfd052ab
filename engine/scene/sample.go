package scene

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh and material ids of the sample hall.
const (
	SampleFloorMesh  uint32 = 311
	SamplePillarMesh uint32 = 1
	SampleWallMesh   uint32 = 2
	SampleCrateMesh  uint32 = 3

	SampleStoneMaterial uint32 = 0
	SampleClothMaterial uint32 = 1
	SampleWoodMaterial  uint32 = 2
)

// NewSampleScene builds a small colonnaded hall: a floor, two walls, two rows of pillars and a few
// crates, lit by a sun, point lights along the aisle and shadow-casting spot lights. The floor uses
// mesh id 311, the id renderers treat as reflective by default.
//
// Parameters:
//   - opts: a variadic list of SceneBuilderOption functions applied after the sample content
//
// Returns:
//   - Scene: the sample scene
func NewSampleScene(opts ...SceneBuilderOption) Scene {
	ctrl := camera.NewCameraController(
		camera.WithStart(0, 3, 18),
		camera.WithLookDirection(0, -0.1, -1),
		camera.WithMoveSpeed(0.25),
	)
	cam := camera.NewCamera(camera.WithController(ctrl), camera.WithFov(60), camera.WithNear(0.1), camera.WithFar(200))

	base := []SceneBuilderOption{
		WithName("sample_hall"),
		WithCamera(cam),
		WithAmbientIntensity(0.08, 0.08, 0.1),
		WithMaterials(
			Material{ID: SampleStoneMaterial, DiffuseColour: mgl32.Vec3{0.7, 0.68, 0.62}, SpecularColour: mgl32.Vec3{0.2, 0.2, 0.2}, Shininess: 16},
			Material{ID: SampleClothMaterial, DiffuseColour: mgl32.Vec3{0.6, 0.1, 0.1}, SpecularColour: mgl32.Vec3{0.05, 0.05, 0.05}, Shininess: 4},
			Material{ID: SampleWoodMaterial, DiffuseColour: mgl32.Vec3{0.45, 0.3, 0.15}, SpecularColour: mgl32.Vec3{0.3, 0.3, 0.3}, Shininess: 32, IsShiny: true},
		),
		WithMeshes(
			Plane(SampleFloorMesh, 40),
			Box(SamplePillarMesh, mgl32.Vec3{1, 8, 1}),
			Box(SampleWallMesh, mgl32.Vec3{0.5, 8, 40}),
			Box(SampleCrateMesh, mgl32.Vec3{1.5, 1.5, 1.5}),
		),
		WithLights(
			light.NewLight(light.LightTypeDirectional, light.WithDirection(-0.3, -1, -0.2), light.WithColor(1, 0.95, 0.85), light.WithIntensity(0.3)),
		),
	}

	instances := []Instance{
		{MeshID: SampleFloorMesh, MaterialID: SampleStoneMaterial, Transform: mgl32.Ident4()},
		{MeshID: SampleWallMesh, MaterialID: SampleClothMaterial, Transform: mgl32.Translate3D(-10, 4, 0)},
		{MeshID: SampleWallMesh, MaterialID: SampleClothMaterial, Transform: mgl32.Translate3D(10, 4, 0)},
	}
	for i := 0; i < 6; i++ {
		z := float32(-15 + i*6)
		for _, x := range []float32{-5, 5} {
			instances = append(instances, Instance{MeshID: SamplePillarMesh, MaterialID: SampleStoneMaterial, Transform: mgl32.Translate3D(x, 4, z)})
		}
		base = append(base, WithLights(light.NewLight(light.LightTypePoint,
			light.WithPosition(0, 2, z),
			light.WithColor(1, 0.8, 0.5),
			light.WithIntensity(0.8),
			light.WithRange(6),
		)))
	}
	crates := []mgl32.Vec3{{-2, 0.75, -8}, {2.5, 0.75, 3}, {-1.5, 0.75, 9}}
	for i, p := range crates {
		t := mgl32.Translate3D(p.X(), p.Y(), p.Z()).Mul4(mgl32.HomogRotate3DY(float32(i) * 0.4))
		instances = append(instances, Instance{MeshID: SampleCrateMesh, MaterialID: SampleWoodMaterial, Transform: t})
	}
	base = append(base, WithInstances(instances...))

	for _, z := range []float32{-10, 10} {
		base = append(base, WithLights(light.NewLight(light.LightTypeSpot,
			light.WithPosition(0, 7.5, z),
			light.WithDirection(0.2, -1, 0),
			light.WithColor(0.7, 0.8, 1),
			light.WithIntensity(1.5),
			light.WithRange(12),
			light.WithConeAngle(50),
			light.WithCastsShadows(true),
		)))
	}

	return NewScene(append(base, opts...)...)
}
