package mesh_registry

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// single counts one instance of every mesh; procedural groups are drawn once per call.
func single(uint32) int { return 1 }

// QuadMesh returns the full-screen quad: positions in normalized device coordinates and UVs with
// v growing downwards, matching texture addressing.
func QuadMesh() scene.Mesh {
	n := mgl32.Vec3{0, 0, 1}
	return scene.Mesh{
		Positions: []mgl32.Vec3{{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0}},
		Normals:   []mgl32.Vec3{n, n, n, n},
		UVs:       []mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		Elements:  []uint32{0, 1, 2, 0, 2, 3},
	}
}

// SphereMesh returns a UV sphere enclosing the unit sphere, with rings latitude bands and twice
// as many longitude segments. Vertices are pushed out so the flat faces never cut into the unit
// sphere a point light's range describes. Triangles wind counter clockwise seen from outside.
//
// Parameters:
//   - rings: latitude bands, at least 3
//
// Returns:
//   - scene.Mesh: the sphere
func SphereMesh(rings int) scene.Mesh {
	rings = max(rings, 3)
	segments := rings * 2
	dTheta := math.Pi / float64(rings)
	dPhi := 2 * math.Pi / float64(segments)
	radius := float32(1 / (math.Cos(dTheta/2) * math.Cos(dPhi/2)))

	var m scene.Mesh
	for i := 0; i <= rings; i++ {
		st, ct := math.Sincos(float64(i) * dTheta)
		for j := 0; j <= segments; j++ {
			sp, cp := math.Sincos(float64(j) * dPhi)
			n := mgl32.Vec3{float32(st * cp), float32(ct), float32(st * sp)}
			m.Positions = append(m.Positions, n.Mul(radius))
			m.Normals = append(m.Normals, n)
		}
	}

	stride := uint32(segments + 1)
	for i := uint32(0); i < uint32(rings); i++ {
		for j := uint32(0); j < uint32(segments); j++ {
			a := i*stride + j
			b := a + stride
			c := b + 1
			d := a + 1
			if i != uint32(rings)-1 {
				m.Elements = append(m.Elements, a, c, b)
			}
			if i != 0 {
				m.Elements = append(m.Elements, a, d, c)
			}
		}
	}
	return m
}

// ConeMesh returns a capped cone enclosing the unit cone: apex at (0, 0, 1), base of radius 1 in
// the z = 0 plane. The base polygon has 4 * subdivisions sides. Triangles wind counter clockwise
// seen from outside.
//
// Parameters:
//   - subdivisions: sides per quarter turn, at least 1
//
// Returns:
//   - scene.Mesh: the cone
func ConeMesh(subdivisions int) scene.Mesh {
	sides := max(subdivisions, 1) * 4
	dPhi := 2 * math.Pi / float64(sides)
	radius := float32(1 / math.Cos(dPhi/2))
	apex := mgl32.Vec3{0, 0, 1}
	down := mgl32.Vec3{0, 0, -1}

	ring := func(j int) mgl32.Vec3 {
		s, c := math.Sincos(float64(j) * dPhi)
		return mgl32.Vec3{float32(c) * radius, float32(s) * radius, 0}
	}
	slope := func(phi float64) mgl32.Vec3 {
		s, c := math.Sincos(phi)
		return mgl32.Vec3{float32(c), float32(s), 1}.Normalize()
	}

	var m scene.Mesh
	for j := 0; j < sides; j++ {
		base := uint32(len(m.Positions))
		m.Positions = append(m.Positions, ring(j), ring(j+1), apex)
		m.Normals = append(m.Normals, slope(float64(j)*dPhi), slope(float64(j+1)*dPhi), slope((float64(j)+0.5)*dPhi))
		m.Elements = append(m.Elements, base, base+1, base+2)
	}

	center := uint32(len(m.Positions))
	m.Positions = append(m.Positions, mgl32.Vec3{})
	m.Normals = append(m.Normals, down)
	for j := 0; j < sides; j++ {
		m.Positions = append(m.Positions, ring(j))
		m.Normals = append(m.Normals, down)
	}
	for j := uint32(0); j < uint32(sides); j++ {
		next := (j+1)%uint32(sides) + center + 1
		m.Elements = append(m.Elements, center, next, center+1+j)
	}
	return m
}

// QuadData returns the quad group.
func QuadData() GroupData {
	return GenerateVertexData([]scene.Mesh{QuadMesh()}, single)
}

// SphereData returns the sphere group.
func SphereData(rings int) GroupData {
	return GenerateVertexData([]scene.Mesh{SphereMesh(rings)}, single)
}

// ConeData returns the cone group.
func ConeData(subdivisions int) GroupData {
	return GenerateVertexData([]scene.Mesh{ConeMesh(subdivisions)}, single)
}
