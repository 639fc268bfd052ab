package scene

import "github.com/go-gl/mathgl/mgl32"

// boxFaces lists the outward normal and the two in-plane axes of each box face, ordered so the
// resulting triangles wind counter clockwise seen from outside.
var boxFaces = [6][3]mgl32.Vec3{
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
}

// Box builds an axis-aligned box mesh centred on the origin with per-face normals and UVs.
//
// Parameters:
//   - id: the mesh id
//   - size: the box extents along x, y and z
//
// Returns:
//   - Mesh: the box mesh (24 vertices, 36 elements)
func Box(id uint32, size mgl32.Vec3) Mesh {
	half := size.Mul(0.5)
	m := Mesh{ID: id}
	for _, f := range boxFaces {
		n, u, v := f[0], f[1], f[2]
		base := uint32(len(m.Positions))
		corners := [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
		for _, c := range corners {
			p := n.Add(u.Mul(c.X())).Add(v.Mul(c.Y()))
			m.Positions = append(m.Positions, mgl32.Vec3{p.X() * half.X(), p.Y() * half.Y(), p.Z() * half.Z()})
			m.Normals = append(m.Normals, n)
			m.UVs = append(m.UVs, mgl32.Vec2{(c.X() + 1) / 2, (c.Y() + 1) / 2})
		}
		m.Elements = append(m.Elements, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// Plane builds a horizontal square facing +Y, centred on the origin. The plane has no UVs.
//
// Parameters:
//   - id: the mesh id
//   - size: the side length
//
// Returns:
//   - Mesh: the plane mesh (4 vertices, 6 elements)
func Plane(id uint32, size float32) Mesh {
	h := size / 2
	up := mgl32.Vec3{0, 1, 0}
	return Mesh{
		ID:        id,
		Positions: []mgl32.Vec3{{-h, 0, h}, {h, 0, h}, {h, 0, -h}, {-h, 0, -h}},
		Normals:   []mgl32.Vec3{up, up, up, up},
		Elements:  []uint32{0, 1, 2, 0, 2, 3},
	}
}
