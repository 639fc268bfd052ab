package scene

import "github.com/go-gl/mathgl/mgl32"

// Mesh is one piece of indexed triangle geometry. Normals must match Positions one to one; UVs
// may be absent, in which case consumers pad them with zeros.
type Mesh struct {
	ID        uint32
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Elements  []uint32
}

// VertexCount returns the number of vertices of the mesh.
func (m Mesh) VertexCount() int {
	return len(m.Positions)
}

// Material describes the surface colours of a mesh instance.
type Material struct {
	ID             uint32
	DiffuseColour  mgl32.Vec3
	SpecularColour mgl32.Vec3
	Shininess      float32
	IsShiny        bool
}

// Instance places a mesh in the world with a material.
type Instance struct {
	MeshID     uint32
	MaterialID uint32
	Transform  mgl32.Mat4
}
