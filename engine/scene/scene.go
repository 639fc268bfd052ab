package scene

import (
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// Scene is the read-mostly scene model a renderer draws: materials, meshes, mesh instances,
// lights and a camera. Collections are returned as copies in insertion order, so ids stay
// stable between calls. Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// Materials returns every material in insertion order.
	//
	// Returns:
	//   - []Material: the materials
	Materials() []Material

	// MaterialsVersion returns a counter that increases whenever the material set changes.
	//
	// Returns:
	//   - uint64: the material set version
	MaterialsVersion() uint64

	// GeometryVersion returns a counter that increases whenever a mesh or an instance is added.
	//
	// Returns:
	//   - uint64: the geometry version
	GeometryVersion() uint64

	// Meshes returns every mesh in insertion order.
	//
	// Returns:
	//   - []Mesh: the meshes
	Meshes() []Mesh

	// Instances returns every mesh instance grouped by mesh in mesh insertion order, so the
	// n-th instance of a mesh group lines up with the n-th instance id of a batched draw.
	//
	// Returns:
	//   - []Instance: the instances
	Instances() []Instance

	// InstanceCount returns the number of instances of a mesh.
	//
	// Parameters:
	//   - meshID: the mesh id
	//
	// Returns:
	//   - int: the instance count, zero for unknown meshes
	InstanceCount(meshID uint32) int

	// PointLights returns the point lights.
	PointLights() []light.Light

	// SpotLights returns the spot lights.
	SpotLights() []light.Light

	// DirectionalLights returns the directional lights.
	DirectionalLights() []light.Light

	// Camera returns the scene's camera.
	Camera() camera.Camera

	// AmbientIntensity returns the scene's ambient light intensity.
	AmbientIntensity() mgl32.Vec3

	// UpDirection returns the scene's up direction.
	UpDirection() mgl32.Vec3

	// AddMaterial adds a material. A material with an existing id replaces it in place.
	//
	// Parameters:
	//   - m: the material
	AddMaterial(m Material)

	// AddMesh adds a mesh. A mesh with an existing id replaces it in place.
	//
	// Parameters:
	//   - m: the mesh
	AddMesh(m Mesh)

	// AddInstance adds an instance of a mesh.
	//
	// Parameters:
	//   - inst: the instance
	AddInstance(inst Instance)

	// AddLight adds a light to the collection matching its type.
	//
	// Parameters:
	//   - l: the light
	AddLight(l light.Light)

	// RemoveLight removes a light by reference.
	//
	// Parameters:
	//   - l: the light
	RemoveLight(l light.Light)

	// SetCamera replaces the scene's camera.
	//
	// Parameters:
	//   - cam: the new camera
	SetCamera(cam camera.Camera)

	// SetAmbientIntensity sets the ambient light intensity.
	//
	// Parameters:
	//   - intensity: the ambient intensity
	SetAmbientIntensity(intensity mgl32.Vec3)
}

type scene struct {
	mu *sync.RWMutex

	name string

	materials        []Material
	materialsVersion uint64
	geometryVersion  uint64
	meshes           []Mesh
	instances        map[uint32][]Instance

	pointLights       []light.Light
	spotLights        []light.Light
	directionalLights []light.Light

	cam     camera.Camera
	ambient mgl32.Vec3
	up      mgl32.Vec3
}

var _ Scene = &scene{}

// NewScene creates an empty scene with a default camera, +Y up and a dim ambient term.
//
// Parameters:
//   - opts: a variadic list of SceneBuilderOption functions
//
// Returns:
//   - Scene: the new scene
func NewScene(opts ...SceneBuilderOption) Scene {
	s := &scene{
		mu:        &sync.RWMutex{},
		name:      "scene",
		instances: make(map[uint32][]Instance),
		ambient:   mgl32.Vec3{0.1, 0.1, 0.1},
		up:        mgl32.Vec3{0, 1, 0},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cam == nil {
		s.cam = camera.NewCamera()
	}
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) Materials() []Material {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.materials)
}

func (s *scene) MaterialsVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.materialsVersion
}

func (s *scene) GeometryVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.geometryVersion
}

func (s *scene) Meshes() []Mesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.meshes)
}

func (s *scene) Instances() []Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Instance
	for _, m := range s.meshes {
		out = append(out, s.instances[m.ID]...)
	}
	return out
}

func (s *scene) InstanceCount(meshID uint32) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.instances[meshID])
}

func (s *scene) PointLights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.pointLights)
}

func (s *scene) SpotLights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.spotLights)
}

func (s *scene) DirectionalLights() []light.Light {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.directionalLights)
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) AmbientIntensity() mgl32.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ambient
}

func (s *scene) UpDirection() mgl32.Vec3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.up
}

func (s *scene) AddMaterial(m Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addMaterial(m)
}

func (s *scene) AddMesh(m Mesh) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geometryVersion++
	s.addMesh(m)
}

func (s *scene) AddInstance(inst Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geometryVersion++
	s.instances[inst.MeshID] = append(s.instances[inst.MeshID], inst)
}

func (s *scene) AddLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLight(l)
}

func (s *scene) RemoveLight(l light.Light) {
	s.mu.Lock()
	defer s.mu.Unlock()
	remove := func(ls []light.Light) []light.Light {
		return slices.DeleteFunc(ls, func(x light.Light) bool { return x == l })
	}
	s.pointLights = remove(s.pointLights)
	s.spotLights = remove(s.spotLights)
	s.directionalLights = remove(s.directionalLights)
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) SetAmbientIntensity(intensity mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ambient = intensity
}

// addMaterial inserts or replaces a material. Caller must hold the write lock.
func (s *scene) addMaterial(m Material) {
	s.materialsVersion++
	for i := range s.materials {
		if s.materials[i].ID == m.ID {
			s.materials[i] = m
			return
		}
	}
	s.materials = append(s.materials, m)
}

// addMesh inserts or replaces a mesh. Caller must hold the write lock.
func (s *scene) addMesh(m Mesh) {
	for i := range s.meshes {
		if s.meshes[i].ID == m.ID {
			s.meshes[i] = m
			return
		}
	}
	s.meshes = append(s.meshes, m)
}

// addLight files a light by type. Caller must hold the write lock.
func (s *scene) addLight(l light.Light) {
	switch l.Type() {
	case light.LightTypePoint:
		s.pointLights = append(s.pointLights, l)
	case light.LightTypeSpot:
		s.spotLights = append(s.spotLights, l)
	case light.LightTypeDirectional:
		s.directionalLights = append(s.directionalLights, l)
	}
}
