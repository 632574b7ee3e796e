package sandbox

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ModuleLoader builds a module's export object inside the given runtime.
type ModuleLoader func(vm *goja.Runtime) (goja.Value, error)

// ModuleRegistry is the explicit import allowlist. Anything it does not
// resolve is unreachable from inside a sandboxed program.
type ModuleRegistry struct {
	modules map[string]ModuleLoader
}

// NewModuleRegistry returns a registry preloaded with the procedural scene
// module under its canonical and prefixed names.
func NewModuleRegistry() *ModuleRegistry {
	r := &ModuleRegistry{modules: make(map[string]ModuleLoader)}
	r.Register("scene", loadSceneModule)
	r.Register("objgen/scene", loadSceneModule)
	return r
}

func (r *ModuleRegistry) Register(name string, loader ModuleLoader) {
	r.modules[name] = loader
}

// Resolve normalizes a specifier through an ordered candidate table so
// stylistic import variance ("./scene.js" vs "scene") does not fail a run.
// The canonical name is returned so per-run caches key consistently.
func (r *ModuleRegistry) Resolve(specifier string) (ModuleLoader, string, bool) {
	for _, candidate := range resolutionCandidates(specifier) {
		if loader, ok := r.modules[candidate]; ok {
			return loader, candidate, true
		}
	}
	return nil, "", false
}

func resolutionCandidates(specifier string) []string {
	specifier = strings.TrimSpace(specifier)

	candidates := []string{specifier}
	trimmed := strings.TrimPrefix(specifier, "./")
	if trimmed != specifier {
		candidates = append(candidates, trimmed)
	}
	for _, ext := range []string{".js", ".mjs", ".cjs"} {
		if strings.HasSuffix(trimmed, ext) {
			candidates = append(candidates, strings.TrimSuffix(trimmed, ext))
			break
		}
	}
	return candidates
}

// sceneModule is the export object of require("scene"). Method names reach
// JS uncapitalized (createScene, box, ...).
type sceneModule struct {
	vm *goja.Runtime
}

func loadSceneModule(vm *goja.Runtime) (goja.Value, error) {
	return vm.ToValue(&sceneModule{vm: vm}), nil
}

func (m *sceneModule) CreateScene() *JSScene {
	return &JSScene{vm: m.vm, scene: NewScene()}
}

func (m *sceneModule) Box(opts map[string]interface{}) *JSMesh {
	return m.wrap(NewBox(
		numOpt(opts, "width", 1),
		numOpt(opts, "height", 1),
		numOpt(opts, "depth", 1),
	))
}

func (m *sceneModule) Sphere(opts map[string]interface{}) *JSMesh {
	return m.wrap(NewSphere(
		numOpt(opts, "radius", 0.5),
		intOpt(opts, "segments", 0),
	))
}

func (m *sceneModule) Cylinder(opts map[string]interface{}) *JSMesh {
	return m.wrap(NewCylinder(
		numOpt(opts, "radiusTop", 0.5),
		numOpt(opts, "radiusBottom", 0.5),
		numOpt(opts, "height", 1),
		intOpt(opts, "segments", 0),
	))
}

func (m *sceneModule) Cone(opts map[string]interface{}) *JSMesh {
	return m.wrap(NewCone(
		numOpt(opts, "radius", 0.5),
		numOpt(opts, "height", 1),
		intOpt(opts, "segments", 0),
	))
}

func (m *sceneModule) Plane(opts map[string]interface{}) *JSMesh {
	return m.wrap(NewPlane(
		numOpt(opts, "width", 1),
		numOpt(opts, "depth", 1),
	))
}

func (m *sceneModule) Torus(opts map[string]interface{}) *JSMesh {
	return m.wrap(NewTorus(
		numOpt(opts, "radius", 0.5),
		numOpt(opts, "tube", 0.2),
		intOpt(opts, "segments", 0),
	))
}

func (m *sceneModule) wrap(mesh *Mesh) *JSMesh {
	return &JSMesh{node: NewNode(mesh)}
}

// JSScene wraps a Scene for sandboxed programs.
type JSScene struct {
	vm    *goja.Runtime
	scene *Scene
}

func (s *JSScene) Add(mesh *JSMesh) {
	if mesh == nil {
		panic(s.vm.NewTypeError("scene.add expects a mesh"))
	}
	s.scene.Add(mesh.node)
}

func (s *JSScene) ToGLB() goja.ArrayBuffer {
	glb, err := EncodeGLB(s.scene)
	if err != nil {
		panic(s.vm.NewGoError(fmt.Errorf("toGLB: %w", err)))
	}
	return s.vm.NewArrayBuffer(glb)
}

// JSMesh wraps one node (mesh + transform + material).
type JSMesh struct {
	node *Node
}

func (m *JSMesh) SetName(name string) *JSMesh {
	m.node.Name = name
	return m
}

func (m *JSMesh) SetPosition(x, y, z float64) *JSMesh {
	m.node.Position = [3]float64{x, y, z}
	return m
}

func (m *JSMesh) SetRotation(x, y, z float64) *JSMesh {
	m.node.Rotation = [3]float64{x, y, z}
	return m
}

func (m *JSMesh) SetScale(x, y, z float64) *JSMesh {
	m.node.Scale = [3]float64{x, y, z}
	return m
}

func (m *JSMesh) SetMaterial(opts map[string]interface{}) (*JSMesh, error) {
	mat := m.node.Material
	if name, ok := opts["name"].(string); ok {
		mat.Name = name
	}
	if color, ok := opts["color"].(string); ok {
		parsed, err := ParseColor(color)
		if err != nil {
			return nil, err
		}
		mat.BaseColor = parsed
	}
	if v, ok := opts["metallic"]; ok {
		mat.Metallic = toFloat(v, mat.Metallic)
	}
	if v, ok := opts["roughness"]; ok {
		mat.Roughness = toFloat(v, mat.Roughness)
	}
	m.node.Material = mat
	return m, nil
}

func numOpt(opts map[string]interface{}, key string, fallback float64) float64 {
	if opts == nil {
		return fallback
	}
	v, ok := opts[key]
	if !ok {
		return fallback
	}
	return toFloat(v, fallback)
}

func intOpt(opts map[string]interface{}, key string, fallback int) int {
	return int(numOpt(opts, key, float64(fallback)))
}

func toFloat(v interface{}, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return fallback
	}
}
