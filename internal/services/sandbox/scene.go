package sandbox

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Scene is the procedural model a sandboxed program assembles before asking
// for its GLB encoding.
type Scene struct {
	Nodes []*Node
}

type Node struct {
	Name     string
	Mesh     *Mesh
	Position [3]float64
	Rotation [3]float64 // Euler XYZ, radians
	Scale    [3]float64
	Material Material
}

type Mesh struct {
	Positions []float32 // xyz triples
	Normals   []float32 // xyz triples
	Indices   []uint32
}

type Material struct {
	Name      string
	BaseColor [4]float64
	Metallic  float64
	Roughness float64
}

func DefaultMaterial() Material {
	return Material{
		Name:      "default",
		BaseColor: [4]float64{0.8, 0.8, 0.8, 1},
		Metallic:  0,
		Roughness: 0.9,
	}
}

func NewScene() *Scene {
	return &Scene{}
}

func (s *Scene) Add(n *Node) {
	s.Nodes = append(s.Nodes, n)
}

func NewNode(mesh *Mesh) *Node {
	return &Node{
		Mesh:     mesh,
		Scale:    [3]float64{1, 1, 1},
		Material: DefaultMaterial(),
	}
}

// ParseColor accepts "#rgb" and "#rrggbb" hex notation.
func ParseColor(s string) ([4]float64, error) {
	var c [4]float64
	c[3] = 1

	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(hex) {
	case 3:
		expanded := make([]byte, 6)
		for i := 0; i < 3; i++ {
			expanded[i*2] = hex[i]
			expanded[i*2+1] = hex[i]
		}
		hex = string(expanded)
	case 6:
	default:
		return c, fmt.Errorf("invalid color %q", s)
	}

	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return c, fmt.Errorf("invalid color %q", s)
		}
		c[i] = float64(v) / 255
	}
	return c, nil
}

func clampSegments(segments, min, fallback int) int {
	if segments <= 0 {
		return fallback
	}
	if segments < min {
		return min
	}
	return segments
}

// NewBox builds an axis-aligned cuboid centered at the origin, four vertices
// per face so normals stay flat.
func NewBox(width, height, depth float64) *Mesh {
	hw, hh, hd := width/2, height/2, depth/2

	faces := []struct {
		normal [3]float32
		verts  [4][3]float64
	}{
		{[3]float32{0, 0, 1}, [4][3]float64{{-hw, -hh, hd}, {hw, -hh, hd}, {hw, hh, hd}, {-hw, hh, hd}}},
		{[3]float32{0, 0, -1}, [4][3]float64{{hw, -hh, -hd}, {-hw, -hh, -hd}, {-hw, hh, -hd}, {hw, hh, -hd}}},
		{[3]float32{1, 0, 0}, [4][3]float64{{hw, -hh, hd}, {hw, -hh, -hd}, {hw, hh, -hd}, {hw, hh, hd}}},
		{[3]float32{-1, 0, 0}, [4][3]float64{{-hw, -hh, -hd}, {-hw, -hh, hd}, {-hw, hh, hd}, {-hw, hh, -hd}}},
		{[3]float32{0, 1, 0}, [4][3]float64{{-hw, hh, hd}, {hw, hh, hd}, {hw, hh, -hd}, {-hw, hh, -hd}}},
		{[3]float32{0, -1, 0}, [4][3]float64{{-hw, -hh, -hd}, {hw, -hh, -hd}, {hw, -hh, hd}, {-hw, -hh, hd}}},
	}

	mesh := &Mesh{}
	for _, f := range faces {
		base := uint32(len(mesh.Positions) / 3)
		for _, v := range f.verts {
			mesh.Positions = append(mesh.Positions, float32(v[0]), float32(v[1]), float32(v[2]))
			mesh.Normals = append(mesh.Normals, f.normal[0], f.normal[1], f.normal[2])
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return mesh
}

func NewPlane(width, depth float64) *Mesh {
	hw, hd := width/2, depth/2
	return &Mesh{
		Positions: []float32{
			float32(-hw), 0, float32(hd),
			float32(hw), 0, float32(hd),
			float32(hw), 0, float32(-hd),
			float32(-hw), 0, float32(-hd),
		},
		Normals: []float32{0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// NewSphere builds a UV sphere with `segments` latitude bands and twice as
// many longitude steps.
func NewSphere(radius float64, segments int) *Mesh {
	rings := clampSegments(segments, 3, 16)
	sectors := rings * 2

	mesh := &Mesh{}
	for ring := 0; ring <= rings; ring++ {
		phi := math.Pi * float64(ring) / float64(rings)
		y := math.Cos(phi)
		r := math.Sin(phi)
		for sector := 0; sector <= sectors; sector++ {
			theta := 2 * math.Pi * float64(sector) / float64(sectors)
			x := r * math.Cos(theta)
			z := r * math.Sin(theta)
			mesh.Positions = append(mesh.Positions, float32(x*radius), float32(y*radius), float32(z*radius))
			mesh.Normals = append(mesh.Normals, float32(x), float32(y), float32(z))
		}
	}

	stride := uint32(sectors + 1)
	for ring := uint32(0); ring < uint32(rings); ring++ {
		for sector := uint32(0); sector < uint32(sectors); sector++ {
			a := ring*stride + sector
			b := a + stride
			mesh.Indices = append(mesh.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return mesh
}

// NewCylinder builds a capped cylinder (or truncated cone) around the Y axis.
func NewCylinder(radiusTop, radiusBottom, height float64, segments int) *Mesh {
	sectors := clampSegments(segments, 3, 24)
	hh := height / 2

	mesh := &Mesh{}

	// Side surface; slope folded into the normals.
	slope := (radiusBottom - radiusTop) / height
	for sector := 0; sector <= sectors; sector++ {
		theta := 2 * math.Pi * float64(sector) / float64(sectors)
		cos, sin := math.Cos(theta), math.Sin(theta)

		nx, ny, nz := cos, slope, sin
		nl := math.Sqrt(nx*nx + ny*ny + nz*nz)
		nx, ny, nz = nx/nl, ny/nl, nz/nl

		mesh.Positions = append(mesh.Positions,
			float32(cos*radiusBottom), float32(-hh), float32(sin*radiusBottom),
			float32(cos*radiusTop), float32(hh), float32(sin*radiusTop),
		)
		mesh.Normals = append(mesh.Normals,
			float32(nx), float32(ny), float32(nz),
			float32(nx), float32(ny), float32(nz),
		)
	}
	for sector := uint32(0); sector < uint32(sectors); sector++ {
		a := sector * 2
		mesh.Indices = append(mesh.Indices, a, a+1, a+2, a+2, a+1, a+3)
	}

	addCap := func(radius, y float64, up bool) {
		if radius <= 0 {
			return
		}
		ny := float32(1)
		if !up {
			ny = -1
		}
		center := uint32(len(mesh.Positions) / 3)
		mesh.Positions = append(mesh.Positions, 0, float32(y), 0)
		mesh.Normals = append(mesh.Normals, 0, ny, 0)
		for sector := 0; sector <= sectors; sector++ {
			theta := 2 * math.Pi * float64(sector) / float64(sectors)
			mesh.Positions = append(mesh.Positions,
				float32(math.Cos(theta)*radius), float32(y), float32(math.Sin(theta)*radius))
			mesh.Normals = append(mesh.Normals, 0, ny, 0)
		}
		for sector := uint32(0); sector < uint32(sectors); sector++ {
			a := center + 1 + sector
			if up {
				mesh.Indices = append(mesh.Indices, center, a+1, a)
			} else {
				mesh.Indices = append(mesh.Indices, center, a, a+1)
			}
		}
	}
	addCap(radiusTop, hh, true)
	addCap(radiusBottom, -hh, false)

	return mesh
}

func NewCone(radius, height float64, segments int) *Mesh {
	return NewCylinder(0, radius, height, segments)
}

func NewTorus(radius, tube float64, segments int) *Mesh {
	rings := clampSegments(segments, 3, 24)
	sides := rings

	mesh := &Mesh{}
	for ring := 0; ring <= rings; ring++ {
		u := 2 * math.Pi * float64(ring) / float64(rings)
		cu, su := math.Cos(u), math.Sin(u)
		for side := 0; side <= sides; side++ {
			v := 2 * math.Pi * float64(side) / float64(sides)
			cv, sv := math.Cos(v), math.Sin(v)

			x := (radius + tube*cv) * cu
			y := tube * sv
			z := (radius + tube*cv) * su
			mesh.Positions = append(mesh.Positions, float32(x), float32(y), float32(z))
			mesh.Normals = append(mesh.Normals, float32(cv*cu), float32(sv), float32(cv*su))
		}
	}

	stride := uint32(sides + 1)
	for ring := uint32(0); ring < uint32(rings); ring++ {
		for side := uint32(0); side < uint32(sides); side++ {
			a := ring*stride + side
			b := a + stride
			mesh.Indices = append(mesh.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return mesh
}
