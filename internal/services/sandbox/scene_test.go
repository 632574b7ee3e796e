package sandbox

import (
	"math"
	"testing"
)

func checkMesh(t *testing.T, name string, mesh *Mesh) {
	t.Helper()
	if len(mesh.Positions) == 0 || len(mesh.Positions)%3 != 0 {
		t.Errorf("%s: positions length %d not a multiple of 3", name, len(mesh.Positions))
	}
	if len(mesh.Normals) != len(mesh.Positions) {
		t.Errorf("%s: normals length %d != positions length %d", name, len(mesh.Normals), len(mesh.Positions))
	}
	if len(mesh.Indices) == 0 || len(mesh.Indices)%3 != 0 {
		t.Errorf("%s: indices length %d not a multiple of 3", name, len(mesh.Indices))
	}
	vertexCount := uint32(len(mesh.Positions) / 3)
	for i, idx := range mesh.Indices {
		if idx >= vertexCount {
			t.Fatalf("%s: index %d at %d out of range (%d vertices)", name, idx, i, vertexCount)
		}
	}
	for i := 0; i < len(mesh.Normals); i += 3 {
		l := math.Sqrt(float64(mesh.Normals[i]*mesh.Normals[i] +
			mesh.Normals[i+1]*mesh.Normals[i+1] +
			mesh.Normals[i+2]*mesh.Normals[i+2]))
		if math.Abs(l-1) > 1e-3 {
			t.Fatalf("%s: normal %d not unit length (%f)", name, i/3, l)
		}
	}
}

func TestPrimitives(t *testing.T) {
	tests := []struct {
		name string
		mesh *Mesh
	}{
		{"box", NewBox(1, 2, 3)},
		{"plane", NewPlane(2, 2)},
		{"sphere", NewSphere(1, 12)},
		{"sphere default segments", NewSphere(1, 0)},
		{"cylinder", NewCylinder(0.5, 0.5, 2, 16)},
		{"cone", NewCone(0.5, 1, 16)},
		{"torus", NewTorus(1, 0.25, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkMesh(t, tt.name, tt.mesh)
		})
	}
}

func TestNewBox_Dimensions(t *testing.T) {
	mesh := NewBox(2, 4, 6)
	if got := len(mesh.Positions) / 3; got != 24 {
		t.Fatalf("box vertex count = %d, want 24", got)
	}
	var maxX, maxY, maxZ float32
	for i := 0; i < len(mesh.Positions); i += 3 {
		if mesh.Positions[i] > maxX {
			maxX = mesh.Positions[i]
		}
		if mesh.Positions[i+1] > maxY {
			maxY = mesh.Positions[i+1]
		}
		if mesh.Positions[i+2] > maxZ {
			maxZ = mesh.Positions[i+2]
		}
	}
	if maxX != 1 || maxY != 2 || maxZ != 3 {
		t.Errorf("box half extents = (%v, %v, %v), want (1, 2, 3)", maxX, maxY, maxZ)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [4]float64
		wantErr bool
	}{
		{
			name:  "six digit hex",
			input: "#ff0000",
			want:  [4]float64{1, 0, 0, 1},
		},
		{
			name:  "three digit hex",
			input: "#0f0",
			want:  [4]float64{0, 1, 0, 1},
		},
		{
			name:  "without hash",
			input: "000000",
			want:  [4]float64{0, 0, 0, 1},
		},
		{
			name:    "garbage",
			input:   "#zzzzzz",
			wantErr: true,
		},
		{
			name:    "wrong length",
			input:   "#ffff",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColor(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseColor() = %v, want %v", got, tt.want)
			}
		})
	}
}
