package sandbox

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Binary glTF 2.0 container constants.
const (
	glbMagic     = 0x46546C67 // "glTF"
	glbVersion   = 2
	glbChunkJSON = 0x4E4F534A // "JSON"
	glbChunkBIN  = 0x004E4942 // "BIN"

	componentFloat       = 5126
	componentUnsignedInt = 5125

	targetArrayBuffer        = 34962
	targetElementArrayBuffer = 34963

	primitiveTriangles = 4
)

type gltfDocument struct {
	Asset       gltfAsset      `json:"asset"`
	Scene       int            `json:"scene"`
	Scenes      []gltfScene    `json:"scenes"`
	Nodes       []gltfNode     `json:"nodes"`
	Meshes      []gltfMesh     `json:"meshes"`
	Materials   []gltfMaterial `json:"materials,omitempty"`
	Accessors   []gltfAccessor `json:"accessors"`
	BufferViews []gltfView     `json:"bufferViews"`
	Buffers     []gltfBuffer   `json:"buffers"`
}

type gltfAsset struct {
	Version   string `json:"version"`
	Generator string `json:"generator"`
}

type gltfScene struct {
	Nodes []int `json:"nodes"`
}

type gltfNode struct {
	Name        string      `json:"name,omitempty"`
	Mesh        int         `json:"mesh"`
	Translation *[3]float64 `json:"translation,omitempty"`
	Rotation    *[4]float64 `json:"rotation,omitempty"`
	Scale       *[3]float64 `json:"scale,omitempty"`
}

type gltfMesh struct {
	Primitives []gltfPrimitive `json:"primitives"`
}

type gltfPrimitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    int            `json:"indices"`
	Material   *int           `json:"material,omitempty"`
	Mode       int            `json:"mode"`
}

type gltfMaterial struct {
	Name        string  `json:"name,omitempty"`
	PBR         gltfPBR `json:"pbrMetallicRoughness"`
	DoubleSided bool    `json:"doubleSided,omitempty"`
}

type gltfPBR struct {
	BaseColorFactor [4]float64 `json:"baseColorFactor"`
	MetallicFactor  float64    `json:"metallicFactor"`
	RoughnessFactor float64    `json:"roughnessFactor"`
}

type gltfAccessor struct {
	BufferView    int       `json:"bufferView"`
	ComponentType int       `json:"componentType"`
	Count         int       `json:"count"`
	Type          string    `json:"type"`
	Min           []float64 `json:"min,omitempty"`
	Max           []float64 `json:"max,omitempty"`
}

type gltfView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	Target     int `json:"target,omitempty"`
}

type gltfBuffer struct {
	ByteLength int `json:"byteLength"`
}

// EncodeGLB serializes the scene as a binary glTF container: a 12-byte
// header, a space-padded JSON chunk, and a zero-padded little-endian BIN
// chunk holding positions, normals, and indices.
func EncodeGLB(scene *Scene) ([]byte, error) {
	if scene == nil || len(scene.Nodes) == 0 {
		return nil, fmt.Errorf("scene has no nodes")
	}

	doc := gltfDocument{
		Asset: gltfAsset{Version: "2.0", Generator: "golang-object-generation"},
		Scene: 0,
	}
	var bin bytes.Buffer

	appendView := func(data []byte, target int) int {
		offset := bin.Len()
		bin.Write(data)
		for bin.Len()%4 != 0 {
			bin.WriteByte(0)
		}
		doc.BufferViews = append(doc.BufferViews, gltfView{
			Buffer:     0,
			ByteOffset: offset,
			ByteLength: len(data),
			Target:     target,
		})
		return len(doc.BufferViews) - 1
	}

	for i, node := range scene.Nodes {
		if node.Mesh == nil {
			return nil, fmt.Errorf("node %d has no mesh", i)
		}
		if len(node.Mesh.Positions)%3 != 0 || len(node.Mesh.Positions) == 0 {
			return nil, fmt.Errorf("node %d has malformed positions", i)
		}
		if len(node.Mesh.Normals) != len(node.Mesh.Positions) {
			return nil, fmt.Errorf("node %d has mismatched normals", i)
		}
		if len(node.Mesh.Indices)%3 != 0 || len(node.Mesh.Indices) == 0 {
			return nil, fmt.Errorf("node %d has malformed indices", i)
		}

		posView := appendView(floatsToBytes(node.Mesh.Positions), targetArrayBuffer)
		min, max := positionBounds(node.Mesh.Positions)
		doc.Accessors = append(doc.Accessors, gltfAccessor{
			BufferView:    posView,
			ComponentType: componentFloat,
			Count:         len(node.Mesh.Positions) / 3,
			Type:          "VEC3",
			Min:           min,
			Max:           max,
		})
		posAccessor := len(doc.Accessors) - 1

		normView := appendView(floatsToBytes(node.Mesh.Normals), targetArrayBuffer)
		doc.Accessors = append(doc.Accessors, gltfAccessor{
			BufferView:    normView,
			ComponentType: componentFloat,
			Count:         len(node.Mesh.Normals) / 3,
			Type:          "VEC3",
		})
		normAccessor := len(doc.Accessors) - 1

		idxView := appendView(indicesToBytes(node.Mesh.Indices), targetElementArrayBuffer)
		doc.Accessors = append(doc.Accessors, gltfAccessor{
			BufferView:    idxView,
			ComponentType: componentUnsignedInt,
			Count:         len(node.Mesh.Indices),
			Type:          "SCALAR",
		})
		idxAccessor := len(doc.Accessors) - 1

		doc.Materials = append(doc.Materials, gltfMaterial{
			Name: node.Material.Name,
			PBR: gltfPBR{
				BaseColorFactor: node.Material.BaseColor,
				MetallicFactor:  node.Material.Metallic,
				RoughnessFactor: node.Material.Roughness,
			},
		})
		materialIndex := len(doc.Materials) - 1

		doc.Meshes = append(doc.Meshes, gltfMesh{
			Primitives: []gltfPrimitive{{
				Attributes: map[string]int{
					"POSITION": posAccessor,
					"NORMAL":   normAccessor,
				},
				Indices:  idxAccessor,
				Material: &materialIndex,
				Mode:     primitiveTriangles,
			}},
		})

		gn := gltfNode{Name: node.Name, Mesh: len(doc.Meshes) - 1}
		if node.Position != [3]float64{} {
			t := node.Position
			gn.Translation = &t
		}
		if node.Rotation != [3]float64{} {
			q := eulerToQuaternion(node.Rotation)
			gn.Rotation = &q
		}
		if node.Scale != [3]float64{1, 1, 1} {
			s := node.Scale
			gn.Scale = &s
		}
		doc.Nodes = append(doc.Nodes, gn)
		doc.Scenes = appendSceneNode(doc.Scenes, len(doc.Nodes)-1)
	}

	doc.Buffers = []gltfBuffer{{ByteLength: bin.Len()}}

	jsonChunk, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal glTF document: %w", err)
	}
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	binChunk := bin.Bytes()

	total := 12 + 8 + len(jsonChunk) + 8 + len(binChunk)

	var out bytes.Buffer
	out.Grow(total)
	writeUint32 := func(v uint32) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		out.Write(b[:])
	}
	writeUint32(glbMagic)
	writeUint32(glbVersion)
	writeUint32(uint32(total))
	writeUint32(uint32(len(jsonChunk)))
	writeUint32(glbChunkJSON)
	out.Write(jsonChunk)
	writeUint32(uint32(len(binChunk)))
	writeUint32(glbChunkBIN)
	out.Write(binChunk)

	return out.Bytes(), nil
}

func appendSceneNode(scenes []gltfScene, node int) []gltfScene {
	if len(scenes) == 0 {
		scenes = []gltfScene{{}}
	}
	scenes[0].Nodes = append(scenes[0].Nodes, node)
	return scenes
}

func floatsToBytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func indicesToBytes(values []uint32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func positionBounds(positions []float32) (min, max []float64) {
	min = []float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	max = []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := 0; i < len(positions); i += 3 {
		for axis := 0; axis < 3; axis++ {
			v := float64(positions[i+axis])
			if v < min[axis] {
				min[axis] = v
			}
			if v > max[axis] {
				max[axis] = v
			}
		}
	}
	return min, max
}

// eulerToQuaternion converts XYZ-order Euler angles (radians) to a glTF
// xyzw quaternion.
func eulerToQuaternion(e [3]float64) [4]float64 {
	cx, sx := math.Cos(e[0]/2), math.Sin(e[0]/2)
	cy, sy := math.Cos(e[1]/2), math.Sin(e[1]/2)
	cz, sz := math.Cos(e[2]/2), math.Sin(e[2]/2)

	return [4]float64{
		sx*cy*cz + cx*sy*sz,
		cx*sy*cz - sx*cy*sz,
		cx*cy*sz + sx*sy*cz,
		cx*cy*cz - sx*sy*sz,
	}
}
