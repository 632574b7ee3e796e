package sandbox

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestScene() *Scene {
	s := NewScene()

	box := NewNode(NewBox(2, 1, 1))
	box.Name = "body"
	box.Material.BaseColor = [4]float64{0.2, 0.4, 1, 1}
	s.Add(box)

	sphere := NewNode(NewSphere(0.5, 8))
	sphere.Position = [3]float64{0, 1, 0}
	sphere.Rotation = [3]float64{0, math.Pi / 2, 0}
	sphere.Scale = [3]float64{1, 2, 1}
	s.Add(sphere)

	return s
}

func TestEncodeGLB_ContainerLayout(t *testing.T) {
	glb, err := EncodeGLB(buildTestScene())
	require.NoError(t, err)
	require.Greater(t, len(glb), 12)

	le := binary.LittleEndian
	assert.Equal(t, uint32(glbMagic), le.Uint32(glb[0:4]))
	assert.Equal(t, uint32(glbVersion), le.Uint32(glb[4:8]))
	assert.Equal(t, uint32(len(glb)), le.Uint32(glb[8:12]), "declared total length must match the payload")

	jsonLen := le.Uint32(glb[12:16])
	assert.Equal(t, uint32(glbChunkJSON), le.Uint32(glb[16:20]))
	assert.Zero(t, jsonLen%4, "JSON chunk must be 4-byte aligned")

	binOffset := 20 + jsonLen
	binLen := le.Uint32(glb[binOffset : binOffset+4])
	assert.Equal(t, uint32(glbChunkBIN), le.Uint32(glb[binOffset+4:binOffset+8]))
	assert.Equal(t, len(glb), int(binOffset)+8+int(binLen))
}

func TestEncodeGLB_Document(t *testing.T) {
	glb, err := EncodeGLB(buildTestScene())
	require.NoError(t, err)

	le := binary.LittleEndian
	jsonLen := le.Uint32(glb[12:16])
	var doc gltfDocument
	require.NoError(t, json.Unmarshal(glb[20:20+jsonLen], &doc))

	assert.Equal(t, "2.0", doc.Asset.Version)
	require.Len(t, doc.Nodes, 2)
	require.Len(t, doc.Meshes, 2)
	require.Len(t, doc.Materials, 2)
	require.Len(t, doc.Scenes, 1)
	assert.Equal(t, []int{0, 1}, doc.Scenes[0].Nodes)

	// Three accessors per mesh: position, normal, indices.
	require.Len(t, doc.Accessors, 6)
	assert.Equal(t, [4]float64{0.2, 0.4, 1, 1}, doc.Materials[0].PBR.BaseColorFactor)

	// Box node carries no transform, sphere node carries all three.
	assert.Nil(t, doc.Nodes[0].Translation)
	require.NotNil(t, doc.Nodes[1].Translation)
	assert.Equal(t, [3]float64{0, 1, 0}, *doc.Nodes[1].Translation)
	require.NotNil(t, doc.Nodes[1].Rotation)
	require.NotNil(t, doc.Nodes[1].Scale)

	// POSITION accessors must carry bounds.
	assert.Equal(t, []float64{-1, -0.5, -0.5}, doc.Accessors[0].Min)
	assert.Equal(t, []float64{1, 0.5, 0.5}, doc.Accessors[0].Max)

	binLen := 0
	for _, view := range doc.BufferViews {
		if end := view.ByteOffset + view.ByteLength; end > binLen {
			binLen = end
		}
	}
	assert.LessOrEqual(t, binLen, doc.Buffers[0].ByteLength)
}

func TestEncodeGLB_RejectsEmptyScene(t *testing.T) {
	_, err := EncodeGLB(NewScene())
	assert.Error(t, err)

	_, err = EncodeGLB(nil)
	assert.Error(t, err)
}

func TestEulerToQuaternion_Identity(t *testing.T) {
	q := eulerToQuaternion([3]float64{0, 0, 0})
	assert.Equal(t, [4]float64{0, 0, 0, 1}, q)
}
