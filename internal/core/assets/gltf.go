package assets

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	jsoniter "github.com/json-iterator/go"

	"github.com/zeusync/posesync/internal/core/scene"
)

const (
	glbMagic     = 0x46546C67 // "glTF"
	glbVersion   = 2
	glbChunkJSON = 0x4E4F534A // "JSON"
	glbHeader    = 12
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the subset of a glTF 2.0 document describing the node hierarchy.
// Meshes, skins and buffers are not needed to drive bones and are ignored.
type Document struct {
	Scene  *int        `json:"scene,omitempty"`
	Scenes []SceneDef  `json:"scenes"`
	Nodes  []NodeDef   `json:"nodes"`
	Asset  AssetHeader `json:"asset"`
}

type AssetHeader struct {
	Version   string `json:"version"`
	Generator string `json:"generator,omitempty"`
}

type SceneDef struct {
	Name  string `json:"name,omitempty"`
	Nodes []int  `json:"nodes"`
}

type NodeDef struct {
	Name        string    `json:"name,omitempty"`
	Children    []int     `json:"children,omitempty"`
	Translation []float64 `json:"translation,omitempty"`
	// Rotation is a unit quaternion in x, y, z, w order.
	Rotation []float64 `json:"rotation,omitempty"`
	Scale    []float64 `json:"scale,omitempty"`
	// Matrix is column-major and replaces the TRS properties when present.
	Matrix []float64 `json:"matrix,omitempty"`
}

// Parse decodes a .gltf JSON document or a binary .glb container and builds
// the default scene. The returned node is named after the scene and has the
// scene's root nodes as children.
func Parse(data []byte) (*scene.Node, error) {
	if isGLB(data) {
		chunk, err := glbJSON(data)
		if err != nil {
			return nil, err
		}
		data = chunk
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAsset, err)
	}
	return doc.Build()
}

// Build instantiates the default scene of doc.
func (doc *Document) Build() (*scene.Node, error) {
	if len(doc.Scenes) == 0 {
		return nil, ErrNoScene
	}
	index := 0
	if doc.Scene != nil {
		index = *doc.Scene
	}
	if index < 0 || index >= len(doc.Scenes) {
		return nil, fmt.Errorf("%w: scene %d out of range", ErrInvalidAsset, index)
	}

	nodes := make([]*scene.Node, len(doc.Nodes))
	for i := range doc.Nodes {
		n, err := doc.Nodes[i].node(i)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}

	// glTF requires a strict forest; a node with two parents or a cycle is rejected.
	parented := make([]bool, len(nodes))
	for i, def := range doc.Nodes {
		for _, c := range def.Children {
			if c < 0 || c >= len(nodes) {
				return nil, fmt.Errorf("%w: node %d has child %d out of range", ErrInvalidAsset, i, c)
			}
			if parented[c] || c == i {
				return nil, fmt.Errorf("%w: node %d has more than one parent", ErrInvalidAsset, c)
			}
			parented[c] = true
			nodes[i].Add(nodes[c])
		}
	}

	def := doc.Scenes[index]
	name := def.Name
	if name == "" {
		name = "Scene"
	}
	root := scene.NewNode(name)
	for _, i := range def.Nodes {
		if i < 0 || i >= len(nodes) {
			return nil, fmt.Errorf("%w: scene node %d out of range", ErrInvalidAsset, i)
		}
		if parented[i] || nodes[i].Parent() != nil {
			return nil, fmt.Errorf("%w: scene node %d is not a root", ErrInvalidAsset, i)
		}
		root.Add(nodes[i])
	}
	if cyclic(nodes, parented) {
		return nil, fmt.Errorf("%w: node hierarchy has a cycle", ErrInvalidAsset)
	}
	return root, nil
}

func (d *NodeDef) node(index int) (*scene.Node, error) {
	name := d.Name
	if name == "" {
		name = fmt.Sprintf("node_%d", index)
	}
	n := scene.NewNode(name)

	if d.Matrix != nil {
		if len(d.Matrix) != 16 {
			return nil, fmt.Errorf("%w: node %d matrix has %d elements", ErrInvalidAsset, index, len(d.Matrix))
		}
		var m mgl64.Mat4
		copy(m[:], d.Matrix)
		n.Position, n.Quaternion, n.Scale = scene.Decompose(m)
		return n, nil
	}

	if d.Translation != nil {
		if len(d.Translation) != 3 {
			return nil, fmt.Errorf("%w: node %d translation", ErrInvalidAsset, index)
		}
		n.Position = mgl64.Vec3{d.Translation[0], d.Translation[1], d.Translation[2]}
	}
	if d.Rotation != nil {
		if len(d.Rotation) != 4 {
			return nil, fmt.Errorf("%w: node %d rotation", ErrInvalidAsset, index)
		}
		q := mgl64.Quat{W: d.Rotation[3], V: mgl64.Vec3{d.Rotation[0], d.Rotation[1], d.Rotation[2]}}
		if q.Len() < 1e-9 {
			q = mgl64.QuatIdent()
		}
		n.Quaternion = q.Normalize()
	}
	if d.Scale != nil {
		if len(d.Scale) != 3 {
			return nil, fmt.Errorf("%w: node %d scale", ErrInvalidAsset, index)
		}
		n.Scale = mgl64.Vec3{d.Scale[0], d.Scale[1], d.Scale[2]}
	}
	return n, nil
}

// cyclic reports nodes that never reach a parentless ancestor.
func cyclic(nodes []*scene.Node, parented []bool) bool {
	for i, n := range nodes {
		if !parented[i] {
			continue
		}
		steps := 0
		for p := n.Parent(); p != nil; p = p.Parent() {
			if steps++; steps > len(nodes) {
				return true
			}
		}
	}
	return false
}

func isGLB(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data) == glbMagic
}

// glbJSON returns the JSON chunk of a binary glTF container.
func glbJSON(data []byte) ([]byte, error) {
	if len(data) < glbHeader+8 {
		return nil, fmt.Errorf("%w: truncated glb header", ErrInvalidAsset)
	}
	if v := binary.LittleEndian.Uint32(data[4:]); v != glbVersion {
		return nil, fmt.Errorf("%w: glb version %d", ErrInvalidAsset, v)
	}
	total := int(binary.LittleEndian.Uint32(data[8:]))
	if total > len(data) {
		return nil, fmt.Errorf("%w: glb length %d exceeds %d bytes", ErrInvalidAsset, total, len(data))
	}

	chunkLen := int(binary.LittleEndian.Uint32(data[glbHeader:]))
	chunkType := binary.LittleEndian.Uint32(data[glbHeader+4:])
	if chunkType != glbChunkJSON {
		return nil, fmt.Errorf("%w: first glb chunk is not JSON", ErrInvalidAsset)
	}
	start := glbHeader + 8
	if chunkLen < 0 || start+chunkLen > total {
		return nil, fmt.Errorf("%w: glb JSON chunk overruns container", ErrInvalidAsset)
	}
	return bytes.TrimRight(data[start:start+chunkLen], " \x00"), nil
}

// EncodeGLB wraps a glTF JSON document into a binary container without a BIN chunk.
func EncodeGLB(doc []byte) []byte {
	pad := (4 - len(doc)%4) % 4
	chunkLen := len(doc) + pad
	out := make([]byte, glbHeader+8+chunkLen)
	binary.LittleEndian.PutUint32(out[0:], glbMagic)
	binary.LittleEndian.PutUint32(out[4:], glbVersion)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(out)))
	binary.LittleEndian.PutUint32(out[12:], uint32(chunkLen))
	binary.LittleEndian.PutUint32(out[16:], glbChunkJSON)
	copy(out[20:], doc)
	for i := 20 + len(doc); i < len(out); i++ {
		out[i] = ' '
	}
	return out
}

// Export serialises the hierarchy under root as a single-scene glTF document.
// root itself becomes the scene; its children are the scene's root nodes.
func Export(root *scene.Node) ([]byte, error) {
	doc := Document{Asset: AssetHeader{Version: "2.0", Generator: "posesync"}}
	var walk func(n *scene.Node) int
	walk = func(n *scene.Node) int {
		i := len(doc.Nodes)
		q := n.Quaternion
		doc.Nodes = append(doc.Nodes, NodeDef{
			Name:        n.Name,
			Translation: []float64{n.Position[0], n.Position[1], n.Position[2]},
			Rotation:    []float64{q.V[0], q.V[1], q.V[2], q.W},
			Scale:       []float64{n.Scale[0], n.Scale[1], n.Scale[2]},
		})
		for _, c := range n.Children() {
			child := walk(c)
			doc.Nodes[i].Children = append(doc.Nodes[i].Children, child)
		}
		return i
	}

	def := SceneDef{Name: root.Name}
	for _, c := range root.Children() {
		def.Nodes = append(def.Nodes, walk(c))
	}
	doc.Scenes = []SceneDef{def}
	return json.Marshal(&doc)
}
