// Package scene holds the CPU-side scene graph the renderer draws.
// Nothing here touches OpenGL.
package scene

import (
	"github.com/Faultbox/mirror-viewer/internal/engine/model"
	"github.com/Faultbox/mirror-viewer/pkg/math"
)

// Node is one element of the scene hierarchy. A node with a Mesh is drawable.
type Node struct {
	Name     string
	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3
	// Matrix, when set, replaces the TRS fields.
	Matrix *math.Mat4

	Mesh *Mesh

	parent   *Node
	children []*Node
}

// NewNode returns a named node with identity transform.
func NewNode(name string) *Node {
	return &Node{
		Name:     name,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
	}
}

// IsMesh reports whether the node draws geometry.
func (n *Node) IsMesh() bool {
	return n.Mesh != nil
}

// Add appends child, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child if it is a direct child of n.
func (n *Node) Remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Parent returns the parent node or nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the direct children in insertion order.
func (n *Node) Children() []*Node {
	return n.children
}

// Traverse visits n and its descendants depth-first, each node before its
// children and children in order. Returning false from fn stops the walk.
func (n *Node) Traverse(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Traverse(fn) {
			return false
		}
	}
	return true
}

// FindMesh returns the first mesh node in traversal order whose name is name.
func (n *Node) FindMesh(name string) *Node {
	var found *Node
	n.Traverse(func(node *Node) bool {
		if node.IsMesh() && node.Name == name {
			found = node
			return false
		}
		return true
	})
	return found
}

// LocalMatrix returns the node transform relative to its parent.
func (n *Node) LocalMatrix() math.Mat4 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	return math.Compose(n.Position, n.Rotation, n.Scale)
}

// WorldMatrix returns the node transform relative to the root.
func (n *Node) WorldMatrix() math.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul(m)
	}
	return m
}

// Mesh is a set of primitives drawn with the owning node's transform.
type Mesh struct {
	Name       string
	Primitives []*Primitive
}

// Primitive is geometry drawn with one material.
type Primitive struct {
	Geometry *model.Geometry
	Material *Material
}

// Materials returns the distinct materials of the mesh in primitive order.
func (m *Mesh) Materials() []*Material {
	var out []*Material
	seen := make(map[*Material]bool)
	for _, p := range m.Primitives {
		if p.Material == nil || seen[p.Material] {
			continue
		}
		seen[p.Material] = true
		out = append(out, p.Material)
	}
	return out
}

// BoxFromObject returns the world-space bounding box of every mesh under root.
func BoxFromObject(root *Node) model.Bounds {
	box := model.EmptyBounds()
	root.Traverse(func(n *Node) bool {
		if !n.IsMesh() {
			return true
		}
		world := n.WorldMatrix()
		for _, p := range n.Mesh.Primitives {
			if p.Geometry == nil {
				continue
			}
			box = box.Union(p.Geometry.Bounds.Transform(world))
		}
		return true
	})
	return box
}
