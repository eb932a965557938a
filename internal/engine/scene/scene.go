package scene

import "github.com/Faultbox/mirror-viewer/internal/engine/lighting"

// Scene is everything drawn in one frame.
type Scene struct {
	Background  [3]float32
	Root        *Node
	Ambient     lighting.Ambient
	Directional lighting.Directional
}

// New returns an empty scene with a root node.
func New() *Scene {
	return &Scene{
		Background: [3]float32{1, 1, 1},
		Root:       NewNode("scene"),
	}
}

// Add attaches a node under the scene root.
func (s *Scene) Add(n *Node) {
	s.Root.Add(n)
}
