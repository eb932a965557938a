package model

import "fmt"

// NewGeometry assembles geometry from parallel attribute arrays.
// normals and uvs may be nil; missing normals are computed from the faces.
// A nil index list draws the vertices in order.
func NewGeometry(positions [][3]float32, normals [][3]float32, uvs [][2]float32, indices []uint32) (*Geometry, error) {
	n := len(positions)
	if n == 0 {
		return nil, fmt.Errorf("geometry has no vertices")
	}
	if normals != nil && len(normals) != n {
		return nil, fmt.Errorf("normal count %d does not match vertex count %d", len(normals), n)
	}
	if uvs != nil && len(uvs) != n {
		return nil, fmt.Errorf("uv count %d does not match vertex count %d", len(uvs), n)
	}

	if indices == nil {
		indices = make([]uint32, n)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("index count %d is not a multiple of 3", len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= n {
			return nil, fmt.Errorf("index %d out of range (%d vertices)", idx, n)
		}
	}

	g := &Geometry{
		Vertices: make([]Vertex, n),
		Indices:  indices,
		Bounds:   EmptyBounds(),
	}
	for i, p := range positions {
		g.Vertices[i].Position = p
		if normals != nil {
			g.Vertices[i].Normal = normals[i]
		}
		if uvs != nil {
			g.Vertices[i].TexCoord = uvs[i]
		}
		g.Bounds.Expand(p)
	}

	if normals == nil {
		ComputeNormals(g.Vertices, g.Indices)
	}
	return g, nil
}

// ComputeNormals sets each vertex normal to the area-weighted average of the
// faces that use it. Degenerate faces contribute nothing.
func ComputeNormals(vertices []Vertex, indices []uint32) {
	sums := make([][3]float32, len(vertices))

	for f := 0; f+2 < len(indices); f += 3 {
		i0, i1, i2 := indices[f], indices[f+1], indices[f+2]
		v0 := vertices[i0].Position
		e1 := sub(vertices[i1].Position, v0)
		e2 := sub(vertices[i2].Position, v0)
		n := Cross(e1, e2) // length is twice the face area

		for _, idx := range [3]uint32{i0, i1, i2} {
			sums[idx][0] += n[0]
			sums[idx][1] += n[1]
			sums[idx][2] += n[2]
		}
	}

	for i := range vertices {
		vertices[i].Normal = Normalize(sums[i])
	}
}
