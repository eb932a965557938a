package assets

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/engine/model"
	"github.com/Faultbox/mirror-viewer/internal/engine/scene"
	"github.com/Faultbox/mirror-viewer/internal/engine/texture"
	"github.com/Faultbox/mirror-viewer/internal/logger"
	"github.com/Faultbox/mirror-viewer/pkg/math"
)

// LoadModel fetches a glTF or GLB file and builds its default scene as a node
// tree. The returned root is not attached to any scene.
func (m *Manager) LoadModel(ctx context.Context, path string) (*scene.Node, error) {
	data, err := m.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	key, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}

	fsys := dirFS(key)
	doc := new(gltf.Document)
	if err := gltf.NewDecoderFS(bytes.NewReader(data), fsys).Decode(doc); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}

	b := &modelBuilder{
		doc:            doc,
		fsys:           fsys,
		maxTextureSize: m.maxTextureSize,
		materials:      make(map[int]*scene.Material),
		textures:       make(map[int]*scene.Texture),
		meshes:         make(map[int]*scene.Mesh),
	}
	root, err := b.build(path)
	if err != nil {
		return nil, fmt.Errorf("build model %s: %w", path, err)
	}

	logger.Info("model loaded",
		zap.String("path", path),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("meshes", len(doc.Meshes)),
		zap.Int("materials", len(doc.Materials)),
	)
	return root, nil
}

// modelBuilder converts one document. Materials, textures and meshes are
// shared by index like in the file.
type modelBuilder struct {
	doc            *gltf.Document
	fsys           fs.FS
	maxTextureSize int

	materials  map[int]*scene.Material
	textures   map[int]*scene.Texture
	meshes     map[int]*scene.Mesh
	defaultMat *scene.Material
}

func (b *modelBuilder) build(name string) (*scene.Node, error) {
	root := scene.NewNode(name)

	var roots []int
	switch {
	case b.doc.Scene != nil && *b.doc.Scene < len(b.doc.Scenes):
		roots = b.doc.Scenes[*b.doc.Scene].Nodes
	case len(b.doc.Scenes) > 0:
		roots = b.doc.Scenes[0].Nodes
	default:
		// No scene: every node that is nobody's child is a root.
		isChild := make(map[int]bool)
		for _, n := range b.doc.Nodes {
			for _, c := range n.Children {
				isChild[c] = true
			}
		}
		for i := range b.doc.Nodes {
			if !isChild[i] {
				roots = append(roots, i)
			}
		}
	}

	visiting := make(map[int]bool)
	for _, idx := range roots {
		child, err := b.node(idx, visiting)
		if err != nil {
			return nil, err
		}
		root.Add(child)
	}
	return root, nil
}

func (b *modelBuilder) node(idx int, visiting map[int]bool) (*scene.Node, error) {
	if idx < 0 || idx >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	if visiting[idx] {
		return nil, fmt.Errorf("node %d is its own ancestor", idx)
	}
	visiting[idx] = true
	defer delete(visiting, idx)

	src := b.doc.Nodes[idx]
	n := scene.NewNode(src.Name)

	if hasMatrix(src.Matrix) {
		m := math.FromFloat64(src.Matrix)
		n.Matrix = &m
	} else {
		n.Position = math.FromArray(toFloat32x3(src.TranslationOrDefault()))
		n.Rotation = math.QuatFromFloat64(src.RotationOrDefault())
		n.Scale = math.FromArray(toFloat32x3(src.ScaleOrDefault()))
	}

	if src.Mesh != nil {
		mesh, err := b.mesh(*src.Mesh)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", src.Name, err)
		}
		n.Mesh = mesh
		if n.Name == "" {
			n.Name = mesh.Name
		}
	}

	for _, c := range src.Children {
		child, err := b.node(c, visiting)
		if err != nil {
			return nil, err
		}
		n.Add(child)
	}
	return n, nil
}

// hasMatrix reports whether m is set to something other than identity.
func hasMatrix(m [16]float64) bool {
	identity := [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	return m != [16]float64{} && m != identity
}

func toFloat32x3(v [3]float64) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

func (b *modelBuilder) mesh(idx int) (*scene.Mesh, error) {
	if mesh, ok := b.meshes[idx]; ok {
		return mesh, nil
	}
	if idx < 0 || idx >= len(b.doc.Meshes) {
		return nil, fmt.Errorf("mesh index %d out of range", idx)
	}

	src := b.doc.Meshes[idx]
	mesh := &scene.Mesh{Name: src.Name}
	for i, p := range src.Primitives {
		if p.Mode != gltf.PrimitiveTriangles {
			logger.Warn("skipping non-triangle primitive",
				zap.String("mesh", src.Name), zap.Int("primitive", i))
			continue
		}
		geo, err := b.geometry(p)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", src.Name, i, err)
		}
		mat, err := b.material(p.Material)
		if err != nil {
			return nil, fmt.Errorf("mesh %q primitive %d: %w", src.Name, i, err)
		}
		mesh.Primitives = append(mesh.Primitives, &scene.Primitive{Geometry: geo, Material: mat})
	}
	b.meshes[idx] = mesh
	return mesh, nil
}

func (b *modelBuilder) accessor(idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("accessor index %d out of range", idx)
	}
	return b.doc.Accessors[idx], nil
}

func (b *modelBuilder) geometry(p *gltf.Primitive) (*model.Geometry, error) {
	posIdx, ok := p.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("missing POSITION attribute")
	}
	acr, err := b.accessor(posIdx)
	if err != nil {
		return nil, err
	}
	positions, err := modeler.ReadPosition(b.doc, acr, nil)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	var normals [][3]float32
	if idx, ok := p.Attributes[gltf.NORMAL]; ok {
		if acr, err = b.accessor(idx); err != nil {
			return nil, err
		}
		if normals, err = modeler.ReadNormal(b.doc, acr, nil); err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
	}

	var uvs [][2]float32
	if idx, ok := p.Attributes[gltf.TEXCOORD_0]; ok {
		if acr, err = b.accessor(idx); err != nil {
			return nil, err
		}
		if uvs, err = modeler.ReadTextureCoord(b.doc, acr, nil); err != nil {
			return nil, fmt.Errorf("read uvs: %w", err)
		}
	}

	var indices []uint32
	if p.Indices != nil {
		if acr, err = b.accessor(*p.Indices); err != nil {
			return nil, err
		}
		if indices, err = modeler.ReadIndices(b.doc, acr, nil); err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	}

	return model.NewGeometry(positions, normals, uvs, indices)
}

func (b *modelBuilder) material(idx *int) (*scene.Material, error) {
	if idx == nil {
		if b.defaultMat == nil {
			b.defaultMat = scene.NewMaterial("default")
		}
		return b.defaultMat, nil
	}
	if mat, ok := b.materials[*idx]; ok {
		return mat, nil
	}
	if *idx < 0 || *idx >= len(b.doc.Materials) {
		return nil, fmt.Errorf("material index %d out of range", *idx)
	}

	src := b.doc.Materials[*idx]
	mat := scene.NewMaterial(src.Name)
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if f := pbr.BaseColorFactor; f != nil {
			mat.BaseColor = [4]float32{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])}
		}
		if pbr.BaseColorTexture != nil {
			tex, err := b.texture(pbr.BaseColorTexture.Index)
			if err != nil {
				// A broken embedded image leaves the material untextured.
				logger.Warn("base color texture unavailable",
					zap.String("material", src.Name), zap.Error(err))
			} else {
				mat.Map = tex
			}
		}
	}
	b.materials[*idx] = mat
	return mat, nil
}

func (b *modelBuilder) texture(idx int) (*scene.Texture, error) {
	if tex, ok := b.textures[idx]; ok {
		return tex, nil
	}
	if idx < 0 || idx >= len(b.doc.Textures) {
		return nil, fmt.Errorf("texture index %d out of range", idx)
	}
	src := b.doc.Textures[idx]
	if src.Source == nil || *src.Source < 0 || *src.Source >= len(b.doc.Images) {
		return nil, fmt.Errorf("texture %d has no image", idx)
	}

	img := b.doc.Images[*src.Source]
	data, err := b.imageData(img)
	if err != nil {
		return nil, err
	}
	name := img.Name
	if name == "" {
		name = img.URI
	}
	pix, err := texture.Load(name, data, b.maxTextureSize)
	if err != nil {
		return nil, err
	}

	tex := scene.NewTexture(name, pix)
	b.textures[idx] = tex
	return tex, nil
}

// imageData returns the encoded bytes of an image stored in a buffer view, a
// data URI or a file next to the model.
func (b *modelBuilder) imageData(img *gltf.Image) ([]byte, error) {
	if img.BufferView != nil {
		if *img.BufferView < 0 || *img.BufferView >= len(b.doc.BufferViews) {
			return nil, fmt.Errorf("image buffer view %d out of range", *img.BufferView)
		}
		bv := b.doc.BufferViews[*img.BufferView]
		if bv.Buffer < 0 || bv.Buffer >= len(b.doc.Buffers) {
			return nil, fmt.Errorf("image buffer %d out of range", bv.Buffer)
		}
		buf := b.doc.Buffers[bv.Buffer].Data
		end := bv.ByteOffset + bv.ByteLength
		if end > len(buf) {
			return nil, fmt.Errorf("image buffer view %d exceeds buffer", *img.BufferView)
		}
		return buf[bv.ByteOffset:end], nil
	}
	if img.IsEmbeddedResource() {
		return img.MarshalData()
	}
	if b.fsys == nil || img.URI == "" {
		return nil, fmt.Errorf("image %q cannot be resolved", img.URI)
	}
	name, err := url.PathUnescape(img.URI)
	if err != nil {
		name = img.URI
	}
	return fs.ReadFile(b.fsys, name)
}
