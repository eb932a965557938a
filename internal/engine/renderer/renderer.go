// Package renderer draws a scene.Scene with OpenGL.
package renderer

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/engine/camera"
	"github.com/Faultbox/mirror-viewer/internal/engine/model"
	"github.com/Faultbox/mirror-viewer/internal/engine/scene"
	"github.com/Faultbox/mirror-viewer/internal/engine/shader"
	"github.com/Faultbox/mirror-viewer/internal/logger"
	"github.com/Faultbox/mirror-viewer/pkg/math"
)

// Config holds renderer configuration.
type Config struct {
	Width       int
	Height      int
	MSAASamples int
}

type gpuGeometry struct {
	vao, vbo, ebo uint32
	indexCount    int32
}

type gpuTexture struct {
	id      uint32
	version int
}

// Renderer uploads scene resources on first use and draws them every frame.
// All methods must run on the thread that owns the GL context.
type Renderer struct {
	config Config

	program *shader.Program

	geometries map[*model.Geometry]*gpuGeometry
	textures   map[*scene.Texture]*gpuTexture

	whiteTex      uint32
	maxAnisotropy float32
}

// New creates a new renderer.
// IMPORTANT: Must be called AFTER OpenGL context is created!
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		config:     cfg,
		geometries: make(map[*model.Geometry]*gpuGeometry),
		textures:   make(map[*scene.Texture]*gpuTexture),
	}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	logger.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	if cfg.MSAASamples > 0 {
		gl.Enable(gl.MULTISAMPLE)
	}

	gl.GetFloatv(gl.MAX_TEXTURE_MAX_ANISOTROPY, &r.maxAnisotropy)
	if r.maxAnisotropy < 1 {
		r.maxAnisotropy = 1
	}

	var err error
	r.program, err = shader.NewProgram(meshVertexShader, meshFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("mesh shader: %w", err)
	}

	r.whiteTex = r.createWhiteTexture()
	r.SetSize(cfg.Width, cfg.Height)

	logger.Debug("renderer ready", zap.Float32("max_anisotropy", r.maxAnisotropy))
	return r, nil
}

// MaxAnisotropy returns the largest anisotropic filtering level the driver supports.
func (r *Renderer) MaxAnisotropy() float32 {
	return r.maxAnisotropy
}

// SetSize sets the output viewport in pixels.
func (r *Renderer) SetSize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	logger.Debug("renderer resized",
		zap.Int("width", width),
		zap.Int("height", height),
	)
}

// Size returns the current viewport size.
func (r *Renderer) Size() (int, int) {
	return r.config.Width, r.config.Height
}

// ReadPixels reads the back buffer after Render as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() (pixels []byte, width, height int) {
	width, height = r.config.Width, r.config.Height
	if width <= 0 || height <= 0 {
		return nil, 0, 0
	}
	pixels = make([]byte, width*height*4)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadBuffer(gl.BACK)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, width, height
}

// Render draws every mesh under s.Root as seen from cam.
func (r *Renderer) Render(s *scene.Scene, cam *camera.PerspectiveCamera) {
	gl.ClearColor(s.Background[0], s.Background[1], s.Background[2], 1.0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	r.program.Use()
	r.program.SetMat4("uView", cam.ViewMatrix())
	r.program.SetMat4("uProj", cam.Projection())
	r.program.SetVec3("uAmbient", s.Ambient.Radiance())
	r.program.SetVec3("uLightColor", s.Directional.Radiance())
	r.program.SetVec3("uLightDir", s.Directional.Direction())
	r.program.SetInt("uMap", 0)
	gl.ActiveTexture(gl.TEXTURE0)

	s.Root.Traverse(func(n *scene.Node) bool {
		if n.IsMesh() {
			r.drawMesh(n.WorldMatrix(), n.Mesh)
		}
		return true
	})

	gl.BindVertexArray(0)
}

func (r *Renderer) drawMesh(world math.Mat4, mesh *scene.Mesh) {
	r.program.SetMat4("uModel", world)
	r.program.SetMat4("uNormalMatrix", world.NormalMatrix())

	for _, prim := range mesh.Primitives {
		if prim.Geometry == nil || len(prim.Geometry.Indices) == 0 {
			continue
		}
		geo := r.geometry(prim.Geometry)

		color := [4]float32{1, 1, 1, 1}
		tex := r.whiteTex
		if mat := prim.Material; mat != nil {
			color = mat.BaseColor
			if mat.Map != nil {
				tex = r.texture(mat.Map)
			}
			mat.NeedsUpdate = false
		}
		r.program.SetVec4("uBaseColor", color)
		gl.BindTexture(gl.TEXTURE_2D, tex)

		gl.BindVertexArray(geo.vao)
		gl.DrawElements(gl.TRIANGLES, geo.indexCount, gl.UNSIGNED_INT, nil)
	}
}

func (r *Renderer) geometry(g *model.Geometry) *gpuGeometry {
	if geo, ok := r.geometries[g]; ok {
		return geo
	}

	geo := &gpuGeometry{indexCount: int32(len(g.Indices))}
	gl.GenVertexArrays(1, &geo.vao)
	gl.BindVertexArray(geo.vao)

	gl.GenBuffers(1, &geo.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, geo.vbo)
	vertexSize := int(unsafe.Sizeof(model.Vertex{}))
	gl.BufferData(gl.ARRAY_BUFFER, len(g.Vertices)*vertexSize, unsafe.Pointer(&g.Vertices[0]), gl.STATIC_DRAW)

	// Position
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, int32(vertexSize), 0)
	gl.EnableVertexAttribArray(0)
	// Normal
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, int32(vertexSize), 3*4)
	gl.EnableVertexAttribArray(1)
	// TexCoord
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, int32(vertexSize), 6*4)
	gl.EnableVertexAttribArray(2)

	gl.GenBuffers(1, &geo.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, geo.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(g.Indices)*4, unsafe.Pointer(&g.Indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)
	r.geometries[g] = geo
	return geo
}

// texture returns the GL name for t, uploading it when new or changed.
func (r *Renderer) texture(t *scene.Texture) uint32 {
	if t.Image == nil || len(t.Image.Pix) == 0 {
		return r.whiteTex
	}
	cached, ok := r.textures[t]
	if ok && cached.version == t.Version {
		return cached.id
	}
	if !ok {
		cached = &gpuTexture{}
		gl.GenTextures(1, &cached.id)
		r.textures[t] = cached
	}
	cached.version = t.Version

	img := t.Image
	gl.BindTexture(gl.TEXTURE_2D, cached.id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(img.Bounds().Dx()), int32(img.Bounds().Dy()), 0,
		gl.RGBA, gl.UNSIGNED_BYTE, unsafe.Pointer(&img.Pix[0]))

	minFilter := glFilter(t.MinFilter)
	if t.MinFilter == scene.FilterLinearMipmapLinear {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, glFilter(t.MagFilter))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.REPEAT)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.REPEAT)

	aniso := t.Anisotropy
	if aniso > r.maxAnisotropy {
		aniso = r.maxAnisotropy
	}
	if aniso > 1 {
		gl.TexParameterf(gl.TEXTURE_2D, gl.TEXTURE_MAX_ANISOTROPY, aniso)
	}

	logger.Debug("texture uploaded",
		zap.String("source", t.Source),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Float32("anisotropy", aniso),
	)
	return cached.id
}

func glFilter(f scene.Filter) int32 {
	switch f {
	case scene.FilterNearest:
		return gl.NEAREST
	case scene.FilterLinearMipmapLinear:
		return gl.LINEAR_MIPMAP_LINEAR
	default:
		return gl.LINEAR
	}
}

// Release deletes the GPU copy of t. The texture is uploaded again if drawn later.
func (r *Renderer) Release(t *scene.Texture) {
	cached, ok := r.textures[t]
	if !ok {
		return
	}
	gl.DeleteTextures(1, &cached.id)
	delete(r.textures, t)
}

// ReleaseGeometry deletes the GPU buffers of g.
func (r *Renderer) ReleaseGeometry(g *model.Geometry) {
	geo, ok := r.geometries[g]
	if !ok {
		return
	}
	gl.DeleteVertexArrays(1, &geo.vao)
	gl.DeleteBuffers(1, &geo.vbo)
	gl.DeleteBuffers(1, &geo.ebo)
	delete(r.geometries, g)
}

func (r *Renderer) createWhiteTexture() uint32 {
	var id uint32
	white := []uint8{255, 255, 255, 255}
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, 1, 1, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(white))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	return id
}

// Close cleans up renderer resources.
func (r *Renderer) Close() {
	logger.Info("closing renderer",
		zap.Int("geometries", len(r.geometries)),
		zap.Int("textures", len(r.textures)),
	)
	for g := range r.geometries {
		r.ReleaseGeometry(g)
	}
	for t := range r.textures {
		r.Release(t)
	}
	if r.whiteTex != 0 {
		gl.DeleteTextures(1, &r.whiteTex)
		r.whiteTex = 0
	}
	if r.program != nil {
		r.program.Delete()
	}
}
