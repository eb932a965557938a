package scene

import "image"

// Filter selects how a texture is sampled.
type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
	FilterLinearMipmapLinear
)

// Texture is an image waiting for, or already in, GPU memory.
type Texture struct {
	// Source is the path the image was loaded from.
	Source     string
	Image      *image.NRGBA
	Anisotropy float32
	MagFilter  Filter
	MinFilter  Filter
	// Version increases each time Image is replaced in place.
	Version int
}

// NewTexture returns a texture with linear magnification and trilinear
// minification.
func NewTexture(source string, img *image.NRGBA) *Texture {
	return &Texture{
		Source:     source,
		Image:      img,
		Anisotropy: 1,
		MagFilter:  FilterLinear,
		MinFilter:  FilterLinearMipmapLinear,
	}
}

// Material is a lit surface with an optional color map.
type Material struct {
	Name      string
	BaseColor [4]float32
	Map       *Texture
	// NeedsUpdate asks the renderer to rebind the material state before the
	// next draw. The renderer clears it.
	NeedsUpdate bool
}

// NewMaterial returns an opaque white material.
func NewMaterial(name string) *Material {
	return &Material{Name: name, BaseColor: [4]float32{1, 1, 1, 1}}
}

// SetMap replaces the color map and returns the previous one.
func (m *Material) SetMap(tex *Texture) *Texture {
	prev := m.Map
	m.Map = tex
	m.NeedsUpdate = true
	return prev
}
