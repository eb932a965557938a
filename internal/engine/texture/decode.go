// Package texture decodes image files into straight-alpha RGBA pixels ready
// for upload.
package texture

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path"
	"strings"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Decode decodes image data. The name only selects the TGA decoder, which has
// no signature; every other format is sniffed from the data.
func Decode(name string, data []byte) (image.Image, error) {
	if strings.EqualFold(path.Ext(name), ".tga") {
		return DecodeTGA(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

// ToNRGBA converts img to a tightly packed, non-premultiplied RGBA image with
// its origin at 0,0. Images whose longer side exceeds maxSize are scaled down
// to fit, keeping the aspect ratio. maxSize <= 0 disables scaling.
func ToNRGBA(img image.Image, maxSize int) *image.NRGBA {
	b := img.Bounds()
	w, h := FitSize(b.Dx(), b.Dy(), maxSize)

	if w == b.Dx() && h == b.Dy() {
		if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*w {
			return n
		}
		out := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
		return out
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}

// FitSize returns w and h scaled so neither exceeds maxSize. Each side stays
// at least one pixel.
func FitSize(w, h, maxSize int) (int, int) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h
	}
	if w >= h {
		return maxSize, max(1, h*maxSize/w)
	}
	return max(1, w*maxSize/h), maxSize
}

// Load decodes data and converts it for upload in one step.
func Load(name string, data []byte, maxSize int) (*image.NRGBA, error) {
	img, err := Decode(name, data)
	if err != nil {
		return nil, err
	}
	return ToNRGBA(img, maxSize), nil
}
