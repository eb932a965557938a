package texture

import (
	"fmt"
	"image"
	"image/color"
)

// TGA image types.
const (
	tgaTrueColor    = 2
	tgaTrueColorRLE = 10
)

type tgaHeader struct {
	width, height int
	bytesPerPixel int
	topToBottom   bool
	rle           bool
}

func parseTGAHeader(data []byte) (tgaHeader, []byte, error) {
	if len(data) < 18 {
		return tgaHeader{}, nil, fmt.Errorf("tga: header truncated")
	}
	if data[1] != 0 {
		return tgaHeader{}, nil, fmt.Errorf("tga: color-mapped images not supported")
	}

	h := tgaHeader{
		width:         int(data[12]) | int(data[13])<<8,
		height:        int(data[14]) | int(data[15])<<8,
		bytesPerPixel: int(data[16]) / 8,
		topToBottom:   data[17]&0x20 != 0,
	}
	switch data[2] {
	case tgaTrueColor:
	case tgaTrueColorRLE:
		h.rle = true
	default:
		return tgaHeader{}, nil, fmt.Errorf("tga: unsupported image type %d", data[2])
	}
	if h.bytesPerPixel != 3 && h.bytesPerPixel != 4 {
		return tgaHeader{}, nil, fmt.Errorf("tga: unsupported bit depth %d", data[16])
	}
	if h.width == 0 || h.height == 0 {
		return tgaHeader{}, nil, fmt.Errorf("tga: empty image")
	}

	offset := 18 + int(data[0])
	if offset > len(data) {
		return tgaHeader{}, nil, fmt.Errorf("tga: id field truncated")
	}
	return h, data[offset:], nil
}

// DecodeTGA decodes uncompressed or RLE true-color TGA data.
func DecodeTGA(data []byte) (*image.NRGBA, error) {
	h, pix, err := parseTGAHeader(data)
	if err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, h.width, h.height))
	total := h.width * h.height
	bpp := h.bytesPerPixel

	put := func(i int, px []byte) {
		x, y := i%h.width, i/h.width
		if !h.topToBottom {
			y = h.height - 1 - y
		}
		a := uint8(255)
		if bpp == 4 {
			a = px[3]
		}
		img.SetNRGBA(x, y, color.NRGBA{R: px[2], G: px[1], B: px[0], A: a})
	}

	if !h.rle {
		if len(pix) < total*bpp {
			return nil, fmt.Errorf("tga: pixel data truncated")
		}
		for i := 0; i < total; i++ {
			put(i, pix[i*bpp:])
		}
		return img, nil
	}

	i, p := 0, 0
	for i < total {
		if p >= len(pix) {
			return nil, fmt.Errorf("tga: rle data truncated at pixel %d", i)
		}
		packet := pix[p]
		p++
		count := int(packet&0x7f) + 1

		if packet&0x80 != 0 {
			if p+bpp > len(pix) {
				return nil, fmt.Errorf("tga: rle data truncated at pixel %d", i)
			}
			for n := 0; n < count && i < total; n++ {
				put(i, pix[p:])
				i++
			}
			p += bpp
			continue
		}

		for n := 0; n < count && i < total; n++ {
			if p+bpp > len(pix) {
				return nil, fmt.Errorf("tga: rle data truncated at pixel %d", i)
			}
			put(i, pix[p:])
			p += bpp
			i++
		}
	}
	return img, nil
}
