package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func tgaFile(imageType byte, descriptor byte, body []byte) []byte {
	header := make([]byte, 18)
	header[2] = imageType
	header[12] = 2 // width
	header[14] = 1 // height
	header[16] = 32
	header[17] = descriptor
	return append(header, body...)
}

func TestDecodeTGAUncompressed(t *testing.T) {
	// Two BGRA pixels: red, then translucent blue.
	data := tgaFile(tgaTrueColor, 0x20, []byte{0, 0, 255, 255, 255, 0, 0, 128})

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("pixel 0 = %v", got)
	}
	if got := img.NRGBAAt(1, 0); got != (color.NRGBA{B: 255, A: 128}) {
		t.Errorf("pixel 1 = %v", got)
	}
}

func TestDecodeTGARLE(t *testing.T) {
	// One run packet repeating a green pixel twice.
	data := tgaFile(tgaTrueColorRLE, 0x20, []byte{0x81, 0, 255, 0, 255})

	img, err := DecodeTGA(data)
	if err != nil {
		t.Fatalf("DecodeTGA: %v", err)
	}
	for x := 0; x < 2; x++ {
		if got := img.NRGBAAt(x, 0); got != (color.NRGBA{G: 255, A: 255}) {
			t.Errorf("pixel %d = %v", x, got)
		}
	}
}

func TestDecodeTGAErrors(t *testing.T) {
	tests := map[string][]byte{
		"short header":  {0, 0, 2},
		"color mapped":  append([]byte{0, 1, 2}, make([]byte, 15)...),
		"truncated rle": tgaFile(tgaTrueColorRLE, 0x20, []byte{0x81, 0}),
		"truncated raw": tgaFile(tgaTrueColor, 0x20, []byte{0, 0, 255}),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeTGA(data); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestLoadSniffsFormat(t *testing.T) {
	// Extension does not matter for signature formats.
	img, err := Load("photo.jpeg", encodePNG(t, 4, 2), 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Errorf("size = %v", img.Bounds())
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	if _, err := Load("x.png", []byte("not an image"), 0); err == nil {
		t.Error("expected error")
	}
}

func TestLoadDownscales(t *testing.T) {
	img, err := Load("big.png", encodePNG(t, 64, 16), 32)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 8 {
		t.Errorf("size = %v, want 32x8", img.Bounds())
	}
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{100, 50, 0, 100, 50},
		{100, 50, 200, 100, 50},
		{100, 50, 50, 50, 25},
		{50, 100, 50, 25, 50},
		{1000, 1, 10, 10, 1},
	}
	for _, tt := range tests {
		w, h := FitSize(tt.w, tt.h, tt.max)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("FitSize(%d,%d,%d) = %d,%d want %d,%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestToNRGBAReusesPackedImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	if ToNRGBA(src, 0) != src {
		t.Error("expected the same image back")
	}
}

func TestLoadKeepsStraightAlpha(t *testing.T) {
	// A half-transparent white pixel must stay white, not be darkened to gray.
	src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 128})
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}

	img, err := Load("edge.png", buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := img.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, G: 255, B: 255, A: 128}) {
		t.Errorf("pixel = %v, want straight white at alpha 128", got)
	}
}

func TestToNRGBAUnpremultipliesRGBA(t *testing.T) {
	// Premultiplied half-transparent white.
	src := image.NewRGBA(image.Rect(0, 0, 1, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 128, G: 128, B: 128, A: 128})

	got := ToNRGBA(src, 0).NRGBAAt(0, 0)
	if got.A != 128 || got.R < 254 || got.G < 254 || got.B < 254 {
		t.Errorf("pixel = %v, want straight white at alpha 128", got)
	}
}
