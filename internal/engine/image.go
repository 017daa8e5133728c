package engine

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

var (
	ErrImageEmpty   = errors.New("engine: image data is empty")
	ErrImageInvalid = errors.New("engine: invalid image data")
)

// DecodeImage decodes PNG, JPEG or GIF bytes.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrImageEmpty
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageInvalid, err)
	}
	return img, nil
}

// LoadImageFile reads and decodes an image file.
func LoadImageFile(path string) (image.Image, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeImage(b)
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// WritePNGFile encodes img as PNG at path.
func WritePNGFile(path string, img image.Image) error {
	b, err := EncodePNG(img)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ScaleInto draws src over the whole of dst, rescaling with CatmullRom when the
// sizes differ and copying directly when they match.
func ScaleInto(dst draw.Image, src image.Image) {
	db, sb := dst.Bounds(), src.Bounds()
	if db.Dx() == sb.Dx() && db.Dy() == sb.Dy() {
		draw.Draw(dst, db, src, sb.Min, draw.Src)
		return
	}
	draw.CatmullRom.Scale(dst, db, src, sb, draw.Src, nil)
}

// Resize returns src scaled to w×h as a new RGBA image. src is not modified.
func Resize(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	ScaleInto(dst, src)
	return dst
}
