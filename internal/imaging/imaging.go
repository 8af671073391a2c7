// Package imaging decodes page images, crops regions and computes perceptual fingerprints.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrOutOfBounds is returned when a crop rectangle does not overlap the image.
var ErrOutOfBounds = errors.New("region outside image bounds")

// Decode decodes any registered image format and reports the format name.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Dimensions reads only the image header.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Crop copies the part of img inside r (clipped to the image bounds) into a new RGBA image
// whose origin is (0,0).
func Crop(img image.Image, r image.Rectangle) (image.Image, error) {
	r = r.Add(img.Bounds().Min).Intersect(img.Bounds())
	if r.Empty() {
		return nil, ErrOutOfBounds
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, img, r, draw.Src, nil)
	return dst, nil
}

// CropPNG decodes data, crops r and re-encodes the region as PNG.
func CropPNG(data []byte, r image.Rectangle) ([]byte, error) {
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return CropImagePNG(img, r)
}

// CropImagePNG crops an already decoded image and encodes the region as PNG.
func CropImagePNG(img image.Image, r image.Rectangle) ([]byte, error) {
	sub, err := Crop(img, r)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, sub); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}

// Fingerprint returns the 64-bit perceptual hash of img as a fixed-length bit string.
func Fingerprint(img image.Image) (string, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("perception hash: %w", err)
	}
	return fmt.Sprintf("%064b", h.GetHash()), nil
}

// FingerprintBytes decodes data and fingerprints it.
func FingerprintBytes(data []byte) (string, error) {
	img, _, err := Decode(data)
	if err != nil {
		return "", err
	}
	return Fingerprint(img)
}
