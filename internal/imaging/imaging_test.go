package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func checkerPNG(t *testing.T, w, h, cell int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDimensions(t *testing.T) {
	w, h, err := Dimensions(checkerPNG(t, 120, 80, 10))
	if err != nil {
		t.Fatal(err)
	}
	if w != 120 || h != 80 {
		t.Errorf("got %dx%d", w, h)
	}
	if _, _, err := Dimensions([]byte("not an image")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestCropPNG(t *testing.T) {
	data := checkerPNG(t, 100, 100, 10)

	out, err := CropPNG(data, image.Rect(10, 20, 40, 60))
	if err != nil {
		t.Fatalf("CropPNG: %v", err)
	}
	w, h, err := Dimensions(out)
	if err != nil {
		t.Fatal(err)
	}
	if w != 30 || h != 40 {
		t.Errorf("crop size = %dx%d, want 30x40", w, h)
	}

	clipped, err := CropPNG(data, image.Rect(90, 90, 150, 150))
	if err != nil {
		t.Fatalf("partial overlap should clip: %v", err)
	}
	if w, h, _ := Dimensions(clipped); w != 10 || h != 10 {
		t.Errorf("clipped size = %dx%d, want 10x10", w, h)
	}

	if _, err := CropPNG(data, image.Rect(200, 200, 220, 220)); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("err = %v, want ErrOutOfBounds", err)
	}
}

func TestFingerprint(t *testing.T) {
	a := checkerPNG(t, 64, 64, 8)
	fa, err := FingerprintBytes(a)
	if err != nil {
		t.Fatalf("FingerprintBytes: %v", err)
	}
	if len(fa) != 64 {
		t.Fatalf("fingerprint length = %d, want 64", len(fa))
	}
	for _, c := range fa {
		if c != '0' && c != '1' {
			t.Fatalf("fingerprint is not a bit string: %q", fa)
		}
	}
	again, _ := FingerprintBytes(a)
	if again != fa {
		t.Error("fingerprint is not deterministic")
	}
}
