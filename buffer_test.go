package flowmap

import (
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func mustBuffer(t *testing.T, size int) *Buffer {
	t.Helper()
	b, err := NewBuffer(size)
	if err != nil {
		t.Fatalf("NewBuffer(%d) error = %v", size, err)
	}
	return b
}

func TestNewBuffer(t *testing.T) {
	b := mustBuffer(t, 8)
	if b.Size() != 8 {
		t.Errorf("Size() = %d, want 8", b.Size())
	}
	if len(b.Data()) != 8*8*4 {
		t.Errorf("len(Data()) = %d, want %d", len(b.Data()), 8*8*4)
	}
	if !b.IsZero() {
		t.Error("new buffer should be zero")
	}
}

func TestNewBufferInvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, MaxSize + 1} {
		_, err := NewBuffer(size)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("NewBuffer(%d) error = %v, want ErrConfiguration", size, err)
		}
	}
}

func TestBufferTexel(t *testing.T) {
	b := mustBuffer(t, 4)
	want := Texel{R: 0.25, G: -0.5, B: 0.75, A: 1}
	b.SetTexel(1, 2, want)

	if got := b.Texel(1, 2); got != want {
		t.Errorf("Texel(1, 2) = %+v, want %+v", got, want)
	}
	if got := b.Texel(2, 1); got != (Texel{}) {
		t.Errorf("Texel(2, 1) = %+v, want zero (row-major layout)", got)
	}

	// Out of range is ignored / zero.
	b.SetTexel(-1, 0, want)
	b.SetTexel(4, 0, want)
	if got := b.Texel(4, 4); got != (Texel{}) {
		t.Errorf("Texel(4, 4) = %+v, want zero", got)
	}
}

func TestBufferTexelUV(t *testing.T) {
	b := mustBuffer(t, 4)
	if got := b.TexelUV(0, 0); !got.Approx(V2(0.125, 0.125), 1e-6) {
		t.Errorf("TexelUV(0, 0) = %v, want (0.125, 0.125)", got)
	}
	if got := b.TexelUV(3, 1); !got.Approx(V2(0.875, 0.375), 1e-6) {
		t.Errorf("TexelUV(3, 1) = %v, want (0.875, 0.375)", got)
	}
}

func TestBufferSample(t *testing.T) {
	b := mustBuffer(t, 4)
	b.SetTexel(1, 1, Texel{R: 1, B: 1})
	b.SetTexel(2, 1, Texel{R: 3, B: 1})

	t.Run("texel center", func(t *testing.T) {
		uv := b.TexelUV(1, 1)
		if got := b.Sample(uv.X, uv.Y); !approxEqual(got.R, 1, 1e-6) {
			t.Errorf("Sample at center R = %v, want 1", got.R)
		}
	})

	t.Run("between texels", func(t *testing.T) {
		// Halfway between (1,1) and (2,1).
		if got := b.Sample(0.5, 0.375); !approxEqual(got.R, 2, 1e-6) {
			t.Errorf("Sample between R = %v, want 2", got.R)
		}
	})

	t.Run("clamp outside", func(t *testing.T) {
		for _, uv := range []Vec2{V2(-5, -5), V2(5, 5), V2(-0.1, 2)} {
			_ = b.Sample(uv.X, uv.Y) // must not panic
		}
		b.SetTexel(0, 0, Texel{B: 0.5})
		if got := b.Sample(-1, -1); !approxEqual(got.B, 0.5, 1e-6) {
			t.Errorf("Sample(-1, -1) B = %v, want edge texel 0.5", got.B)
		}
	})
}

func TestBufferScaleClearCopy(t *testing.T) {
	b := mustBuffer(t, 2)
	b.SetTexel(0, 0, Texel{R: 2, G: 4, B: 6, A: 8})
	b.Scale(0.5)
	if got := b.Texel(0, 0); got != (Texel{R: 1, G: 2, B: 3, A: 4}) {
		t.Errorf("after Scale(0.5) = %+v", got)
	}
	if got := b.MaxIntensity(); got != 3 {
		t.Errorf("MaxIntensity() = %v, want 3", got)
	}

	c := mustBuffer(t, 2)
	if err := c.CopyFrom(b); err != nil {
		t.Fatalf("CopyFrom() error = %v", err)
	}
	if c.Texel(0, 0) != b.Texel(0, 0) {
		t.Error("CopyFrom did not copy texels")
	}

	b.Clear()
	if !b.IsZero() {
		t.Error("Clear did not zero the buffer")
	}
	if c.IsZero() {
		t.Error("CopyFrom must not alias the source")
	}

	if err := c.CopyFrom(mustBuffer(t, 3)); !errors.Is(err, ErrConfiguration) {
		t.Errorf("CopyFrom(size mismatch) error = %v, want ErrConfiguration", err)
	}
}

func TestEncodeTexel(t *testing.T) {
	tests := []struct {
		name string
		in   Texel
		r, g uint8
		b    uint8
	}{
		{"zero", Texel{}, 128, 128, 0},
		{"positive flow", Texel{R: 1, G: 1, B: 1}, 255, 255, 255},
		{"negative flow", Texel{R: -1, G: -1}, 0, 0, 0},
		{"out of range clamps", Texel{R: 5, G: -5, B: 2}, 255, 0, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodeTexel(tt.in)
			if got.R != tt.r || got.G != tt.g || got.B != tt.b || got.A != 255 {
				t.Errorf("EncodeTexel(%+v) = %v, want {%d %d %d 255}", tt.in, got, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestBufferToImageFlipsRows(t *testing.T) {
	b := mustBuffer(t, 4)
	b.SetTexel(0, 0, Texel{B: 1}) // bottom-left in UV space

	img := b.ToImage()
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Fatalf("image bounds = %v, want 4x4", img.Bounds())
	}
	if got := img.NRGBAAt(0, 3).B; got != 255 {
		t.Errorf("bottom-left pixel B = %d, want 255", got)
	}
	if got := img.NRGBAAt(0, 0).B; got != 0 {
		t.Errorf("top-left pixel B = %d, want 0", got)
	}
}

func TestBufferSavePNG(t *testing.T) {
	b := mustBuffer(t, 8)
	b.SetTexel(3, 3, Texel{R: 0.5, B: 1})

	path := filepath.Join(t.TempDir(), "flow.png")
	if err := b.SavePNG(path); err != nil {
		t.Fatalf("SavePNG() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("decoded width = %d, want 8", img.Bounds().Dx())
	}
}
