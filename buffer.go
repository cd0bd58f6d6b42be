package flowmap

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/chewxy/math32"
)

// Texel is one cell of a flow buffer.
// R and G hold the stamped velocity, B the stamp intensity; A is unused by
// the kernel but decays with the other channels.
type Texel struct {
	R, G, B, A float32
}

// Scale returns the texel with all four channels multiplied by s.
func (t Texel) Scale(s float32) Texel {
	return Texel{R: t.R * s, G: t.G * s, B: t.B * s, A: t.A * s}
}

// Flow returns the velocity channels as a vector.
func (t Texel) Flow() Vec2 {
	return Vec2{X: t.R, Y: t.G}
}

// Buffer is a square grid of float texels, the CPU-side equivalent of a
// floating point render target.
//
// Texel (x, y) covers UV ((x+0.5)/size, (y+0.5)/size). Row 0 is v ≈ 0, the
// bottom of the texture; ToImage flips rows so the image top is v = 1.
type Buffer struct {
	size int
	data []float32 // RGBA, 4 floats per texel
}

// NewBuffer creates a zeroed buffer of size×size texels.
func NewBuffer(size int) (*Buffer, error) {
	if err := validateSize(size); err != nil {
		return nil, err
	}
	return &Buffer{
		size: size,
		data: make([]float32, size*size*4),
	}, nil
}

// Size returns the width (and height) of the buffer in texels.
func (b *Buffer) Size() int {
	return b.size
}

// Data returns the raw texel data, 4 floats per texel, row by row.
// Accelerators read and write it directly.
func (b *Buffer) Data() []float32 {
	return b.data
}

// Texel returns the texel at (x, y). Out-of-range coordinates return zero.
func (b *Buffer) Texel(x, y int) Texel {
	if x < 0 || x >= b.size || y < 0 || y >= b.size {
		return Texel{}
	}
	i := (y*b.size + x) * 4
	return Texel{R: b.data[i], G: b.data[i+1], B: b.data[i+2], A: b.data[i+3]}
}

// SetTexel sets the texel at (x, y). Out-of-range coordinates are ignored.
func (b *Buffer) SetTexel(x, y int, t Texel) {
	if x < 0 || x >= b.size || y < 0 || y >= b.size {
		return
	}
	i := (y*b.size + x) * 4
	b.data[i+0] = t.R
	b.data[i+1] = t.G
	b.data[i+2] = t.B
	b.data[i+3] = t.A
}

// TexelUV returns the UV coordinate of the center of texel (x, y).
func (b *Buffer) TexelUV(x, y int) Vec2 {
	s := float32(b.size)
	return Vec2{X: (float32(x) + 0.5) / s, Y: (float32(y) + 0.5) / s}
}

// Sample returns the bilinearly filtered value at (u, v), clamping to the
// edge texels outside [0, 1].
func (b *Buffer) Sample(u, v float32) Texel {
	s := float32(b.size)
	fx := u*s - 0.5
	fy := v*s - 0.5
	x0 := math32.Floor(fx)
	y0 := math32.Floor(fy)
	tx := fx - x0
	ty := fy - y0

	ix, iy := b.clampIndex(x0), b.clampIndex(y0)
	ix1, iy1 := b.clampIndex(x0+1), b.clampIndex(y0+1)

	t00 := b.Texel(ix, iy)
	t10 := b.Texel(ix1, iy)
	t01 := b.Texel(ix, iy1)
	t11 := b.Texel(ix1, iy1)

	return Texel{
		R: bilerp(t00.R, t10.R, t01.R, t11.R, tx, ty),
		G: bilerp(t00.G, t10.G, t01.G, t11.G, tx, ty),
		B: bilerp(t00.B, t10.B, t01.B, t11.B, tx, ty),
		A: bilerp(t00.A, t10.A, t01.A, t11.A, tx, ty),
	}
}

func (b *Buffer) clampIndex(f float32) int {
	if !(f > 0) { // also catches NaN
		return 0
	}
	if f >= float32(b.size-1) {
		return b.size - 1
	}
	return int(f)
}

func bilerp(v00, v10, v01, v11, tx, ty float32) float32 {
	top := mix(v00, v10, tx)
	bottom := mix(v01, v11, tx)
	return mix(top, bottom, ty)
}

// Scale multiplies every channel of every texel by s.
func (b *Buffer) Scale(s float32) {
	for i := range b.data {
		b.data[i] *= s
	}
}

// Clear zeroes the buffer.
func (b *Buffer) Clear() {
	clear(b.data)
}

// CopyFrom copies the contents of src, which must have the same size.
func (b *Buffer) CopyFrom(src *Buffer) error {
	if src.size != b.size {
		return fmt.Errorf("%w: copy from %d×%d into %d×%d buffer",
			ErrConfiguration, src.size, src.size, b.size, b.size)
	}
	copy(b.data, src.data)
	return nil
}

// MaxIntensity returns the largest value of the intensity channel.
func (b *Buffer) MaxIntensity() float32 {
	var m float32
	for i := 2; i < len(b.data); i += 4 {
		m = math32.Max(m, b.data[i])
	}
	return m
}

// IsZero reports whether every channel of every texel is zero.
func (b *Buffer) IsZero() bool {
	for _, f := range b.data {
		if f != 0 {
			return false
		}
	}
	return true
}

// EncodeTexel converts a texel to an 8-bit preview color.
// Signed flow channels map [-1, 1] onto [0, 255] (0 flow is mid grey);
// intensity maps [0, 1] onto [0, 255].
func EncodeTexel(t Texel) color.NRGBA {
	return color.NRGBA{
		R: to8(0.5 + 0.5*t.R),
		G: to8(0.5 + 0.5*t.G),
		B: to8(t.B),
		A: 0xFF,
	}
}

func to8(f float32) uint8 {
	return uint8(clamp01(f)*255 + 0.5)
}

// ToImage renders the buffer as an 8-bit preview image using EncodeTexel.
// Rows are flipped so the image top corresponds to v = 1.
func (b *Buffer) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.size, b.size))
	for y := 0; y < b.size; y++ {
		row := b.size - 1 - y
		for x := 0; x < b.size; x++ {
			img.SetNRGBA(x, row, EncodeTexel(b.Texel(x, y)))
		}
	}
	return img
}

// SavePNG saves the preview image to a PNG file.
func (b *Buffer) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	return png.Encode(f, b.ToImage())
}

// MaxSize is the largest supported buffer size in texels.
const MaxSize = 4096

func validateSize(size int) error {
	if size <= 0 || size > MaxSize {
		return fmt.Errorf("%w: size %d outside [1, %d]", ErrConfiguration, size, MaxSize)
	}
	return nil
}
