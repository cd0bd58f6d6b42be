// Package display renders a flow field onto an image.
//
// A Distorter samples a flowmap.Buffer on a coarse grid and shifts the
// columns of a source image by the sampled velocity, weighted by the squared
// stamp intensity:
//
//	cell   = floor(uv * cells) / cells
//	tex    = flow(cell)
//	offset = tex.xy * strength * tex.z² * scale
//	u'     = fract(u - offset.x * width * spread)
//
// Only the horizontal component moves pixels; rows stay in place.
package display

import (
	"errors"
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/gogpu/flowmap"
	"golang.org/x/image/draw"
)

var (
	// ErrNoImage is returned by Render when the mode needs a source image
	// and none was set.
	ErrNoImage = errors.New("display: no source image")

	// ErrNilTarget is returned by Render for a nil destination or field.
	ErrNilTarget = errors.New("display: nil destination or flow buffer")
)

// Distorter draws a source image displaced by a flow field.
//
// A Distorter caches the source image rescaled to the last output size.
// It is not safe for concurrent use.
type Distorter struct {
	opts options

	src    image.Image
	scaled *image.RGBA

	offsets []float32 // per-cell horizontal shift in UV units
}

// New creates a Distorter.
func New(opts ...Option) (*Distorter, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.cells <= 0 {
		return nil, fmt.Errorf("%w: display cells %d must be positive", flowmap.ErrConfiguration, o.cells)
	}
	for _, v := range []float32{o.strength, o.scale, o.spread} {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: display factors must be finite", flowmap.ErrConfiguration)
		}
	}
	return &Distorter{opts: o}, nil
}

// SetImage sets the source image. It is rescaled to the output size on the
// next Render.
func (d *Distorter) SetImage(img image.Image) {
	d.src = img
	d.scaled = nil
}

// Image returns the source image.
func (d *Distorter) Image() image.Image {
	return d.src
}

// SetMode changes the render mode.
func (d *Distorter) SetMode(m Mode) {
	d.opts.mode = m
}

// Mode returns the current render mode.
func (d *Distorter) Mode() Mode {
	return d.opts.mode
}

// Cells returns the flow sampling grid size.
func (d *Distorter) Cells() int {
	return d.opts.cells
}

// Render draws into dst. The flow buffer is addressed in UV space with the
// origin at the bottom-left, so the last row of dst samples v ≈ 0.
func (d *Distorter) Render(dst *image.RGBA, flow *flowmap.Buffer) error {
	if dst == nil || flow == nil {
		return ErrNilTarget
	}
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil
	}

	if d.opts.mode == ModeFlow {
		d.renderFlow(dst, flow)
		return nil
	}
	if d.src == nil {
		return ErrNoImage
	}
	d.ensureScaled(w, h)
	d.computeOffsets(flow, w)
	d.renderDistort(dst, flow, d.opts.mode == ModeOverlay)
	return nil
}

// ensureScaled rescales the source image to w x h if needed.
func (d *Distorter) ensureScaled(w, h int) {
	if d.scaled != nil && d.scaled.Bounds().Dx() == w && d.scaled.Bounds().Dy() == h {
		return
	}
	d.scaled = image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(d.scaled, d.scaled.Bounds(), d.src, d.src.Bounds(), draw.Src, nil)
	flowmap.Logger().Debug("display: source rescaled",
		"from", d.src.Bounds().Size(), "to", d.scaled.Bounds().Size())
}

// computeOffsets fills the per-cell horizontal shift for an output width.
func (d *Distorter) computeOffsets(flow *flowmap.Buffer, width int) {
	cells := d.opts.cells
	if cap(d.offsets) < cells*cells {
		d.offsets = make([]float32, cells*cells)
	}
	d.offsets = d.offsets[:cells*cells]

	dist := float32(width) * d.opts.spread
	for cy := 0; cy < cells; cy++ {
		for cx := 0; cx < cells; cx++ {
			tex := flow.Sample(float32(cx)/float32(cells), float32(cy)/float32(cells))
			d.offsets[cy*cells+cx] = d.offset(tex) * dist
		}
	}
}

// offset returns the horizontal UV offset encoded by a flow texel, before
// the width scaling.
func (d *Distorter) offset(tex flowmap.Texel) float32 {
	return tex.R * d.opts.strength * (tex.B * tex.B) * d.opts.scale
}

func (d *Distorter) renderDistort(dst *image.RGBA, flow *flowmap.Buffer, overlay bool) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	cells := d.opts.cells
	fw, fh := float32(w), float32(h)

	for y := 0; y < h; y++ {
		v := 1 - (float32(y)+0.5)/fh
		cy := cellIndex(v, cells)
		srcRow := d.scaled.Pix[y*d.scaled.Stride:]
		dstRow := dst.Pix[dst.PixOffset(b.Min.X, b.Min.Y+y):]

		for x := 0; x < w; x++ {
			u := (float32(x) + 0.5) / fw
			shifted := fract(u - d.offsets[cy*cells+cellIndex(u, cells)])
			sx := min(int(shifted*fw), w-1)

			s := srcRow[sx*4 : sx*4+4 : sx*4+4]
			p := dstRow[x*4 : x*4+4 : x*4+4]
			if !overlay {
				copy(p, s)
				continue
			}
			tex := flow.Sample(u, v)
			p[0] = to8(float32(s[0])/255 + tex.R/10)
			p[1] = to8(float32(s[1])/255 + tex.G/10)
			p[2] = to8(float32(s[2])/255 + tex.B/10)
			p[3] = 255
		}
	}
}

func (d *Distorter) renderFlow(dst *image.RGBA, flow *flowmap.Buffer) {
	b := dst.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		v := 1 - (float32(y)+0.5)/float32(h)
		row := dst.Pix[dst.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < w; x++ {
			tex := flow.Sample((float32(x)+0.5)/float32(w), v)
			p := row[x*4 : x*4+4 : x*4+4]
			p[0] = to8(tex.R)
			p[1] = to8(tex.G)
			p[2] = to8(tex.B)
			p[3] = 255
		}
	}
}

func cellIndex(u float32, cells int) int {
	i := int(math32.Floor(u * float32(cells)))
	return max(0, min(i, cells-1))
}

func fract(x float32) float32 {
	return x - math32.Floor(x)
}

func to8(f float32) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f*255 + 0.5)
}
