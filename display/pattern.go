package display

import (
	"image"
	"image/color"
)

// Stripes returns a w x h image of vertical color bands, each period pixels
// wide. Hosts use it when no source image is given; vertical edges make the
// horizontal displacement easy to see.
func Stripes(w, h, period int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if period <= 0 {
		period = 1
	}
	palette := []color.RGBA{
		{R: 0x1f, G: 0x3b, B: 0x73, A: 0xff},
		{R: 0xf2, G: 0xe8, B: 0xcf, A: 0xff},
		{R: 0xd9, G: 0x4f, B: 0x30, A: 0xff},
		{R: 0x2a, G: 0x9d, B: 0x8f, A: 0xff},
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, palette[(x/period)%len(palette)])
		}
	}
	return img
}
