package flowmap

import "github.com/chewxy/math32"

// Smoothstep performs Hermite interpolation between 0 and 1 as x moves from
// edge0 to edge1. Like its GLSL counterpart it accepts edge0 > edge1, which
// yields a weight that falls from 1 at edge1 to 0 at edge0.
func Smoothstep(edge0, edge1, x float32) float32 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := clamp01((x - edge0) / (edge1 - edge0))
	return t * t * (3 - 2*t)
}

// FalloffWeight returns the stamp weight for an aspect-corrected offset d
// from the pointer. It is alpha at d = 0 and exactly 0 for |d| >= falloff.
func FalloffWeight(d Vec2, falloff, alpha float32) float32 {
	return Smoothstep(falloff, 0, d.Length()) * alpha
}

// StampIntensity maps a speed to the intensity channel with a cubic ease:
// 1 - (1 - min(1, speed))^3. Speeds above 1 saturate.
func StampIntensity(speed float32) float32 {
	k := 1 - math32.Min(1, math32.Max(0, speed))
	return 1 - k*k*k
}

// StampTexel returns the value blended into the field around the pointer.
// The y component is negated to match texture-space orientation.
func StampTexel(p *Params) Texel {
	s := p.ScaledVelocity()
	return Texel{R: s.X, G: -s.Y, B: StampIntensity(s.Length())}
}

// stampOffset returns the aspect-corrected offset from the pointer to uv.
func stampOffset(uv Vec2, p *Params) Vec2 {
	d := uv.Sub(p.Pointer)
	d.X *= p.Aspect
	return d
}

// AccumulateTexel runs one pass of the accumulation kernel for a single
// texel: decay the previous value, then blend the stamp by the falloff
// weight. stamp must be StampTexel(p); it is passed in so that callers
// evaluating a whole buffer compute it once.
func AccumulateTexel(prev Texel, uv Vec2, stamp Texel, p *Params) Texel {
	c := prev.Scale(p.Dissipation)
	if !p.Stamping() {
		return c
	}
	w := FalloffWeight(stampOffset(uv, p), p.Falloff, p.Alpha)
	if w <= 0 {
		return c
	}
	c.R = mix(c.R, stamp.R, w)
	c.G = mix(c.G, stamp.G, w)
	c.B = mix(c.B, stamp.B, w)
	return c
}

func mix(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
