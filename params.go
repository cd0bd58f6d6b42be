package flowmap

import "fmt"

// Params is the parameter block consumed by one accumulation pass.
// It mirrors the uniforms of the accumulation shader; accelerators receive
// a copy for every pass.
type Params struct {
	// Falloff is the stamp radius in UV units. Weight is 1 at the pointer
	// and reaches 0 at this distance.
	Falloff float32

	// Alpha scales the stamp weight (0 disables stamping).
	Alpha float32

	// Dissipation multiplies the previous field every pass.
	Dissipation float32

	// Aspect is viewport width / height. The horizontal distance to the
	// pointer is multiplied by it so the stamp is round on screen.
	Aspect float32

	// Pointer is the stamp center in UV space. Values outside [0, 1] are
	// allowed; the falloff suppresses the contribution.
	Pointer Vec2

	// Velocity is the frame-to-frame pointer delta in UV space.
	Velocity Vec2

	// VelocityFactor scales Velocity before it is written into the field.
	VelocityFactor Vec2

	// Pressed is the current pointer button state.
	Pressed bool

	// PressedGate makes stamping conditional on Pressed.
	PressedGate bool

	// Resolution is the viewport size in pixels, informational for
	// consumers that need it (see display.Distorter).
	Resolution Vec2
}

// DefaultParams returns the parameters used when no option overrides them.
func DefaultParams() Params {
	return Params{
		Falloff:        0.3,
		Alpha:          1,
		Dissipation:    0.98,
		Aspect:         1,
		Pointer:        V2(0.5, 0.5),
		VelocityFactor: V2(1, 1),
	}
}

// Stamping reports whether this pass blends a stamp at all.
func (p *Params) Stamping() bool {
	if p.PressedGate && !p.Pressed {
		return false
	}
	return p.Alpha > 0
}

// ScaledVelocity returns Velocity multiplied by VelocityFactor.
func (p *Params) ScaledVelocity() Vec2 {
	return p.Velocity.MulVec(p.VelocityFactor)
}

// Validate checks the ranges of the tunable parameters.
// Pointer and Velocity are not range checked: any finite value is a valid
// steady state.
func (p *Params) Validate() error {
	switch {
	case !isFinite(p.Falloff) || p.Falloff <= 0 || p.Falloff > 1:
		return fmt.Errorf("%w: falloff %v outside (0, 1]", ErrConfiguration, p.Falloff)
	case !isFinite(p.Alpha) || p.Alpha < 0 || p.Alpha > 1:
		return fmt.Errorf("%w: alpha %v outside [0, 1]", ErrConfiguration, p.Alpha)
	case !isFinite(p.Dissipation) || p.Dissipation < 0 || p.Dissipation > 1:
		return fmt.Errorf("%w: dissipation %v outside [0, 1]", ErrConfiguration, p.Dissipation)
	case !isFinite(p.Aspect) || p.Aspect <= 0:
		return fmt.Errorf("%w: aspect %v must be positive", ErrConfiguration, p.Aspect)
	case !p.VelocityFactor.IsFinite():
		return fmt.Errorf("%w: velocity factor %v is not finite", ErrConfiguration, p.VelocityFactor)
	}
	return nil
}
