package display

import (
	"fmt"
	"strings"
)

// Mode selects what Render draws.
type Mode int

const (
	// ModeDistort draws the source image shifted horizontally by the flow
	// field.
	ModeDistort Mode = iota

	// ModeFlow draws the raw flow field: velocity in red and green,
	// intensity in blue. Negative velocities clamp to zero.
	ModeFlow

	// ModeOverlay draws the distorted image with a tenth of the flow field
	// added on top.
	ModeOverlay
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeDistort:
		return "distort"
	case ModeFlow:
		return "flow"
	case ModeOverlay:
		return "overlay"
	default:
		return "unknown"
	}
}

// Next returns the mode after m, wrapping around. Interactive hosts use it
// to cycle through the modes.
func (m Mode) Next() Mode {
	return (m + 1) % 3
}

// ParseMode parses a mode name as returned by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "distort", "":
		return ModeDistort, nil
	case "flow":
		return ModeFlow, nil
	case "overlay":
		return ModeOverlay, nil
	default:
		return ModeDistort, fmt.Errorf("display: unknown mode %q", s)
	}
}
