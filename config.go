package flowmap

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the file form of the flowmap options.
//
// Example TOML:
//
//	preset = "framebuffer"   # start from a named preset
//	size = 256
//	falloff = 0.3
//	alpha = 0.5
//	dissipation = 0.95
//	velocity_factor = [20.0, 20.0]
//	pressed_gate = true
//	swap = true
type Config struct {
	Preset         string     `toml:"preset,omitempty"`
	Size           int        `toml:"size"`
	Falloff        float32    `toml:"falloff"`
	Alpha          float32    `toml:"alpha"`
	Dissipation    float32    `toml:"dissipation"`
	VelocityFactor [2]float32 `toml:"velocity_factor"`
	PressedGate    bool       `toml:"pressed_gate"`
	Swap           bool       `toml:"swap"`
	Workers        int        `toml:"workers,omitempty"`
}

// Preset names accepted by ConfigPreset.
const (
	// PresetFlowmap is the default: pointer trails that fade over roughly a
	// second at 60 fps, stamped on every move.
	PresetFlowmap = "flowmap"

	// PresetFramebuffer stamps only while the button is held, with strongly
	// amplified velocity and shorter trails.
	PresetFramebuffer = "framebuffer"
)

var presets = map[string]Config{
	PresetFlowmap: {
		Preset:         PresetFlowmap,
		Size:           DefaultSize,
		Falloff:        0.3,
		Alpha:          1,
		Dissipation:    0.98,
		VelocityFactor: [2]float32{1, 1},
		Swap:           true,
	},
	PresetFramebuffer: {
		Preset:         PresetFramebuffer,
		Size:           256,
		Falloff:        0.3,
		Alpha:          0.5,
		Dissipation:    0.95,
		VelocityFactor: [2]float32{20, 20},
		PressedGate:    true,
		Swap:           true,
	},
}

// DefaultConfig returns the PresetFlowmap configuration.
func DefaultConfig() Config {
	return presets[PresetFlowmap]
}

// ConfigPreset returns a named preset.
func ConfigPreset(name string) (Config, error) {
	c, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown preset %q (have %s)",
			ErrConfiguration, name, strings.Join(PresetNames(), ", "))
	}
	return c, nil
}

// PresetNames returns the known preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ParseConfig decodes a TOML document. Keys that are absent keep the value
// of the preset named by the "preset" key, or of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	var head struct {
		Preset string `toml:"preset"`
	}
	if err := toml.Unmarshal(data, &head); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	c := DefaultConfig()
	if head.Preset != "" {
		p, err := ConfigPreset(head.Preset)
		if err != nil {
			return Config{}, err
		}
		c = p
	}

	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads and parses a TOML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return Config{}, fmt.Errorf("flowmap: read config: %w", err)
	}
	c, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Marshal encodes the configuration as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Params returns the pass parameters described by the configuration.
func (c Config) Params() Params {
	p := DefaultParams()
	p.Falloff = c.Falloff
	p.Alpha = c.Alpha
	p.Dissipation = c.Dissipation
	p.VelocityFactor = V2(c.VelocityFactor[0], c.VelocityFactor[1])
	p.PressedGate = c.PressedGate
	return p
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if err := validateSize(c.Size); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d is negative", ErrConfiguration, c.Workers)
	}
	p := c.Params()
	return p.Validate()
}

// Options converts the configuration to creation options.
func (c Config) Options() []Option {
	return []Option{
		WithSize(c.Size),
		WithParams(c.Params()),
		WithSwap(c.Swap),
		WithWorkers(c.Workers),
	}
}
