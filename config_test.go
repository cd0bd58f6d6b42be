package flowmap

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDefaultConfigMatchesDefaults(t *testing.T) {
	c := DefaultConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if c.Size != DefaultSize {
		t.Errorf("Size = %d, want %d", c.Size, DefaultSize)
	}
	if got := c.Params(); got != DefaultParams() {
		t.Errorf("Params() = %+v, want %+v", got, DefaultParams())
	}
}

func TestConfigPreset(t *testing.T) {
	c, err := ConfigPreset(" Framebuffer ")
	if err != nil {
		t.Fatalf("ConfigPreset() error = %v", err)
	}
	if !c.PressedGate || c.VelocityFactor != [2]float32{20, 20} || c.Dissipation != 0.95 {
		t.Errorf("framebuffer preset = %+v", c)
	}

	if _, err := ConfigPreset("vortex"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("ConfigPreset(unknown) error = %v, want ErrConfiguration", err)
	}

	if names := PresetNames(); !slices.Equal(names, []string{PresetFlowmap, PresetFramebuffer}) {
		t.Errorf("PresetNames() = %v", names)
	}
}

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, c Config)
	}{
		{
			name:  "empty uses default",
			input: "",
			check: func(t *testing.T, c Config) {
				if c != DefaultConfig() {
					t.Errorf("got %+v, want default", c)
				}
			},
		},
		{
			name:  "overrides keep other defaults",
			input: "size = 64\ndissipation = 0.9\n",
			check: func(t *testing.T, c Config) {
				if c.Size != 64 || c.Dissipation != 0.9 {
					t.Errorf("got size %d dissipation %v", c.Size, c.Dissipation)
				}
				if c.Falloff != 0.3 || !c.Swap {
					t.Errorf("unset keys lost their defaults: %+v", c)
				}
			},
		},
		{
			name:  "preset then override",
			input: "preset = \"framebuffer\"\nalpha = 0.75\nvelocity_factor = [10.0, 5.0]\n",
			check: func(t *testing.T, c Config) {
				if c.Alpha != 0.75 || c.VelocityFactor != [2]float32{10, 5} {
					t.Errorf("overrides not applied: %+v", c)
				}
				if !c.PressedGate || c.Size != 256 {
					t.Errorf("preset values lost: %+v", c)
				}
			},
		},
		{
			name:  "swap disabled",
			input: "swap = false\n",
			check: func(t *testing.T, c Config) {
				if c.Swap {
					t.Error("swap = false not applied")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseConfig([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseConfig() error = %v", err)
			}
			tt.check(t, c)
		})
	}
}

func TestParseConfigErrors(t *testing.T) {
	inputs := map[string]string{
		"syntax":          "size = [",
		"unknown preset":  "preset = \"swirl\"",
		"bad falloff":     "falloff = 0.0",
		"bad dissipation": "dissipation = 1.5",
		"bad size":        "size = -1",
		"bad workers":     "workers = -2",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(input)); !errors.Is(err, ErrConfiguration) {
				t.Errorf("ParseConfig(%q) error = %v, want ErrConfiguration", input, err)
			}
		})
	}
}

func TestConfigRoundTrip(t *testing.T) {
	c, _ := ConfigPreset(PresetFramebuffer)
	c.Workers = 3

	data, err := c.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig(Marshal()) error = %v\n%s", err, data)
	}
	if got != c {
		t.Errorf("round trip = %+v, want %+v", got, c)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowmap.toml")
	if err := os.WriteFile(path, []byte("size = 32\nfalloff = 0.2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	fm := newTestFlowmap(t, c.Options()...)
	if fm.Size() != 32 || fm.Params().Falloff != 0.2 {
		t.Errorf("flowmap from config: size %d falloff %v", fm.Size(), fm.Params().Falloff)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("LoadConfig(missing) should fail")
	}
}
