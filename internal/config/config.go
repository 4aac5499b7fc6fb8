package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Display struct {
	Cols    int    `yaml:"cols"`
	Rows    int    `yaml:"rows"`
	Port    string `yaml:"port"`     // spireg name, "" for the first
	ClockHz int64  `yaml:"clock_hz"` // e.g. 1000000
	CSPin   string `yaml:"cs_pin"`   // GPIO chip-select, "" for hardware CS
	Console bool   `yaml:"console"`  // print frames when no SPI port exists
	SweepMs int    `yaml:"sweep_ms"` // boot chip sweep, 0 to skip
	FlipY   bool   `yaml:"flip_y"`   // panel mounted with digit 0 on top
}

type Audio struct {
	Source  string `yaml:"source"` // "tone" | "mcp3008"
	Samples int    `yaml:"samples"`
	RateHz  int64  `yaml:"rate_hz"`
	Window  string `yaml:"window"` // "none" | "hamming" | "hann"

	ToneHz        float64 `yaml:"tone_hz"`
	ToneAmplitude float64 `yaml:"tone_amplitude"`
	ToneOffset    float64 `yaml:"tone_offset"`
	ToneNoise     float64 `yaml:"tone_noise"`

	ADCPort    string `yaml:"adc_port"`
	ADCChannel int    `yaml:"adc_channel"`
}

type UI struct {
	Mode         string  `yaml:"mode"` // WAVE | FFT | LOG | MIRROR
	Gain         float32 `yaml:"gain"`
	GainMin      float32 `yaml:"gain_min"`
	GainMax      float32 `yaml:"gain_max"`
	GainStep     float32 `yaml:"gain_step"`
	GainFastStep float32 `yaml:"gain_fast_step"`
	Brightness   int     `yaml:"brightness"`
	HeartbeatPin string  `yaml:"heartbeat_pin"`
}

type Buttons struct {
	Backend    string            `yaml:"backend"` // "periph" | "cdev" | "none"
	DebounceMs int               `yaml:"debounce_ms"`
	ActiveLow  bool              `yaml:"active_low"`
	Pins       map[string]string `yaml:"pins,omitempty"`  // periph: button -> GPIO name
	Chip       string            `yaml:"chip,omitempty"`  // cdev: gpiochip name
	Lines      map[string]int    `yaml:"lines,omitempty"` // cdev: button -> line offset
}

type Preview struct {
	Addr   string `yaml:"addr"`   // HTTP listen address, "" disables
	Window bool   `yaml:"window"` // desktop window with keyboard buttons
	Scale  int    `yaml:"scale"`
}

type Config struct {
	Driver      string `yaml:"driver"` // "spi" | "sim"
	LogLevel    string `yaml:"log_level"`
	MaxRestarts int    `yaml:"max_restarts"`

	Display Display `yaml:"display"`
	Audio   Audio   `yaml:"audio"`
	UI      UI      `yaml:"ui"`
	Buttons Buttons `yaml:"buttons"`
	Preview Preview `yaml:"preview"`
}

// Default is a 4x2 panel fed by a synthetic tone.
func Default() *Config {
	return &Config{
		Driver:      "sim",
		LogLevel:    "info",
		MaxRestarts: 5,
		Display: Display{
			Cols:    4,
			Rows:    2,
			ClockHz: 1_000_000,
			Console: true,
		},
		Audio: Audio{
			Source:        "tone",
			Samples:       256,
			RateHz:        8000,
			Window:        "hamming",
			ToneHz:        500,
			ToneAmplitude: 400,
			ToneOffset:    512,
		},
		UI: UI{
			Mode:         "FFT",
			Gain:         1,
			GainMin:      0.1,
			GainMax:      20,
			GainStep:     0.1,
			GainFastStep: 0.5,
			Brightness:   7,
		},
		Buttons: Buttons{
			Backend:    "none",
			DebounceMs: 50,
			ActiveLow:  true,
		},
		Preview: Preview{
			Scale: 16,
		},
	}
}

// Load reads path over the defaults; keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Save writes c as YAML. Load(path) returns an equal Config.
func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) Validate() error {
	switch c.Driver {
	case "spi", "sim":
	default:
		return fmt.Errorf("driver %q: want spi or sim", c.Driver)
	}
	if c.Display.Cols <= 0 || c.Display.Rows <= 0 {
		return fmt.Errorf("display %dx%d", c.Display.Cols, c.Display.Rows)
	}
	switch c.Audio.Source {
	case "tone", "mcp3008":
	default:
		return fmt.Errorf("audio source %q: want tone or mcp3008", c.Audio.Source)
	}
	if c.Audio.RateHz <= 0 {
		return fmt.Errorf("audio rate %d", c.Audio.RateHz)
	}
	if c.UI.GainMin <= 0 || c.UI.GainStep <= 0 || c.UI.GainMin+c.UI.GainStep > c.UI.GainMax {
		return fmt.Errorf("gain range [%g+%g, %g]", c.UI.GainMin, c.UI.GainStep, c.UI.GainMax)
	}
	switch c.Buttons.Backend {
	case "periph", "cdev", "none":
	default:
		return fmt.Errorf("button backend %q: want periph, cdev or none", c.Buttons.Backend)
	}
	return nil
}
