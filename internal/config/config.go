package config

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSimulator   = "cpu"
	DefaultRenderer    = "terminal"
	DefaultDataset     = "ring:48"
	DefaultTicks       = 300
	DefaultWidth       = 80
	DefaultHeight      = 24
	DefaultBackground  = "#1a1b26"
	DefaultMaxFailures = 5
)

// Config describes one layout run.
type Config struct {
	Profile     string `yaml:"profile" validate:"required"`
	Simulator   string `yaml:"simulator" validate:"required"`
	Renderer    string `yaml:"renderer" validate:"required"`
	Dataset     string `yaml:"dataset" validate:"required"`
	Ticks       int    `yaml:"ticks" validate:"gte=1"`
	Width       int    `yaml:"width" validate:"gte=8"`
	Height      int    `yaml:"height" validate:"gte=4"`
	Seed        int64  `yaml:"seed"`
	Background  string `yaml:"background" validate:"hexcolor"`
	MaxFailures uint32 `yaml:"max_failures" validate:"gte=1"`

	// SettingsFile, when set, is watched and applied to the running session.
	SettingsFile string    `yaml:"settings_file,omitempty"`
	Settings     *Settings `yaml:"settings,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Profile:     DefaultProfile,
		Simulator:   DefaultSimulator,
		Renderer:    DefaultRenderer,
		Dataset:     DefaultDataset,
		Ticks:       DefaultTicks,
		Width:       DefaultWidth,
		Height:      DefaultHeight,
		Seed:        1,
		Background:  DefaultBackground,
		MaxFailures: DefaultMaxFailures,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BackgroundColor parses Background as #rgb or #rrggbb.
func (c *Config) BackgroundColor() (color.RGBA, error) {
	return ParseHexColor(c.Background)
}

func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
