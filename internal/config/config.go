// Package config loads the daemon's deckfsd.yaml: the device geometry,
// hardware backend selection, and watched deck roots, following the
// validated-YAML-struct pattern of arawak-lorecraft's internal/config.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Daemon struct {
	Version   int                          `yaml:"version"`
	DeckRoots []string                     `yaml:"deck_roots"`
	Hardware  Hardware                     `yaml:"hardware"`
	Snapshot  Snapshot                     `yaml:"snapshot"`
	Defaults  Defaults                     `yaml:"defaults"`
	Fonts     map[string]map[string]string `yaml:"fonts"` // family -> variant ("regular","bold","regular-italic",...) -> .ttf/.otf path
}

type Hardware struct {
	Backend      string `yaml:"backend"` // "periph" or "mock"
	SPIPort      string `yaml:"spi_port"`
	ResetPin     string `yaml:"reset_pin"`
	DataCmdPin   string `yaml:"data_cmd_pin"`
	ChipSelect   string `yaml:"chip_select"`
	BacklightPin string `yaml:"backlight_pin"`
	InputDevice  string `yaml:"input_device"`
	Rows         int    `yaml:"rows"`
	Cols         int    `yaml:"cols"`
	KeyWidthPx   int    `yaml:"key_width_px"`
	KeyHeightPx  int    `yaml:"key_height_px"`
}

type Snapshot struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type Defaults struct {
	EmojiEnabled   bool          `yaml:"emoji_enabled"`
	CoalesceWindow time.Duration `yaml:"coalesce_window"`
	GraceTimeout   time.Duration `yaml:"grace_timeout"`
}

// Load reads, parses, and validates a deckfsd.yaml daemon config file.
func Load(path string) (*Daemon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading daemon config: %w", err)
	}

	cfg := Daemon{
		Hardware: Hardware{Rows: 3, Cols: 5, KeyWidthPx: 80, KeyHeightPx: 80},
		Defaults: Defaults{CoalesceWindow: 50 * time.Millisecond, GraceTimeout: 2 * time.Second},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading daemon config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("loading daemon config: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Daemon) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}
	if len(cfg.DeckRoots) == 0 {
		return fmt.Errorf("at least one deck root is required")
	}
	for i, root := range cfg.DeckRoots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("deck root %d is empty", i)
		}
	}
	switch cfg.Hardware.Backend {
	case "", "mock", "periph":
	default:
		return fmt.Errorf("unknown hardware backend: %s", cfg.Hardware.Backend)
	}
	if cfg.Hardware.Rows <= 0 || cfg.Hardware.Cols <= 0 {
		return fmt.Errorf("hardware rows/cols must be positive")
	}
	if cfg.Hardware.Backend == "periph" {
		if strings.TrimSpace(cfg.Hardware.SPIPort) == "" {
			return fmt.Errorf("hardware.spi_port is required for the periph backend")
		}
		if strings.TrimSpace(cfg.Hardware.InputDevice) == "" {
			return fmt.Errorf("hardware.input_device is required for the periph backend")
		}
	}
	if cfg.Snapshot.Enabled && strings.TrimSpace(cfg.Snapshot.Addr) == "" {
		return fmt.Errorf("snapshot.addr is required when snapshot.enabled is true")
	}
	if len(cfg.Fonts) == 0 {
		return fmt.Errorf("at least one font family is required")
	}
	return nil
}
