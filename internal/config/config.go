// ABOUTME: Configuration loading for the output backend
// ABOUTME: Reads TOML config with defaults and environment overrides
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds the full backend configuration.
type Config struct {
	Output      OutputConfig      `toml:"output"`
	Mixer       MixerConfig       `toml:"mixer"`
	Workarounds WorkaroundsConfig `toml:"workarounds"`
}

// OutputConfig selects the playback device and buffering target.
type OutputConfig struct {
	// Device is the PCM device name, in "hw:C,D" form.
	Device string `toml:"device"`
	// BufferMs is the total buffering target (hardware + software) in ms.
	BufferMs int `toml:"buffer_ms"`
}

// MixerConfig selects the hardware volume control. Setting Element to
// "none" disables hardware volume entirely; that is not an error.
type MixerConfig struct {
	Card    int    `toml:"card"`
	Element string `toml:"element"`
}

// WorkaroundsConfig accommodates known deficiencies in specific
// hardware/driver combinations.
type WorkaroundsConfig struct {
	// SkipDrain avoids a broken or blocking drain on faulty drivers,
	// at the cost of losing buffered audio at end of track.
	SkipDrain bool `toml:"skip_drain"`
	// SkipDrop avoids discarding hardware-buffered audio on flush and close.
	SkipDrop bool `toml:"skip_drop"`
	// DelayChunking feeds the device in small slices to bound the clock
	// error caused by blocking writes.
	DelayChunking bool `toml:"delay_chunking"`
}

// Load reads configuration from standard locations with environment overrides.
// Search order: ~/.tonearmrc, $XDG_CONFIG_HOME/tonearm/config.toml,
// ~/.config/tonearm/config.toml
func Load() (*Config, error) {
	cfg := &Config{}

	path := findConfigFile()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// findConfigFile returns the first existing config file path.
func findConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	paths := []string{
		filepath.Join(home, ".tonearmrc"),
	}

	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	paths = append(paths, filepath.Join(xdgConfig, "tonearm", "config.toml"))

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TONEARM_DEVICE"); v != "" {
		cfg.Output.Device = v
	}
	if v := os.Getenv("TONEARM_BUFFER_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Output.BufferMs = n
		}
	}
	if v := os.Getenv("TONEARM_MIXER_CARD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Mixer.Card = n
		}
	}
	if v := os.Getenv("TONEARM_MIXER_ELEMENT"); v != "" {
		cfg.Mixer.Element = v
	}
}
