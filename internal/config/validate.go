// ABOUTME: Configuration validation
// ABOUTME: Checks device names and buffer sizes before use
package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig indicates a configuration value that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the configuration for values the backend cannot work with.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Output.Device, "hw:") {
		return fmt.Errorf("%w: output.device %q must be in \"hw:C,D\" form", ErrInvalidConfig, c.Output.Device)
	}
	if c.Output.BufferMs < 50 || c.Output.BufferMs > 10000 {
		return fmt.Errorf("%w: output.buffer_ms %d out of range [50, 10000]", ErrInvalidConfig, c.Output.BufferMs)
	}
	if c.Mixer.Card < 0 {
		return fmt.Errorf("%w: mixer.card %d must not be negative", ErrInvalidConfig, c.Mixer.Card)
	}
	return nil
}
