// ABOUTME: Default configuration values
// ABOUTME: Provides Default() and ApplyDefaults() for zero-value fill-in
package config

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Device:   "hw:0,0",
			BufferMs: 500,
		},
		Mixer: MixerConfig{
			Card:    0,
			Element: "PCM",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	if c.Output.Device == "" {
		c.Output.Device = d.Output.Device
	}
	if c.Output.BufferMs == 0 {
		c.Output.BufferMs = d.Output.BufferMs
	}
	if c.Mixer.Element == "" {
		c.Mixer.Element = d.Mixer.Element
	}
}
