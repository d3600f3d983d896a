// Package config loads and saves the router's persisted settings, matching
// spec.md §6 point 6's key-value contract in a TOML file.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config mirrors spec.md §6's recognized keys exactly; the toml tags are
// the key names a user or the dashboard would edit by hand.
type Config struct {
	PollingFrequencyHz int `toml:"polling_frequency"`

	TranslationEnabled bool `toml:"translation_enabled"`
	HidHideEnabled     bool `toml:"hidhide_enabled"`

	XInputToDInput bool `toml:"xinput_to_dinput"`
	DInputToXInput bool `toml:"dinput_to_xinput"`

	SOCDEnabled bool `toml:"socd_enabled"`
	SOCDMethod  int  `toml:"socd_method"`

	DebouncingEnabled  bool `toml:"debouncing_enabled"`
	DebounceIntervalMs int  `toml:"debounce_interval_ms"`

	StickDeadzoneEnabled  bool    `toml:"stick_deadzone_enabled"`
	LeftStickDeadzone     float32 `toml:"left_stick_deadzone"`
	RightStickDeadzone    float32 `toml:"right_stick_deadzone"`
	LeftStickAntiDeadzone float32 `toml:"left_stick_anti_deadzone"`
	RightStickAntiDeadzone float32 `toml:"right_stick_anti_deadzone"`

	RumbleEnabled   bool    `toml:"rumble_enabled"`
	RumbleIntensity float32 `toml:"rumble_intensity"`

	SaveLogsOnExit bool `toml:"save_logs_on_exit"`
}

// Default returns the settings spec.md §6 documents as defaults.
func Default() Config {
	return Config{
		PollingFrequencyHz: 1000,
		TranslationEnabled: true,
		HidHideEnabled:     false,
		XInputToDInput:     true,
		DInputToXInput:     true,
		SOCDEnabled:        false,
		SOCDMethod:         0,
		DebouncingEnabled:  false,
		DebounceIntervalMs: 5,
		StickDeadzoneEnabled:   false,
		LeftStickDeadzone:      0.1,
		RightStickDeadzone:     0.1,
		LeftStickAntiDeadzone:  0,
		RightStickAntiDeadzone: 0,
		RumbleEnabled:   true,
		RumbleIntensity: 1,
		SaveLogsOnExit:  false,
	}
}

// Load reads path, returning Default() (and persisting it) if the file
// does not exist yet.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path in TOML form, creating or truncating the file.
func Save(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
