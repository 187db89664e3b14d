// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config holds the device daemon configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Pins    PinConfig     `yaml:"pins"`
	Scale   ScaleConfig   `yaml:"scale"`
	Battery BatteryConfig `yaml:"battery"`
	Storage StorageConfig `yaml:"storage"`
}

// DeviceConfig identifies the device over Bluetooth.
type DeviceConfig struct {
	// Name is the advertised device name. Names over 24 bytes do not
	// fit an advertising payload.
	Name string `yaml:"name"`
	// ID is the device identity reported over the measurement
	// protocol. Zero derives the identity from the adapter address.
	ID uint64 `yaml:"id"`
}

// PinConfig names the GPIO lines wired to the load cell ADC.
type PinConfig struct {
	Clock string `yaml:"clock"`
	Data  string `yaml:"data"`
}

// ScaleConfig contains load cell sampling parameters.
type ScaleConfig struct {
	// TareSamples and CalibrationSamples are the number of readings
	// averaged when taring and when collecting a calibration point.
	TareSamples        int `yaml:"tare_samples"`
	CalibrationSamples int `yaml:"calibration_samples"`
}

// BatteryConfig contains battery measurement parameters.
type BatteryConfig struct {
	// Supply is the kernel power supply name under
	// /sys/class/power_supply. Empty disables battery measurement.
	Supply string `yaml:"supply"`

	// Interval is how often the battery is sampled while idle.
	Interval time.Duration `yaml:"interval"`

	// EmptyMillivolts and FullMillivolts bound the battery level
	// scale; LowMillivolts is the low power warning threshold.
	EmptyMillivolts uint32 `yaml:"empty_mv"`
	FullMillivolts  uint32 `yaml:"full_mv"`
	LowMillivolts   uint32 `yaml:"low_mv"`
}

// StorageConfig locates persistent calibration storage.
type StorageConfig struct {
	// Path is the calibration record file.
	Path string `yaml:"path"`
	// Offset is the byte offset of the record within the file.
	Offset int64 `yaml:"offset"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name: "Progressor",
		},
		Pins: PinConfig{
			Clock: "GPIO5",
			Data:  "GPIO6",
		},
		Scale: ScaleConfig{
			TareSamples:        16,
			CalibrationSamples: 100,
		},
		Battery: BatteryConfig{
			Supply:          "BAT0",
			Interval:        time.Second,
			EmptyMillivolts: 3300,
			FullMillivolts:  4200,
			LowMillivolts:   3500,
		},
		Storage: StorageConfig{
			Path: "/var/lib/crimpd/calibration.bin",
		},
	}
}

// Load loads configuration from a YAML file. A missing file or missing
// fields fall back to the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills required fields that are missing from the
// loaded file.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device.Name == "" {
		c.Device.Name = def.Device.Name
	}

	if c.Pins.Clock == "" {
		c.Pins.Clock = def.Pins.Clock
	}
	if c.Pins.Data == "" {
		c.Pins.Data = def.Pins.Data
	}

	if c.Scale.TareSamples == 0 {
		c.Scale.TareSamples = def.Scale.TareSamples
	}
	if c.Scale.CalibrationSamples == 0 {
		c.Scale.CalibrationSamples = def.Scale.CalibrationSamples
	}

	if c.Battery.Interval == 0 {
		c.Battery.Interval = def.Battery.Interval
	}
	if c.Battery.EmptyMillivolts == 0 {
		c.Battery.EmptyMillivolts = def.Battery.EmptyMillivolts
	}
	if c.Battery.FullMillivolts == 0 {
		c.Battery.FullMillivolts = def.Battery.FullMillivolts
	}
	if c.Battery.LowMillivolts == 0 {
		c.Battery.LowMillivolts = def.Battery.LowMillivolts
	}

	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
}
