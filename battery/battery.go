// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package battery implements battery voltage measurement for the
// device and reading of the standard 180f Bluetooth battery service
// characteristic for centrals.
package battery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"

	"tinygo.org/x/bluetooth"

	"github.com/crimpkit/crimp/internal/bleutil"
)

const (
	ServiceID             = "180f"
	LevelCharacteristicID = "2a19"
)

var (
	// Service is the standard battery service UUID.
	Service = must(bluetooth.ParseUUID(ServiceID))
	// LevelCharacteristic is the standard battery level UUID.
	LevelCharacteristic = must(bluetooth.ParseUUID(LevelCharacteristicID))
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Level returns the battery level for the provided Bluetooth device.
func Level(dev *bluetooth.Device) (int, error) {
	// https://www.bluetooth.com/specifications/specs/battery-service/

	batteryDevice, err := bleutil.DeviceCharacteristic(dev, Service, LevelCharacteristic)
	if err != nil {
		return 0, fmt.Errorf("failed to get battery device characteristic: %w", err)
	}
	resp, err := bleutil.ReadCharacteristic(batteryDevice)
	if err != nil {
		return 0, fmt.Errorf("failed read battery characteristic: %w", err)
	}
	return int(resp[0]), nil
}

// Percent maps a battery voltage onto the 0–100 scale used by the
// battery level characteristic, linear between empty and full and
// clamped at the ends.
func Percent(mv, empty, full uint32) byte {
	if full <= empty || mv <= empty {
		return 0
	}
	if mv >= full {
		return 100
	}
	return byte((mv - empty) * 100 / (full - empty))
}

// PowerSupply measures battery voltage through the kernel power
// supply class, reading voltage_now from the named supply under
// /sys/class/power_supply.
type PowerSupply struct {
	// Name is the supply name, for example "BAT0".
	Name string

	// Root overrides the sysfs power supply directory. Empty means
	// /sys/class/power_supply.
	Root string
}

// Millivolts reads the supply voltage. The kernel reports microvolts.
func (p PowerSupply) Millivolts(ctx context.Context) (uint32, error) {
	root := p.Root
	if root == "" {
		root = "/sys/class/power_supply"
	}
	b, err := os.ReadFile(root + "/" + p.Name + "/voltage_now")
	if err != nil {
		return 0, fmt.Errorf("failed to read power supply voltage: %w", err)
	}
	uv, err := strconv.ParseUint(string(bytes.TrimSpace(b)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse power supply voltage: %w", err)
	}
	return uint32(uv / 1000), nil
}

// Constant is a fixed-voltage Voltmeter for simulated devices.
type Constant uint32

// Millivolts returns the fixed voltage.
func (c Constant) Millivolts(ctx context.Context) (uint32, error) { return uint32(c), nil }
