// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bleutil provides helper functions for interacting with
// Bluetooth devices.
package bleutil

import (
	"fmt"
	"io"

	"tinygo.org/x/bluetooth"
)

// Advertising data layout constants from the Bluetooth Core
// Specification Supplement, Part A.
const (
	adTypeFlags             = 0x01
	adTypeCompleteLocalName = 0x09

	flagLEGeneralDiscMode = 0x02
	flagBREDRNotSupported = 0x04

	// maxAdvertisingPayload is the space available for the flags and
	// name structures in a legacy advertising PDU.
	maxAdvertisingPayload = 27

	// maxAdvertisedName is maxAdvertisingPayload less the flags
	// structure and the name structure header.
	maxAdvertisedName = 24
)

// AdvertisingPayload constructs a legacy advertising payload carrying
// the general discoverable flags and the given complete local name. It
// fails if the name does not fit the payload.
func AdvertisingPayload(name string) ([]byte, error) {
	if len(name) > maxAdvertisedName {
		return nil, fmt.Errorf("advertised name too long: %d > %d", len(name), maxAdvertisedName)
	}
	buf := make([]byte, 0, maxAdvertisingPayload)
	buf = append(buf, 2, adTypeFlags, flagLEGeneralDiscMode|flagBREDRNotSupported)
	buf = append(buf, byte(len(name)+1), adTypeCompleteLocalName)
	buf = append(buf, name...)
	return buf, nil
}

// DeviceCharacteristic returns a specified bluetooth.DeviceCharacteristic
// from a Bluetooth service.
func DeviceCharacteristic(dev *bluetooth.Device, srvID, charID bluetooth.UUID) (bluetooth.DeviceCharacteristic, error) {
	srv, err := dev.DiscoverServices([]bluetooth.UUID{srvID})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover service %s: %w", srvID, err)
	}
	for _, s := range srv {
		char, err := s.DiscoverCharacteristics([]bluetooth.UUID{charID})
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover characteristic %s: %w", charID, err)
		}
		if len(char) == 0 {
			break
		}
		return char[0], nil
	}
	return bluetooth.DeviceCharacteristic{}, fmt.Errorf("device characteristic not found")
}

// ReadCharacteristic reads data from a Bluetooth characteristic.
func ReadCharacteristic(char bluetooth.DeviceCharacteristic) ([]byte, error) {
	mtu, err := char.GetMTU()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain mtu of characteristic: %w", err)
	}
	buf := make([]byte, mtu)
	n, err := char.Read(buf)
	if err != nil && err != io.EOF {
		return buf[:n], fmt.Errorf("failed to read response from characteristic: %w", err)
	}
	return buf[:n], nil
}
