// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package progressor

import (
	"encoding/binary"
	"fmt"
	"math"

	"tinygo.org/x/bluetooth"

	"github.com/crimpkit/crimp/internal/bleutil"
)

// Listener implements the central side of the measurement protocol:
// it subscribes to a connected device's data point notifications and
// writes commands to its control point.
type Listener struct {
	dev *bluetooth.Device

	control, data bluetooth.DeviceCharacteristic
}

// NewListener returns a Listener for the provided Bluetooth device.
// Every notified data point, valid or not, is passed to handle.
func NewListener(dev *bluetooth.Device, handle func(DataPoint, error)) (*Listener, error) {
	control, err := bleutil.DeviceCharacteristic(dev, Service, ControlPointChar)
	if err != nil {
		return nil, fmt.Errorf("failed to get device control point characteristic: %w", err)
	}
	data, err := bleutil.DeviceCharacteristic(dev, Service, DataPointChar)
	if err != nil {
		return nil, fmt.Errorf("failed to get device data point characteristic: %w", err)
	}
	l := &Listener{dev: dev, control: control, data: data}
	err = data.EnableNotifications(func(buf []byte) {
		var p DataPoint
		handle(p, p.UnmarshalBinary(buf))
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Listener) command(op ControlOpCode, payload ...byte) error {
	_, err := l.control.WriteWithoutResponse(append([]byte{byte(op)}, payload...))
	if err != nil {
		return fmt.Errorf("failed to send %v: %w", op, err)
	}
	return nil
}

// Tare zeroes the device's baseline against the current load.
func (l *Listener) Tare() error { return l.command(TareScale) }

// Start begins weight measurement streaming. Measurements arrive
// through the notification handler.
func (l *Listener) Start() error { return l.command(StartMeasurement) }

// Stop ends weight measurement streaming.
func (l *Listener) Stop() error { return l.command(StopMeasurement) }

// AddCalibrationPoint samples a calibration point against the given
// known weight in kilograms. Two points calibrate the device; the
// second point's weight is the one applied.
func (l *Listener) AddCalibrationPoint(weight float32) error {
	var payload [4]byte
	binary.BigEndian.PutUint32(payload[:], math.Float32bits(weight))
	return l.command(AddCalibrationPoint, payload[:]...)
}

// DefaultCalibration restores the device's factory calibration.
func (l *Listener) DefaultCalibration() error { return l.command(DefaultCalibration) }

// RequestCalibration asks for the calibration values in effect. The
// response arrives through the notification handler.
func (l *Listener) RequestCalibration() error { return l.command(GetCalibration) }

// RequestAppVersion asks for the firmware version. The response
// arrives through the notification handler.
func (l *Listener) RequestAppVersion() error { return l.command(GetAppVersion) }

// RequestProgressorID asks for the device identity. The response
// arrives through the notification handler.
func (l *Listener) RequestProgressorID() error { return l.command(GetProgressorID) }

// SampleBattery asks for the battery voltage. The response arrives
// through the notification handler.
func (l *Listener) SampleBattery() error { return l.command(SampleBattery) }

// Close disables notifications and disconnects the device.
func (l *Listener) Close() error {
	l.data.EnableNotifications(nil)
	return l.dev.Disconnect()
}
