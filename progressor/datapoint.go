// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package progressor

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MaxPayload is the data point payload capacity in bytes.
const MaxPayload = 12

// Response codes carried in the first data point byte.
const (
	codeCommandResponse = 0x00
	codeWeight          = 0x01
	codeLowPowerWarning = 0x04
)

// DataPoint is the fixed-layout record notified on the data point
// characteristic: a response code, a payload length, and up to
// MaxPayload payload bytes. Only the first Length bytes of Value are
// meaningful; the wire form is 2+Length bytes.
type DataPoint struct {
	Code   byte
	Length byte
	Value  [MaxPayload]byte
}

// Bytes returns the wire form of the data point.
func (p DataPoint) Bytes() []byte {
	buf := make([]byte, 2+int(p.Length))
	buf[0] = p.Code
	buf[1] = p.Length
	copy(buf[2:], p.Value[:p.Length])
	return buf
}

// UnmarshalBinary decodes a notified data point. Payloads longer than
// MaxPayload do not decode; the device never produces them.
func (p *DataPoint) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return io.ErrUnexpectedEOF
	}
	length := data[1]
	if int(length) > MaxPayload {
		return fmt.Errorf("data point payload too long: %d", length)
	}
	if len(data) < 2+int(length) {
		return io.ErrUnexpectedEOF
	}
	*p = DataPoint{Code: data[0], Length: length}
	copy(p.Value[:], data[2:2+length])
	return nil
}

// Response is a device-to-app message encodable as a DataPoint.
type Response interface {
	dataPoint() DataPoint
}

// NewDataPoint encodes a response as a DataPoint.
func NewDataPoint(r Response) DataPoint { return r.dataPoint() }

// WeightMeasurement is a streamed measurement: weight in kilograms and
// the microseconds elapsed since measurement start.
type WeightMeasurement struct {
	Weight    float32
	Timestamp uint32
}

func (m WeightMeasurement) dataPoint() DataPoint {
	p := DataPoint{Code: codeWeight, Length: 8}
	binary.LittleEndian.PutUint32(p.Value[0:4], math.Float32bits(m.Weight))
	binary.LittleEndian.PutUint32(p.Value[4:8], m.Timestamp)
	return p
}

// BatteryVoltage is the battery level response, in millivolts.
type BatteryVoltage uint32

func (v BatteryVoltage) dataPoint() DataPoint {
	p := DataPoint{Code: codeCommandResponse, Length: 4}
	binary.LittleEndian.PutUint32(p.Value[0:4], uint32(v))
	return p
}

// AppVersion is the firmware version string response. Versions longer
// than MaxPayload are truncated.
type AppVersion string

func (v AppVersion) dataPoint() DataPoint {
	p := DataPoint{Code: codeCommandResponse}
	p.Length = byte(copy(p.Value[:], v))
	return p
}

// ProgressorID is the device identity response: the low six bytes of
// the device serial, little-endian.
type ProgressorID uint64

func (id ProgressorID) dataPoint() DataPoint {
	p := DataPoint{Code: codeCommandResponse, Length: 6}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	copy(p.Value[:6], buf[:6])
	return p
}

// CalibrationValues is the response to a calibration query: the scale
// offset and factor currently in effect.
type CalibrationValues struct {
	Offset float32
	Factor float32
}

func (c CalibrationValues) dataPoint() DataPoint {
	p := DataPoint{Code: codeCommandResponse, Length: 8}
	binary.LittleEndian.PutUint32(p.Value[0:4], math.Float32bits(c.Offset))
	binary.LittleEndian.PutUint32(p.Value[4:8], math.Float32bits(c.Factor))
	return p
}

// LowPowerWarning indicates the battery is nearly empty.
type LowPowerWarning struct{}

func (LowPowerWarning) dataPoint() DataPoint {
	return DataPoint{Code: codeLowPowerWarning}
}

// Measurement decodes a weight measurement data point.
func (p DataPoint) Measurement() (WeightMeasurement, error) {
	if p.Code != codeWeight {
		return WeightMeasurement{}, fmt.Errorf("expected weight measurement code: %#x", p.Code)
	}
	if p.Length < 8 {
		return WeightMeasurement{}, io.ErrUnexpectedEOF
	}
	return WeightMeasurement{
		Weight:    math.Float32frombits(binary.LittleEndian.Uint32(p.Value[0:4])),
		Timestamp: binary.LittleEndian.Uint32(p.Value[4:8]),
	}, nil
}

// IsLowPower reports whether the data point is a low power warning.
func (p DataPoint) IsLowPower() bool { return p.Code == codeLowPowerWarning }
