// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package progressor

import (
	"encoding/binary"
	"log/slog"
	"math"
)

// ControlOpCode is a command written to the control point
// characteristic.
type ControlOpCode byte

//go:generate go tool golang.org/x/tools/cmd/stringer -type ControlOpCode
const (
	TareScale              ControlOpCode = 0x64
	StartMeasurement       ControlOpCode = 0x65
	StopMeasurement        ControlOpCode = 0x66
	AddCalibrationPointOld ControlOpCode = 0x69
	GetAppVersion          ControlOpCode = 0x6b
	Shutdown               ControlOpCode = 0x6e
	SampleBattery          ControlOpCode = 0x6f
	GetProgressorID        ControlOpCode = 0x70
	GetCalibration         ControlOpCode = 0x72
	AddCalibrationPoint    ControlOpCode = 0x73
	DefaultCalibration     ControlOpCode = 0x74
)

// Decoder interprets control point writes and turns them into state
// transitions or immediate responses on the outbound queue. It runs on
// the protocol task; it never touches the load cell directly.
type Decoder struct {
	State *State
	Queue *Queue

	// Version and ID answer the identity queries.
	Version string
	ID      uint64

	// Now returns the device clock in microseconds.
	Now func() uint32

	Log *slog.Logger
}

// Dispatch handles one raw control point write. Malformed writes are
// logged and ignored; an unknown opcode additionally stops any
// measurement in flight so the device never streams under a command
// it did not understand.
func (d *Decoder) Dispatch(data []byte) {
	if len(data) == 0 {
		d.Log.Warn("empty control point write")
		return
	}
	op := ControlOpCode(data[0])
	switch op {
	case TareScale:
		d.State.RequestTare()
	case StartMeasurement:
		d.State.StartMeasurement(d.Now())
	case StopMeasurement:
		d.State.Stop()
	case AddCalibrationPoint, AddCalibrationPointOld:
		// Two opcodes are in use for this command; older app
		// releases send 0x69 where the published API says 0x73.
		if len(data) < 5 {
			d.Log.Warn("short calibration point write", "len", len(data))
			return
		}
		weight := math.Float32frombits(binary.BigEndian.Uint32(data[1:5]))
		d.State.RequestCalibration(weight)
	case DefaultCalibration:
		d.State.RequestDefaultCalibration()
	case GetCalibration:
		d.State.RequestCalibrationReport()
	case GetAppVersion:
		d.Queue.TrySend(NewDataPoint(AppVersion(d.Version)))
	case GetProgressorID:
		d.Queue.TrySend(NewDataPoint(ProgressorID(d.ID)))
	case SampleBattery:
		d.Queue.TrySend(NewDataPoint(BatteryVoltage(d.State.BatteryMillivolts())))
	case Shutdown:
		// Power management is the host's job here.
	default:
		d.Log.Error("unhandled op code", "op", op)
		d.State.Stop()
	}
}
