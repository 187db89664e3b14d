// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package progressor

import "sync"

// Status is the measurement task mode.
type Status uint8

//go:generate go tool golang.org/x/tools/cmd/stringer -type Status
const (
	// Disabled is the idle mode; no sampling happens.
	Disabled Status = iota
	// Enabled streams weight measurements.
	Enabled
	// Taring zeroes the baseline and returns to Disabled.
	Taring
	// SoftTaring zeroes the baseline and then enables streaming;
	// used by clients that start measurement without an explicit
	// tare.
	SoftTaring
	// Calibrating collects one calibration point for the target
	// weight carried in the state.
	Calibrating
	// RestoringDefaults resets calibration to the compiled-in
	// values and returns to Disabled.
	RestoringDefaults
	// ReportingCalibration emits the current calibration values and
	// returns to Disabled.
	ReportingCalibration
)

// emptyPoint marks an unused calibration point slot.
const emptyPoint = -1

// Snapshot is a copy of the fields the sampling loop acts on, taken
// under the state lock so the slow sampling work happens outside it.
type Snapshot struct {
	Status            Status
	Target            float32 // calibration target weight, kg
	StartTime         uint32  // micros at measurement start
	Tared             bool
	BatteryMillivolts uint32
}

// State is the record shared between the protocol task and the
// sampling task. The protocol task only ever requests a mode or stops
// it; the sampling task performs the work and resolves transient
// modes back to a steady state. All access is through methods holding
// an internal mutex; critical sections only copy or update fields,
// never touch hardware.
type State struct {
	mu sync.Mutex

	status    Status
	target    float32
	tared     bool
	startTime uint32
	points    [2]float32

	batteryMillivolts uint32
	disconnectedAt    uint32
	everDisconnected  bool
}

// NewState returns the initial device state: disabled, untared, no
// calibration points collected.
func NewState() *State {
	return &State{points: [2]float32{emptyPoint, emptyPoint}}
}

// Snapshot returns a copy of the sampling-relevant fields.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Status:            s.status,
		Target:            s.target,
		StartTime:         s.startTime,
		Tared:             s.tared,
		BatteryMillivolts: s.batteryMillivolts,
	}
}

// RequestTare switches the sampling task to a tare pass.
func (s *State) RequestTare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Taring
}

// StartMeasurement enables streaming from the given microsecond
// timestamp. An untared scale is soft-tared first so the stream
// starts from a zero baseline.
func (s *State) StartMeasurement(now uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = now
	if s.tared {
		s.status = Enabled
	} else {
		s.status = SoftTaring
	}
}

// Stop disables the sampling task.
func (s *State) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Disabled
}

// RequestCalibration switches the sampling task to collecting a
// calibration point for the given known weight.
func (s *State) RequestCalibration(targetWeight float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = targetWeight
	s.status = Calibrating
}

// RequestDefaultCalibration asks the sampling task to restore the
// compiled-in calibration.
func (s *State) RequestDefaultCalibration() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = RestoringDefaults
}

// RequestCalibrationReport asks the sampling task to emit the current
// calibration values.
func (s *State) RequestCalibrationReport() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = ReportingCalibration
}

// CompleteTare marks the scale tared. A soft tare proceeds directly
// to streaming; a plain tare returns to idle.
func (s *State) CompleteTare() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tared = true
	switch s.status {
	case SoftTaring:
		s.status = Enabled
	case Taring:
		s.status = Disabled
	}
}

// CompleteCalibrationPoint stores a collected point in the first
// empty slot and leaves calibration mode. When the second slot fills,
// both points are returned with done=true and the slots reset for the
// next calibration run.
func (s *State) CompleteCalibrationPoint(point float32) (points [2]float32, done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.points[0] == emptyPoint {
		s.points[0] = point
	} else {
		s.points[1] = point
	}
	if s.status == Calibrating {
		s.status = Disabled
	}
	if s.points[0] == emptyPoint || s.points[1] == emptyPoint {
		return s.points, false
	}
	points = s.points
	s.points = [2]float32{emptyPoint, emptyPoint}
	return points, true
}

// Resolve returns the sampling task to Disabled if it is still in the
// given transient mode. It is used after RestoringDefaults and
// ReportingCalibration work completes.
func (s *State) Resolve(from Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == from {
		s.status = Disabled
	}
}

// SetBatteryMillivolts records the most recent battery measurement.
func (s *State) SetBatteryMillivolts(mv uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batteryMillivolts = mv
}

// BatteryMillivolts returns the most recent battery measurement.
func (s *State) BatteryMillivolts() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batteryMillivolts
}

// Disconnected forces the device back to idle when the BLE connection
// drops, whatever was in flight, and records the disconnect time.
// Stale streaming or calibration state must never survive into the
// next connection.
func (s *State) Disconnected(now uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Disabled
	s.tared = false
	s.disconnectedAt = now
	s.everDisconnected = true
}

// LastDisconnect returns the microsecond timestamp of the most recent
// disconnect, if any.
func (s *State) LastDisconnect() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectedAt, s.everDisconnected
}
