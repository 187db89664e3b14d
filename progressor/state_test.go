// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package progressor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompleteTarePaths(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		s := NewState()
		s.RequestTare()
		s.CompleteTare()
		snap := s.Snapshot()
		assert.Equal(t, Disabled, snap.Status)
		assert.True(t, snap.Tared)
	})
	t.Run("soft", func(t *testing.T) {
		s := NewState()
		s.StartMeasurement(100)
		assert.Equal(t, SoftTaring, s.Snapshot().Status, "untared start must tare first")
		s.CompleteTare()
		snap := s.Snapshot()
		assert.Equal(t, Enabled, snap.Status)
		assert.True(t, snap.Tared)
		assert.Equal(t, uint32(100), snap.StartTime)
	})
}

func TestCompleteCalibrationPointPairing(t *testing.T) {
	s := NewState()

	s.RequestCalibration(20)
	_, done := s.CompleteCalibrationPoint(100)
	assert.False(t, done, "one point is not a calibration")
	assert.Equal(t, Disabled, s.Snapshot().Status)

	s.RequestCalibration(20)
	points, done := s.CompleteCalibrationPoint(300)
	assert.True(t, done)
	assert.Equal(t, [2]float32{100, 300}, points)
	assert.Equal(t, Disabled, s.Snapshot().Status)

	// The pair is consumed; the next calibration starts afresh.
	_, done = s.CompleteCalibrationPoint(500)
	assert.False(t, done)
}

func TestResolveOnlyMatchingStatus(t *testing.T) {
	s := NewState()
	s.RequestDefaultCalibration()
	s.Resolve(ReportingCalibration)
	assert.Equal(t, RestoringDefaults, s.Snapshot().Status, "mismatched resolve must not clear the mode")
	s.Resolve(RestoringDefaults)
	assert.Equal(t, Disabled, s.Snapshot().Status)
}

func TestDisconnectedForcesIdle(t *testing.T) {
	// Whatever was in flight, a dropped connection must leave the
	// device idle and untared.
	setups := map[string]func(s *State){
		"idle":        func(s *State) {},
		"taring":      func(s *State) { s.RequestTare() },
		"streaming":   func(s *State) { s.RequestTare(); s.CompleteTare(); s.StartMeasurement(0) },
		"soft_taring": func(s *State) { s.StartMeasurement(0) },
		"calibrating": func(s *State) { s.RequestCalibration(20) },
		"restoring":   func(s *State) { s.RequestDefaultCalibration() },
		"reporting":   func(s *State) { s.RequestCalibrationReport() },
	}
	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			s := NewState()
			setup(s)
			s.Disconnected(42)
			snap := s.Snapshot()
			assert.Equal(t, Disabled, snap.Status)
			assert.False(t, snap.Tared)
			at, ok := s.LastDisconnect()
			assert.True(t, ok)
			assert.Equal(t, uint32(42), at)
		})
	}
}

func TestBatteryMillivolts(t *testing.T) {
	s := NewState()
	assert.Equal(t, uint32(0), s.BatteryMillivolts())
	s.SetBatteryMillivolts(3850)
	assert.Equal(t, uint32(3850), s.BatteryMillivolts())
	assert.Equal(t, uint32(3850), s.Snapshot().BatteryMillivolts)
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "Disabled", Disabled.String())
	assert.Equal(t, "ReportingCalibration", ReportingCalibration.String())
	assert.Equal(t, "Status(99)", Status(99).String())
}
