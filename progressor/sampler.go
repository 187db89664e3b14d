// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package progressor

import (
	"context"
	"log/slog"
	"time"

	"github.com/crimpkit/crimp/hx711"
)

// Voltmeter measures the battery supply.
type Voltmeter interface {
	// Millivolts returns the battery voltage in millivolts.
	Millivolts(ctx context.Context) (uint32, error)
}

const (
	// idleDelay is the pause between state polls while no work is
	// pending.
	idleDelay = 10 * time.Millisecond

	// defaultBatteryInterval is how often the battery is sampled
	// while idle.
	defaultBatteryInterval = time.Second
)

// Sampler is the task owning the load cell. It polls the shared state
// for requested work, performs the sampling on its own goroutine and
// feeds results into the outbound queue. No other task may touch the
// cell.
type Sampler struct {
	Cell    *hx711.HX711
	Battery Voltmeter
	State   *State
	Queue   *Queue

	// Now returns the device clock in microseconds.
	Now func() uint32

	// LowPowerThreshold is the battery voltage in millivolts below
	// which a low power warning is sent. Zero disables the warning.
	LowPowerThreshold uint32

	// BatteryInterval overrides defaultBatteryInterval when positive.
	BatteryInterval time.Duration

	// Sleep pauses the idle loop; nil means time.Sleep.
	Sleep func(time.Duration)

	Log *slog.Logger

	warned      bool
	lastBattery time.Time
}

// Run polls the shared state and performs the requested sampling work
// until ctx is cancelled. Sampling failures are logged and the loop
// continues; only cancellation stops it.
func (s *Sampler) Run(ctx context.Context) error {
	sleep := s.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := s.State.Snapshot()
		switch snap.Status {
		case Disabled:
			s.sampleBattery(ctx)
			sleep(idleDelay)

		case Taring, SoftTaring:
			if err := s.Cell.Tare(ctx); err != nil {
				s.Log.Error("tare failed", "err", err)
				s.State.Stop()
				continue
			}
			s.State.CompleteTare()

		case Enabled:
			w, err := s.Cell.ReadCalibrated(ctx)
			if err != nil {
				s.Log.Error("measurement failed", "err", err)
				continue
			}
			s.Queue.TrySend(NewDataPoint(WeightMeasurement{
				Weight:    w,
				Timestamp: s.Now() - snap.StartTime,
			}))

		case Calibrating:
			s.calibrate(ctx, snap.Target)

		case RestoringDefaults:
			if err := s.Cell.DefaultCalibration(); err != nil {
				s.Log.Error("failed to restore default calibration", "err", err)
			}
			s.State.Resolve(RestoringDefaults)

		case ReportingCalibration:
			cal := s.Cell.Calibration()
			s.Queue.TrySend(NewDataPoint(CalibrationValues{
				Offset: cal.Offset,
				Factor: cal.Factor,
			}))
			s.State.Resolve(ReportingCalibration)
		}
	}
}

// calibrate collects one calibration point and, when it is the second
// of a pair, derives and installs the new two point calibration.
func (s *Sampler) calibrate(ctx context.Context, target float32) {
	point, err := s.Cell.CollectCalibrationPoint(ctx)
	if err != nil {
		s.Log.Error("calibration point failed", "err", err)
		s.State.Stop()
		return
	}
	points, done := s.State.CompleteCalibrationPoint(point)
	if !done {
		return
	}
	if err := s.Cell.ApplyTwoPointCalibration(points, target); err != nil {
		s.Log.Error("calibration rejected", "points", points, "target", target, "err", err)
	}
}

// sampleBattery refreshes the shared battery reading at the sampling
// interval and raises a low power warning once per threshold crossing.
func (s *Sampler) sampleBattery(ctx context.Context) {
	interval := s.BatteryInterval
	if interval == 0 {
		interval = defaultBatteryInterval
	}
	if time.Since(s.lastBattery) < interval {
		return
	}
	s.lastBattery = time.Now()

	mv, err := s.Battery.Millivolts(ctx)
	if err != nil {
		s.Log.Error("battery sample failed", "err", err)
		return
	}
	s.State.SetBatteryMillivolts(mv)

	if s.LowPowerThreshold == 0 {
		return
	}
	if mv >= s.LowPowerThreshold {
		s.warned = false
		return
	}
	if !s.warned {
		s.Log.Warn("battery low", "mv", mv, "threshold", s.LowPowerThreshold)
		s.Queue.TrySend(NewDataPoint(LowPowerWarning{}))
		s.warned = true
	}
}
