// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hx711

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func newTestCell(src func() int32, cfg Config) *HX711 {
	sim := NewSim(src)
	if cfg.Delay == nil {
		cfg.Delay = func(time.Duration) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = discard()
	}
	return New(sim, sim, cfg)
}

func TestReadRawSignExtension(t *testing.T) {
	tests := []struct {
		name string
		bits int32 // low 24 bits shifted out by the cell
		want int32
	}{
		{name: "zero", bits: 0x000000, want: 0},
		{name: "one", bits: 0x000001, want: 1},
		{name: "max_positive", bits: 0x7fffff, want: Maximum},
		{name: "min_negative", bits: -0x800000, want: Minimum},
		{name: "minus_one", bits: -1, want: -1},
		{name: "sign_bit_only", bits: 0x800000, want: Minimum},
		{name: "negative_small", bits: 0xfffff6, want: -10},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cell := newTestCell(Constant(test.bits), Config{})
			got, err := cell.ReadRaw(context.Background())
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestReadRawGainPulses(t *testing.T) {
	// A full frame is 24 data pulses plus the gain selection pulses.
	for _, test := range []struct {
		gain GainMode
		want int
	}{
		{gain: GainA128, want: 25},
		{gain: GainB32, want: 26},
		{gain: GainA64, want: 27},
	} {
		sim := NewSim(Constant(42))
		cell := New(sim, sim, Config{Gain: test.gain, Delay: func(time.Duration) {}, Logger: discard()})
		_, err := cell.ReadRaw(context.Background())
		require.NoError(t, err)
		assert.Equal(t, test.want, sim.pulses, "gain %d", test.gain)
	}
}

func TestWaitForReadyCancellation(t *testing.T) {
	cell := newTestCell(Constant(0), Config{})
	cell.data = stuckHigh{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cell.WaitForReady(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("WaitForReady did not observe cancellation")
	}
}

// stuckHigh models a cell that never completes a conversion.
type stuckHigh struct{}

func (stuckHigh) Get() bool { return true }

func TestTareConstantInput(t *testing.T) {
	const k = 12345
	cell := newTestCell(Constant(k), Config{})

	require.NoError(t, cell.Tare(context.Background()))
	assert.Equal(t, int32(k), cell.TareValue(), "streaming mean of a constant must converge exactly")

	tared, err := cell.ReadTared(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(0), tared)
}

func TestTareSkipsOnInvalidCalibration(t *testing.T) {
	cell := newTestCell(Constant(500), Config{})
	cell.cal = Calibration{Offset: 0, Factor: 0} // deliberately broken

	require.NoError(t, cell.Tare(context.Background()))
	assert.Equal(t, int32(0), cell.TareValue(), "tare must be skipped while calibration is invalid")
}

func TestTwoPointCalibrationRoundTrip(t *testing.T) {
	cell := newTestCell(Constant(300), Config{})

	require.NoError(t, cell.ApplyTwoPointCalibration([2]float32{100, 300}, 20))
	cal := cell.Calibration()
	assert.InDelta(t, 0.1, cal.Factor, 1e-6)
	assert.InDelta(t, 10.0, cal.Offset, 1e-6)

	// Raw 300 with no tare: (300*0.1 - 10)/1000 kg.
	w, err := cell.ReadCalibrated(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.02, w, 1e-6)
}

func TestTwoPointCalibrationRejection(t *testing.T) {
	cell := newTestCell(Constant(0), Config{})
	before := cell.Calibration()

	err := cell.ApplyTwoPointCalibration([2]float32{100, 100 + 1e-7}, 20)
	assert.ErrorIs(t, err, ErrInvalidCalibration, "points too close")

	err = cell.ApplyTwoPointCalibration([2]float32{100, 300}, 0)
	assert.ErrorIs(t, err, ErrInvalidCalibration, "non-positive target")

	err = cell.ApplyTwoPointCalibration([2]float32{100, 300}, -5)
	assert.ErrorIs(t, err, ErrInvalidCalibration, "negative target")

	assert.Equal(t, before, cell.Calibration(), "rejected calibration must not alter state")
}

func TestCollectCalibrationPointResetsCalibration(t *testing.T) {
	cell := newTestCell(Constant(250), Config{CalibrationSamples: 10})
	cell.cal = Calibration{Offset: 3, Factor: 2}

	p, err := cell.CollectCalibrationPoint(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 250.0, p, 1e-3)
	assert.Equal(t, Calibration{Offset: 0, Factor: 1}, cell.Calibration())
}

func TestUpdateCalibrationStorageFailure(t *testing.T) {
	store := NewStore(failingStorage{}, 0, discard())
	cell := newTestCell(Constant(0), Config{Store: store})
	before := cell.Calibration()

	err := cell.UpdateCalibration(1, 2)
	assert.ErrorIs(t, err, ErrStorage)
	assert.Equal(t, before, cell.Calibration(), "in-memory calibration must survive a failed persist")
}
