// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package progressor

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimpkit/crimp/hx711"
)

type fakeBattery struct{ mv atomic.Uint32 }

func (b *fakeBattery) Millivolts(ctx context.Context) (uint32, error) { return b.mv.Load(), nil }

type samplerFixture struct {
	sampler *Sampler
	state   *State
	queue   *Queue
	cell    *hx711.HX711
	source  *atomic.Int32
	battery *fakeBattery
}

func newSamplerFixture(t *testing.T) *samplerFixture {
	t.Helper()
	var source atomic.Int32
	sim := hx711.NewSim(func() int32 { return source.Load() })
	cell := hx711.New(sim, sim, hx711.Config{
		TareSamples:        4,
		CalibrationSamples: 4,
		Delay:              func(time.Duration) {},
		Logger:             discard(),
	})
	state := NewState()
	queue := NewQueue(discard())
	battery := &fakeBattery{}
	battery.mv.Store(3700)
	f := &samplerFixture{
		sampler: &Sampler{
			Cell:              cell,
			Battery:           battery,
			State:             state,
			Queue:             queue,
			Now:               func() uint32 { return 1500 },
			LowPowerThreshold: 3200,
			BatteryInterval:   -1,
			Sleep:             func(time.Duration) {},
			Log:               discard(),
		},
		state:   state,
		queue:   queue,
		cell:    cell,
		source:  &source,
		battery: battery,
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.sampler.Run(ctx)
	return f
}

func (f *samplerFixture) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.state.Snapshot().Status == Disabled
	}, time.Second, time.Millisecond)
}

func (f *samplerFixture) recv(t *testing.T) DataPoint {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := f.queue.Receive(ctx)
	require.NoError(t, err)
	return p
}

func TestSamplerTare(t *testing.T) {
	f := newSamplerFixture(t)
	f.source.Store(12345)

	f.state.RequestTare()
	require.Eventually(t, func() bool {
		snap := f.state.Snapshot()
		return snap.Status == Disabled && snap.Tared
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(12345), f.cell.TareValue())
}

func TestSamplerStreaming(t *testing.T) {
	f := newSamplerFixture(t)

	// Tare against an unloaded cell, then load it and start.
	f.state.RequestTare()
	require.Eventually(t, func() bool { return f.state.Snapshot().Tared }, time.Second, time.Millisecond)
	f.source.Store(300)
	f.state.StartMeasurement(1000)

	p := f.recv(t)
	m, err := p.Measurement()
	require.NoError(t, err)
	// 300 raw counts at the default 0.066 g per count.
	assert.InDelta(t, 300*0.066/1000, m.Weight, 1e-6)
	assert.Equal(t, uint32(500), m.Timestamp)

	f.state.Stop()
}

// reportedCalibration asks the sampling task for its calibration so
// the values are read on the goroutine that owns the cell.
func (f *samplerFixture) reportedCalibration(t *testing.T) (offset, factor float32) {
	t.Helper()
	f.state.RequestCalibrationReport()
	p := f.recv(t)
	require.Equal(t, byte(8), p.Length)
	offset = math.Float32frombits(binary.LittleEndian.Uint32(p.Value[0:4]))
	factor = math.Float32frombits(binary.LittleEndian.Uint32(p.Value[4:8]))
	return offset, factor
}

func TestSamplerTwoPointCalibration(t *testing.T) {
	f := newSamplerFixture(t)

	f.source.Store(100)
	f.state.RequestCalibration(20)
	f.waitIdle(t)

	f.source.Store(300)
	f.state.RequestCalibration(20)
	f.waitIdle(t)

	offset, factor := f.reportedCalibration(t)
	assert.InDelta(t, 0.1, factor, 1e-6)
	assert.InDelta(t, 10.0, offset, 1e-6)
}

func TestSamplerReportsCalibration(t *testing.T) {
	f := newSamplerFixture(t)

	f.state.RequestCalibrationReport()
	p := f.recv(t)
	want := NewDataPoint(CalibrationValues{
		Offset: hx711.DefaultCalibration.Offset,
		Factor: hx711.DefaultCalibration.Factor,
	})
	assert.Equal(t, want, p)
	f.waitIdle(t)
}

func TestSamplerRestoresDefaultCalibration(t *testing.T) {
	f := newSamplerFixture(t)

	// Calibrate away from the defaults first.
	f.source.Store(100)
	f.state.RequestCalibration(20)
	f.waitIdle(t)
	f.source.Store(300)
	f.state.RequestCalibration(20)
	f.waitIdle(t)

	f.state.RequestDefaultCalibration()
	f.waitIdle(t)

	offset, factor := f.reportedCalibration(t)
	assert.Equal(t, hx711.DefaultCalibration.Offset, offset)
	assert.Equal(t, hx711.DefaultCalibration.Factor, factor)
}

func TestSamplerLowPowerWarning(t *testing.T) {
	f := newSamplerFixture(t)
	f.battery.mv.Store(3000)

	p := f.recv(t)
	assert.True(t, p.IsLowPower())
	require.Eventually(t, func() bool { return f.state.BatteryMillivolts() == 3000 }, time.Second, time.Millisecond)

	// The warning fires once per crossing, not once per sample.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, f.queue.Len())

	// Recover and cross again.
	f.battery.mv.Store(3700)
	require.Eventually(t, func() bool { return f.state.BatteryMillivolts() == 3700 }, time.Second, time.Millisecond)
	f.battery.mv.Store(3000)
	p = f.recv(t)
	assert.True(t, p.IsLowPower())
}

func TestQueueDropsNewestWhenFull(t *testing.T) {
	q := NewQueue(discard())
	for i := 0; i < queueSize; i++ {
		require.True(t, q.TrySend(NewDataPoint(BatteryVoltage(i))))
	}
	assert.False(t, q.TrySend(NewDataPoint(BatteryVoltage(9999))), "a full queue must drop, not block")
	assert.Equal(t, queueSize, q.Len())

	// The backlog drains in order; the dropped point never appears.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	first, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, NewDataPoint(BatteryVoltage(0)), first)
}
