// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hx711 implements a bit-banged driver for the HX711 24-bit
// load cell ADC.
//
// The HX711 presents a two-wire synchronous serial interface: a clock
// output and a data input. The device signals that a conversion is
// ready by pulling the data line low; the host then clocks out 24
// data bits MSB first, followed by one to three extra pulses selecting
// the amplifier gain for the next conversion.
//
// Electrical and timing details are described in the [HX711 datasheet].
//
// [HX711 datasheet]: https://cdn.sparkfun.com/datasheets/Sensors/ForceFlex/hx711_english.pdf
package hx711

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

const (
	// Minimum and Maximum are the bounds of a 24-bit two's-complement
	// reading. Values outside the range are clamped.
	Minimum = -(1 << 23)
	Maximum = 1<<23 - 1

	dataBits = 24
	signBit  = 0x800000

	// bitDelay is the pause between clock edges. The datasheet asks
	// for at least 0.2µs; a held-high clock beyond 60µs powers the
	// chip down, so the read loop must not be preempted mid-frame.
	bitDelay = time.Microsecond

	// readyPoll is the interval at which WaitForReady samples the
	// data line. Conversions arrive at 10–80Hz, so millisecond
	// polling loses no samples.
	readyPoll = time.Millisecond

	defaultTareSamples        = 16
	defaultCalibrationSamples = 100
)

// GainMode selects the amplifier gain and input channel. The choice is
// communicated to the chip as a fixed number of extra clock pulses
// after each 24-bit read.
type GainMode uint8

const (
	// GainA128 selects channel A with a gain of 128.
	GainA128 GainMode = 1
	// GainB32 selects channel B with a gain of 32.
	GainB32 GainMode = 2
	// GainA64 selects channel A with a gain of 64.
	GainA64 GainMode = 3
)

// Clock is the serial clock output line (PD_SCK).
type Clock interface {
	High()
	Low()
}

// Data is the serial data input line (DOUT). The level is high while a
// conversion is in progress and low once a sample may be read.
type Data interface {
	Get() bool
}

// Config holds optional HX711 construction parameters. The zero value
// selects channel A at gain 64 with no persistent calibration store.
type Config struct {
	// Gain is the initial gain mode. Zero selects GainA64.
	Gain GainMode

	// Store persists calibration values. If nil, calibration lives
	// only in memory and starts from DefaultCalibration.
	Store *Store

	// TareSamples and CalibrationSamples are the number of readings
	// averaged by Tare and CollectCalibrationPoint. Zero selects 16
	// and 100 respectively.
	TareSamples        int
	CalibrationSamples int

	// Delay pauses between clock edges for at least the given
	// duration. If nil a spin wait is used; timer-based sleeps are
	// far too coarse for microsecond edges.
	Delay func(time.Duration)

	// Exclusive runs f with scheduling interference minimised. The
	// 24-bit frame must complete without long pauses or the chip
	// powers down mid-read. If nil, the calling goroutine is pinned
	// to its OS thread for the duration of the frame.
	Exclusive func(f func())

	// Logger receives driver diagnostics. If nil, slog.Default is
	// used.
	Logger *slog.Logger
}

// HX711 is a driver for a single HX711 connected load cell. It is not
// safe for concurrent use; the measurement task is its only owner.
type HX711 struct {
	data  Data
	clock Clock

	gain      GainMode
	tareValue int32
	cal       Calibration
	store     *Store

	tareSamples int
	calSamples  int

	delay     func(time.Duration)
	exclusive func(func())
	log       *slog.Logger
}

// New returns a driver for the load cell on the given pin pair. The
// clock line is driven low, and calibration is loaded from cfg.Store,
// falling back to DefaultCalibration when the store is empty, corrupt
// or absent.
func New(data Data, clock Clock, cfg Config) *HX711 {
	h := &HX711{
		data:        data,
		clock:       clock,
		gain:        cfg.Gain,
		store:       cfg.Store,
		tareSamples: cfg.TareSamples,
		calSamples:  cfg.CalibrationSamples,
		delay:       cfg.Delay,
		exclusive:   cfg.Exclusive,
		log:         cfg.Logger,
	}
	if h.gain == 0 {
		h.gain = GainA64
	}
	if h.tareSamples == 0 {
		h.tareSamples = defaultTareSamples
	}
	if h.calSamples == 0 {
		h.calSamples = defaultCalibrationSamples
	}
	if h.delay == nil {
		h.delay = spinWait
	}
	if h.exclusive == nil {
		h.exclusive = pinned
	}
	if h.log == nil {
		h.log = slog.Default()
	}

	h.clock.Low()

	h.cal = DefaultCalibration
	if h.store != nil {
		cal, err := h.store.Load()
		if err != nil {
			h.log.Info("using default calibration", "error", err)
		} else {
			h.cal = cal
		}
	}
	h.log.Debug("hx711 initialized", "gain", h.gain, "offset", h.cal.Offset, "factor", h.cal.Factor)
	return h
}

func spinWait(d time.Duration) {
	for end := time.Now().Add(d); time.Now().Before(end); {
	}
}

// pinned is the default Exclusive: pinning to the OS thread is the
// closest hosted analogue to an interrupt-free critical section.
func pinned(f func()) {
	runtime.LockOSThread()
	f()
	runtime.UnlockOSThread()
}

// SetGainMode sets the gain mode used from the next reading onwards.
func (h *HX711) SetGainMode(gain GainMode) { h.gain = gain }

// GainMode returns the current gain mode.
func (h *HX711) GainMode() GainMode { return h.gain }

// readBit pulses the clock and samples the data line while the clock
// is high.
func (h *HX711) readBit() bool {
	h.clock.High()
	h.delay(bitDelay)
	bit := h.data.Get()
	h.clock.Low()
	h.delay(bitDelay)
	return bit
}

// readRaw clocks a full 24-bit frame plus the gain selection pulses,
// then sign-extends and clamps the result. The frame runs under the
// exclusive section so edge timing is not disturbed.
func (h *HX711) readRaw() int32 {
	var value uint32
	h.exclusive(func() {
		for range dataBits {
			value = value<<1 | b2u(h.readBit())
		}
		for range h.gain {
			h.clock.High()
			h.delay(bitDelay)
			h.clock.Low()
			h.delay(bitDelay)
		}
	})

	if value&signBit != 0 {
		value |= 0xff000000
	}
	return clamp(int32(value), Minimum, Maximum)
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func clamp(v, lo, hi int32) int32 {
	return max(lo, min(v, hi))
}

// WaitForReady blocks until the device pulls the data line low to
// signal that a sample may be read, or until ctx is cancelled.
func (h *HX711) WaitForReady(ctx context.Context) error {
	for h.data.Get() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPoll):
		}
	}
	return nil
}

// ReadRaw waits for the next conversion and returns the raw reading.
func (h *HX711) ReadRaw(ctx context.Context) (int32, error) {
	err := h.WaitForReady(ctx)
	if err != nil {
		return 0, err
	}
	return h.readRaw(), nil
}

// ReadTared waits for the next conversion and returns the raw reading
// with the tare baseline subtracted.
func (h *HX711) ReadTared(ctx context.Context) (int32, error) {
	raw, err := h.ReadRaw(ctx)
	if err != nil {
		return 0, err
	}
	return raw - h.tareValue, nil
}

// ReadCalibrated waits for the next conversion and returns the weight
// in kilograms. The tare baseline applies to the raw count before
// scaling; the calibration offset is subtracted after scaling. The
// calibration factor maps raw counts to grams, hence the final /1000.
func (h *HX711) ReadCalibrated(ctx context.Context) (float32, error) {
	tared, err := h.ReadTared(ctx)
	if err != nil {
		return 0, err
	}
	return (float32(tared)*h.cal.Factor - h.cal.Offset) / 1000, nil
}

// takeSamples averages n consecutive raw readings using a streaming
// mean so the accumulator cannot overflow.
func (h *HX711) takeSamples(ctx context.Context, n int) (float32, error) {
	var mean float32
	for i := 1; i <= n; i++ {
		raw, err := h.ReadRaw(ctx)
		if err != nil {
			return 0, err
		}
		mean += (float32(raw) - mean) / float32(i)
	}
	return mean, nil
}

// Tare measures the unloaded baseline by averaging several readings
// and records it as the tare value. If the current calibration is
// invalid the tare is skipped: a baseline captured against nonsense
// calibration would itself be nonsense.
func (h *HX711) Tare(ctx context.Context) error {
	if !h.cal.Valid() {
		h.log.Info("invalid calibration, skipping tare")
		return nil
	}
	mean, err := h.takeSamples(ctx, h.tareSamples)
	if err != nil {
		return err
	}
	h.tareValue = int32(mean)
	h.log.Debug("tare value set", "value", h.tareValue)
	return nil
}

// TareValue returns the current tare baseline in raw counts.
func (h *HX711) TareValue() int32 { return h.tareValue }

// CollectCalibrationPoint resets calibration to identity and averages
// a run of raw readings, returning the average as one of the two
// points needed by ApplyTwoPointCalibration.
func (h *HX711) CollectCalibrationPoint(ctx context.Context) (float32, error) {
	err := h.UpdateCalibration(0, 1)
	if err != nil {
		h.log.Error("failed to reset calibration", "error", err)
	}
	mean, err := h.takeSamples(ctx, h.calSamples)
	if err != nil {
		return 0, err
	}
	h.log.Debug("calibration point collected", "value", mean)
	return mean, nil
}

// ApplyTwoPointCalibration derives and persists a linear calibration
// from two previously collected points and the known weight that was
// applied for the second point. It fails without touching the current
// calibration if the points are indistinguishable or the target
// weight is not positive.
func (h *HX711) ApplyTwoPointCalibration(points [2]float32, targetWeight float32) error {
	p1, p2 := points[0], points[1]
	if abs32(p2-p1) < epsilon32 {
		h.log.Error("calibration points too close together", "p1", p1, "p2", p2)
		return ErrInvalidCalibration
	}
	if targetWeight <= 0 {
		h.log.Error("invalid calibration target weight", "weight", targetWeight)
		return ErrInvalidCalibration
	}
	factor := targetWeight / (p2 - p1)
	offset := factor * p1
	return h.UpdateCalibration(offset, factor)
}

// UpdateCalibration validates the new calibration, persists it, and
// only then updates the in-memory copy, so a storage failure leaves
// the previous known-good calibration in effect.
func (h *HX711) UpdateCalibration(offset, factor float32) error {
	cal := Calibration{Offset: offset, Factor: factor}
	if !cal.Valid() {
		h.log.Error("invalid calibration values", "offset", offset, "factor", factor)
		return ErrInvalidCalibration
	}
	if h.store != nil {
		err := h.store.Save(cal)
		if err != nil {
			return err
		}
	}
	h.cal = cal
	return nil
}

// DefaultCalibration restores and persists the compiled-in default
// calibration.
func (h *HX711) DefaultCalibration() error {
	h.log.Debug("restoring default calibration")
	return h.UpdateCalibration(DefaultCalibration.Offset, DefaultCalibration.Factor)
}

// Calibration returns the calibration currently in effect.
func (h *HX711) Calibration() Calibration { return h.cal }
