// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hx711

import "sync"

// Sim emulates the HX711 serial interface, implementing both the Data
// and Clock pin for a driver under test or a daemon run without
// hardware. Raw 24-bit samples are drawn from a source function; only
// the low 24 bits of each value are used, so sign handling is
// exercised exactly as with real hardware.
type Sim struct {
	mu     sync.Mutex
	source func() int32
	shift  uint32
	pulses int
	high   bool
}

// NewSim returns a simulated cell producing samples from source.
func NewSim(source func() int32) *Sim {
	return &Sim{source: source}
}

// High records a rising clock edge. The first edge of a frame latches
// the next sample from the source.
func (s *Sim) High() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.high = true
	if s.pulses == 0 {
		s.shift = uint32(s.source()) & 0xffffff
	}
	s.pulses++
}

// Low records a falling clock edge.
func (s *Sim) Low() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.high = false
}

// Get returns the data line level. While the clock is high it shifts
// out the latched sample MSB first; pulses beyond the 24 data bits
// read high, matching the gain selection phase. While the clock is
// idle a poll marks the end of the frame and reports a conversion
// ready (low).
func (s *Sim) Get() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.high {
		if s.pulses >= 1 && s.pulses <= dataBits {
			return s.shift&(1<<(dataBits-s.pulses)) != 0
		}
		return true
	}
	s.pulses = 0
	return false
}

// Constant returns a sample source that always produces v.
func Constant(v int32) func() int32 {
	return func() int32 { return v }
}

// Sequence returns a sample source producing vs in order, repeating
// the final value once exhausted.
func Sequence(vs ...int32) func() int32 {
	i := 0
	return func() int32 {
		v := vs[i]
		if i < len(vs)-1 {
			i++
		}
		return v
	}
}
