// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/crimpkit/crimp/config"
	"github.com/crimpkit/crimp/hx711"
)

// clockPin drives the HX711 serial clock. Write errors are dropped;
// the bit-bang loop has no way to recover mid-frame and a broken line
// shows up immediately as an all-ones reading.
type clockPin struct {
	pin gpio.PinIO
}

func (p clockPin) High() { p.pin.Out(gpio.High) }
func (p clockPin) Low()  { p.pin.Out(gpio.Low) }

// dataPin reads the HX711 serial data line.
type dataPin struct {
	pin gpio.PinIO
}

func (p dataPin) Get() bool { return p.pin.Read() == gpio.High }

// openPins initialises the GPIO host and configures the named load
// cell lines.
func openPins(cfg config.PinConfig) (hx711.Data, hx711.Clock, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialise GPIO host: %w", err)
	}
	clock := gpioreg.ByName(cfg.Clock)
	if clock == nil {
		return nil, nil, fmt.Errorf("no clock pin %q", cfg.Clock)
	}
	data := gpioreg.ByName(cfg.Data)
	if data == nil {
		return nil, nil, fmt.Errorf("no data pin %q", cfg.Data)
	}
	if err := clock.Out(gpio.Low); err != nil {
		return nil, nil, fmt.Errorf("failed to configure clock pin: %w", err)
	}
	if err := data.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, nil, fmt.Errorf("failed to configure data pin: %w", err)
	}
	return dataPin{data}, clockPin{clock}, nil
}
