// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/crimpkit/crimp/battery"
	"github.com/crimpkit/crimp/cmd/internal/ring"
	"github.com/crimpkit/crimp/progressor"
)

// sampleFreq is the nominal measurement streaming rate.
const sampleFreq = 80

type monitor struct {
	listener *progressor.Listener
	cancel   context.CancelFunc
}

func newMonitor(ctx context.Context, dev bluetooth.Device, update chan image.Image) (*monitor, error) {
	card := image.NewGray(image.Rectangle{Max: image.Point{X: 296, Y: 128}})
	blank(card)

	readout := newForceReadout(subDrawImage(card, image.Rectangle{
		Min: image.Point{X: 0, Y: 0},
		Max: image.Point{X: 64, Y: 64},
	}))
	trace := newForcePlot(subDrawImage(card, image.Rectangle{
		Min: image.Point{X: 0, Y: 64},
		Max: image.Point{X: 296, Y: 128},
	}))
	history := newPullHistory(time.Second, subDrawImage(card, image.Rectangle{
		Min: image.Point{X: 64, Y: 0},
		Max: image.Point{X: 296, Y: 64},
	}))

	var mu sync.Mutex
	traceRing := ring.NewBuffer[int32](3 * sampleFreq)
	tick := make(chan progressor.WeightMeasurement, 1)

	l, err := progressor.NewListener(&dev, func(p progressor.DataPoint, err error) {
		if err != nil {
			log.Printf("failed to decode data point: %v", err)
			return
		}
		if p.IsLowPower() {
			log.Print("device battery low")
			return
		}
		m, err := p.Measurement()
		if err != nil {
			// Command responses share the notification stream.
			return
		}
		mu.Lock()
		// Plot in grams so the trace shares the integer drawing
		// helpers.
		traceRing.Write([]int32{int32(m.Weight * 1000)})
		mu.Unlock()
		select {
		case tick <- m:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %v", err)
	}

	if level, err := battery.Level(&dev); err == nil {
		fmt.Printf("device battery: %d%%\n", level)
	}

	if err := l.Tare(); err != nil {
		l.Close()
		return nil, err
	}
	if err := l.Start(); err != nil {
		l.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-tick:
				readout.add(m.Weight)
				mu.Lock()
				if traceRing.Len() >= trace.width() {
					trace.add(traceRing)
				}
				mu.Unlock()
				history.add(time.Now(), m.Weight)
				select {
				case update <- card:
				default:
				}
			}
		}
	}()

	return &monitor{
		listener: l,
		cancel:   cancel,
	}, nil
}

func (m *monitor) Close() error {
	m.listener.Stop()
	err := m.listener.Close()
	m.cancel()
	return err
}
