// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The bridge command connects to a Progressor protocol dynamometer
// and fans its measurement stream out to training tools: samples are
// recorded to a SQLite session log, broadcast to WebSocket clients,
// and optionally republished over MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"tinygo.org/x/bluetooth"

	"github.com/crimpkit/crimp/progressor"
)

func main() {
	name := flag.String("name", "Progressor", "advertised device name prefix")
	listen := flag.String("listen", ":8527", "websocket listen address")
	broker := flag.String("broker", "", "MQTT broker address, e.g. tcp://localhost:1883 (empty disables MQTT)")
	dbPath := flag.String("db", "sessions.db", "session database")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, *name, *listen, *broker, *dbPath, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bridge failed", "err", err)
		os.Exit(1)
	}
}

type sample struct {
	Device    string  `json:"device"`
	Session   int64   `json:"session"`
	Timestamp uint32  `json:"timestamp_us"`
	Weight    float32 `json:"weight_kg"`
}

func run(ctx context.Context, name, listen, broker, dbPath string, log *slog.Logger) error {
	dev, devName, err := connect(ctx, name, log)
	if err != nil {
		return err
	}
	defer dev.Disconnect()

	store, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	session, err := store.BeginSession(devName)
	if err != nil {
		return err
	}
	log.Info("session started", "id", session, "device", devName)

	hub := newHub(log)
	go hub.serve(ctx, listen)

	var pub *publisher
	if broker != "" {
		pub, err = newPublisher(ctx, broker, devName, log)
		if err != nil {
			return err
		}
		defer pub.close()
	}

	samples := make(chan sample, 80)
	l, err := progressor.NewListener(&dev, func(p progressor.DataPoint, err error) {
		if err != nil {
			log.Debug("failed to decode data point", "err", err)
			return
		}
		if p.IsLowPower() {
			log.Warn("device battery low")
			if pub != nil {
				pub.lowPower()
			}
			return
		}
		m, err := p.Measurement()
		if err != nil {
			return
		}
		select {
		case samples <- sample{Device: devName, Session: session, Timestamp: m.Timestamp, Weight: m.Weight}:
		default:
			log.Debug("dropping sample, consumer behind")
		}
	})
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.Tare(); err != nil {
		return err
	}
	if err := l.Start(); err != nil {
		return err
	}
	defer l.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-samples:
			if err := store.AddSample(s.Session, s.Timestamp, s.Weight); err != nil {
				log.Error("failed to record sample", "err", err)
			}
			hub.broadcast(s)
			if pub != nil {
				pub.sample(s)
			}
		}
	}
}

// connect scans for the named device and connects to it.
func connect(ctx context.Context, name string, log *slog.Logger) (bluetooth.Device, string, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return bluetooth.Device{}, "", fmt.Errorf("failed to enable bluetooth: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { adapter.StopScan() })
	defer stop()

	log.Info("scanning", "name", name)
	var (
		dev     bluetooth.Device
		devName string
		found   bool
	)
	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !strings.HasPrefix(result.LocalName(), name) {
			return
		}
		d, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
		if err != nil {
			log.Error("failed to connect", "device", result.Address, "err", err)
			return
		}
		dev = d
		devName = result.LocalName()
		found = true
		adapter.StopScan()
	})
	if err != nil {
		return bluetooth.Device{}, "", fmt.Errorf("failed to scan: %w", err)
	}
	if !found {
		return bluetooth.Device{}, "", ctx.Err()
	}
	log.Info("connected", "device", devName)
	return dev, devName, nil
}
