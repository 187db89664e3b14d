// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The crimpd command runs a BLE load cell dynamometer speaking the
// Tindeq Progressor protocol, so climbing training apps that support
// the Progressor can use a home-built crimp block.
//
// The load cell is read through an HX711 on two GPIO lines; with -sim
// the hardware is replaced by a synthetic pull profile for development
// away from the device.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chewxy/math32"
	"github.com/lmittmann/tint"
	"tinygo.org/x/bluetooth"

	"github.com/crimpkit/crimp/battery"
	"github.com/crimpkit/crimp/config"
	"github.com/crimpkit/crimp/hx711"
	"github.com/crimpkit/crimp/internal/bleutil"
	"github.com/crimpkit/crimp/progressor"
)

// version is the app version reported over the protocol. It is set at
// build time.
var version = "dev"

func main() {
	cfgPath := flag.String("config", "/etc/crimpd/config.yaml", "configuration file")
	sim := flag.Bool("sim", false, "simulate the load cell and battery")
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

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("failed to load configuration", "path", *cfgPath, "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, *sim, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("crimpd failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, sim bool, log *slog.Logger) error {
	// The protocol clock: microseconds since process start, matching
	// the timestamps carried in weight measurements.
	start := time.Now()
	micros := func() uint32 { return uint32(time.Since(start).Microseconds()) }

	var (
		data  hx711.Data
		clock hx711.Clock
		vbat  progressor.Voltmeter
		err   error
	)
	if sim {
		cell := hx711.NewSim(pullProfile(start))
		data, clock = cell, cell
		vbat = battery.Constant(3900)
		log.Info("using simulated load cell")
	} else {
		data, clock, err = openPins(cfg.Pins)
		if err != nil {
			return err
		}
		vbat = battery.PowerSupply{Name: cfg.Battery.Supply}
	}

	store, err := openStore(cfg.Storage, log)
	if err != nil {
		return err
	}

	cell := hx711.New(data, clock, hx711.Config{
		Store:              store,
		TareSamples:        cfg.Scale.TareSamples,
		CalibrationSamples: cfg.Scale.CalibrationSamples,
		Logger:             log,
	})

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable BLE stack: %w", err)
	}

	id := cfg.Device.ID
	if id == 0 {
		id, err = adapterID(adapter)
		if err != nil {
			return err
		}
	}

	state := progressor.NewState()
	queue := progressor.NewQueue(log)
	dec := &progressor.Decoder{
		State:   state,
		Queue:   queue,
		Version: version,
		ID:      id,
		Now:     micros,
		Log:     log,
	}

	var dataChar bluetooth.Characteristic
	err = adapter.AddService(&bluetooth.Service{
		UUID: progressor.Service,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &dataChar,
				UUID:   progressor.DataPointChar,
				Flags:  bluetooth.CharacteristicNotifyPermission,
			},
			{
				UUID:  progressor.ControlPointChar,
				Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					dec.Dispatch(value)
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add measurement service: %w", err)
	}

	var levelChar bluetooth.Characteristic
	err = adapter.AddService(&bluetooth.Service{
		UUID: battery.Service,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &levelChar,
				UUID:   battery.LevelCharacteristic,
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
				Value:  []byte{100},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add battery service: %w", err)
	}

	adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		if connected {
			log.Info("connected", "device", dev.Address)
			return
		}
		// Whatever was in flight must not leak into the next
		// connection.
		state.Disconnected(micros())
		log.Info("disconnected", "device", dev.Address)
	})

	// BlueZ constructs the advertising PDU itself; building the
	// payload here rejects names that will not fit before we start
	// advertising them.
	if _, err := bleutil.AdvertisingPayload(cfg.Device.Name); err != nil {
		return err
	}
	adv := adapter.DefaultAdvertisement()
	err = adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    cfg.Device.Name,
		ServiceUUIDs: []bluetooth.UUID{progressor.Service},
	})
	if err != nil {
		return fmt.Errorf("failed to configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("failed to start advertising: %w", err)
	}
	log.Info("advertising", "name", cfg.Device.Name, "id", fmt.Sprintf("%012x", id), "version", version)

	sampler := &progressor.Sampler{
		Cell:              cell,
		Battery:           vbat,
		State:             state,
		Queue:             queue,
		Now:               micros,
		LowPowerThreshold: cfg.Battery.LowMillivolts,
		BatteryInterval:   cfg.Battery.Interval,
		Log:               log,
	}
	go sampler.Run(ctx)

	go batteryLevel(ctx, &levelChar, state, cfg.Battery, log)

	// The notifying task: drain the queue onto the data point
	// characteristic.
	for {
		p, err := queue.Receive(ctx)
		if err != nil {
			return err
		}
		if _, err := dataChar.Write(p.Bytes()); err != nil {
			log.Debug("failed to notify data point", "err", err)
		}
	}
}

// openStore opens the persistent calibration record, creating its
// directory and file as needed.
func openStore(cfg config.StorageConfig, log *slog.Logger) (*hx711.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open calibration storage: %w", err)
	}
	return hx711.NewStore(f, cfg.Offset, log), nil
}

// adapterID derives the protocol device identity from the adapter
// address.
func adapterID(adapter *bluetooth.Adapter) (uint64, error) {
	addr, err := adapter.Address()
	if err != nil {
		return 0, fmt.Errorf("failed to read adapter address: %w", err)
	}
	var buf [8]byte
	copy(buf[:6], addr.MAC[:])
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// batteryLevel mirrors the battery voltage sampled by the measurement
// task onto the standard battery level characteristic.
func batteryLevel(ctx context.Context, char *bluetooth.Characteristic, state *progressor.State, cfg config.BatteryConfig, log *slog.Logger) {
	tick := time.NewTicker(30 * time.Second)
	defer tick.Stop()
	last := byte(0xff)
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
		mv := state.BatteryMillivolts()
		if mv == 0 {
			continue
		}
		level := battery.Percent(mv, cfg.EmptyMillivolts, cfg.FullMillivolts)
		if level == last {
			continue
		}
		last = level
		if _, err := char.Write([]byte{level}); err != nil {
			log.Debug("failed to update battery level", "err", err)
		}
	}
}

// pullProfile is the simulated load: a repeating ramp-and-hold pull
// against a quiet baseline, in raw HX711 counts.
func pullProfile(start time.Time) func() int32 {
	// Raw counts per kilogram at the default calibration.
	const countsPerKg = 1000 / 0.066
	return func() int32 {
		t := float32(time.Since(start).Seconds())
		phase := math32.Mod(t, 8)
		var kg float32
		switch {
		case phase < 2: // rest
		case phase < 3: // ramp up
			kg = 40 * (phase - 2)
		case phase < 6: // hold with a wobble
			kg = 40 + 2*math32.Sin(6*phase)
		case phase < 7: // release
			kg = 40 * (7 - phase)
		}
		return int32(kg * countsPerKg)
	}
}
