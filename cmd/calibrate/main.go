// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The calibrate command manages a Progressor protocol dynamometer's
// calibration from the command line.
//
// Usage:
//
//	calibrate [flags] info
//	calibrate [flags] tare
//	calibrate [flags] calibrate <kg>
//	calibrate [flags] reset
//	calibrate fit <csv>
//
// The calibrate subcommand walks through a two point calibration
// against a known weight. The fit subcommand is offline: it fits a
// line to logged raw,kg pairs and prints the equivalent calibration
// values.
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
	"tinygo.org/x/bluetooth"

	"github.com/crimpkit/crimp/progressor"
)

func main() {
	name := flag.String("name", "Progressor", "advertised device name prefix")
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd := flag.Arg(0); cmd {
	case "fit":
		if flag.NArg() != 2 {
			flag.Usage()
			os.Exit(2)
		}
		err = fit(flag.Arg(1))
	case "info", "tare", "reset":
		err = withDevice(*name, func(s *session) error {
			switch cmd {
			case "info":
				return s.info()
			case "tare":
				return s.listener.Tare()
			default:
				return s.reset()
			}
		})
	case "calibrate":
		if flag.NArg() != 2 {
			flag.Usage()
			os.Exit(2)
		}
		weight, perr := strconv.ParseFloat(flag.Arg(1), 32)
		if perr != nil || weight <= 0 {
			fmt.Fprintf(os.Stderr, "invalid weight %q\n", flag.Arg(1))
			os.Exit(2)
		}
		err = withDevice(*name, func(s *session) error {
			return s.calibrate(float32(weight))
		})
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is a connected device with its command responses funnelled
// into a channel.
type session struct {
	listener  *progressor.Listener
	responses chan progressor.DataPoint
}

func withDevice(name string, do func(*session) error) error {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("failed to enable bluetooth: %w", err)
	}

	fmt.Println("scanning...")
	var dev bluetooth.Device
	found := false
	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !strings.HasPrefix(result.LocalName(), name) {
			return
		}
		d, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
			return
		}
		dev = d
		found = true
		adapter.StopScan()
	})
	if err != nil {
		return fmt.Errorf("failed to scan: %w", err)
	}
	if !found {
		return fmt.Errorf("no device found")
	}
	defer dev.Disconnect()

	s := &session{responses: make(chan progressor.DataPoint, 8)}
	l, err := progressor.NewListener(&dev, func(p progressor.DataPoint, err error) {
		if err != nil {
			return
		}
		select {
		case s.responses <- p:
		default:
		}
	})
	if err != nil {
		return err
	}
	s.listener = l
	defer l.Close()

	return do(s)
}

// request sends a query and waits for the next notified response.
// Responses arrive in request order, so pairing is positional.
func (s *session) request(send func() error) (progressor.DataPoint, error) {
	if err := send(); err != nil {
		return progressor.DataPoint{}, err
	}
	select {
	case p := <-s.responses:
		return p, nil
	case <-time.After(2 * time.Second):
		return progressor.DataPoint{}, fmt.Errorf("no response from device")
	}
}

func (s *session) info() error {
	p, err := s.request(s.listener.RequestAppVersion)
	if err != nil {
		return err
	}
	fmt.Printf("version:     %s\n", p.Value[:p.Length])

	p, err = s.request(s.listener.RequestProgressorID)
	if err != nil {
		return err
	}
	var buf [8]byte
	copy(buf[:], p.Value[:p.Length])
	fmt.Printf("id:          %012x\n", binary.LittleEndian.Uint64(buf[:]))

	p, err = s.request(s.listener.SampleBattery)
	if err != nil {
		return err
	}
	fmt.Printf("battery:     %dmV\n", binary.LittleEndian.Uint32(p.Value[:4]))

	offset, factor, err := s.calibration()
	if err != nil {
		return err
	}
	fmt.Printf("calibration: offset=%g factor=%g\n", offset, factor)
	return nil
}

func (s *session) calibration() (offset, factor float32, err error) {
	p, err := s.request(s.listener.RequestCalibration)
	if err != nil {
		return 0, 0, err
	}
	offset = math.Float32frombits(binary.LittleEndian.Uint32(p.Value[0:4]))
	factor = math.Float32frombits(binary.LittleEndian.Uint32(p.Value[4:8]))
	return offset, factor, nil
}

// settle covers the device averaging a calibration point at the
// slowest conversion rate.
const settle = 15 * time.Second

func (s *session) calibrate(weight float32) error {
	in := bufio.NewReader(os.Stdin)

	fmt.Print("unload the scale and press Enter...")
	in.ReadString('\n')
	if err := s.listener.AddCalibrationPoint(weight); err != nil {
		return err
	}
	fmt.Println("collecting zero point...")
	time.Sleep(settle)

	fmt.Printf("hang %v kg and press Enter...", weight)
	in.ReadString('\n')
	if err := s.listener.AddCalibrationPoint(weight); err != nil {
		return err
	}
	fmt.Println("collecting loaded point...")
	time.Sleep(settle)

	offset, factor, err := s.calibration()
	if err != nil {
		return err
	}
	fmt.Printf("calibrated: offset=%g factor=%g\n", offset, factor)
	return nil
}

func (s *session) reset() error {
	if err := s.listener.DefaultCalibration(); err != nil {
		return err
	}
	time.Sleep(time.Second)
	offset, factor, err := s.calibration()
	if err != nil {
		return err
	}
	fmt.Printf("restored: offset=%g factor=%g\n", offset, factor)
	return nil
}

// fit reads raw,kg sample pairs and fits the linear calibration that
// best explains them: grams = raw*factor - offset.
func fit(path string) error {
	raw, grams, err := loadSamples(path)
	if err != nil {
		return err
	}
	offset, factor, r2 := fitLine(raw, grams)
	fmt.Printf("offset=%g factor=%g (r²=%.4f over %d samples)\n", offset, factor, r2, len(raw))
	return nil
}

func loadSamples(path string) (raw, grams []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	for i, rec := range records {
		if len(rec) != 2 {
			return nil, nil, fmt.Errorf("%s:%d: expected raw,kg", path, i+1)
		}
		r, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			if i == 0 {
				continue // header
			}
			return nil, nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		kg, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		raw = append(raw, r)
		grams = append(grams, kg*1000)
	}
	if len(raw) < 2 {
		return nil, nil, fmt.Errorf("%s: need at least two samples", path)
	}
	return raw, grams, nil
}

func fitLine(raw, grams []float64) (offset, factor, r2 float64) {
	alpha, beta := stat.LinearRegression(raw, grams, nil, false)
	r2 = stat.RSquared(raw, grams, nil, alpha, beta)
	return -alpha, beta, r2
}
