// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hx711

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/chewxy/math32"
)

var (
	// ErrStorage indicates a calibration storage I/O failure.
	ErrStorage = errors.New("hx711: calibration storage failure")
	// ErrInvalidCalibration indicates semantically invalid
	// calibration values.
	ErrInvalidCalibration = errors.New("hx711: invalid calibration value")
)

// DefaultCalibration is the compiled-in calibration used when no valid
// record is stored.
var DefaultCalibration = Calibration{Offset: 0, Factor: 0.066}

// epsilon32 is the smallest float32 such that 1+ε ≠ 1.
var epsilon32 = math32.Nextafter(1, 2) - 1

func abs32(v float32) float32 { return math32.Abs(v) }

// Calibration holds the linear raw-count to gram conversion. A weight
// is computed as raw*Factor - Offset, in grams.
type Calibration struct {
	Offset float32
	Factor float32
}

// Valid reports whether the calibration can produce meaningful
// weights: both values finite and the factor non-zero.
func (c Calibration) Valid() bool {
	if math32.IsNaN(c.Offset) || math32.IsInf(c.Offset, 0) {
		return false
	}
	if math32.IsNaN(c.Factor) || math32.IsInf(c.Factor, 0) {
		return false
	}
	return c.Factor != 0
}

// calibrationSize is the stored record size: LE float32 offset
// followed by LE float32 factor.
const calibrationSize = 8

// MarshalBinary encodes the calibration as eight little-endian bytes.
func (c Calibration) MarshalBinary() ([]byte, error) {
	var buf [calibrationSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(c.Offset))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(c.Factor))
	return buf[:], nil
}

// UnmarshalBinary decodes a stored calibration record.
func (c *Calibration) UnmarshalBinary(data []byte) error {
	if len(data) < calibrationSize {
		return io.ErrUnexpectedEOF
	}
	c.Offset = math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	c.Factor = math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	return nil
}

// Storage is a byte-addressed non-volatile blob. An os.File satisfies
// it directly; on embedded targets a flash page wrapper does.
type Storage interface {
	io.ReaderAt
	io.WriterAt
}

// Store persists a Calibration record at a fixed offset in a Storage.
type Store struct {
	storage Storage
	offset  int64
	log     *slog.Logger
}

// NewStore returns a Store reading and writing the calibration record
// at the given byte offset. If logger is nil, slog.Default is used.
func NewStore(storage Storage, offset int64, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{storage: storage, offset: offset, log: logger}
}

// Load reads and validates the stored calibration. I/O failures are
// reported as ErrStorage and structurally readable but nonsensical
// values as ErrInvalidCalibration; callers fall back to
// DefaultCalibration in either case.
func (s *Store) Load() (Calibration, error) {
	var buf [calibrationSize]byte
	_, err := s.storage.ReadAt(buf[:], s.offset)
	if err != nil {
		s.log.Error("failed to read calibration from storage", "error", err)
		return Calibration{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	var cal Calibration
	err = cal.UnmarshalBinary(buf[:])
	if err != nil {
		return Calibration{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if !cal.Valid() {
		s.log.Info("invalid calibration values read from storage")
		return Calibration{}, ErrInvalidCalibration
	}
	return cal, nil
}

// Save validates and writes the calibration record.
func (s *Store) Save(cal Calibration) error {
	if !cal.Valid() {
		return ErrInvalidCalibration
	}
	buf, _ := cal.MarshalBinary()
	_, err := s.storage.WriteAt(buf, s.offset)
	if err != nil {
		s.log.Error("failed to write calibration to storage", "error", err)
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}
