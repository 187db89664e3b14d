// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hx711

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStorage errors on all accesses.
type failingStorage struct{}

func (failingStorage) ReadAt(p []byte, off int64) (int, error)  { return 0, errors.New("worn out") }
func (failingStorage) WriteAt(p []byte, off int64) (int, error) { return 0, errors.New("worn out") }

func TestCalibrationValid(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
		want bool
	}{
		{name: "default", cal: DefaultCalibration, want: true},
		{name: "identity", cal: Calibration{Offset: 0, Factor: 1}, want: true},
		{name: "negative_factor", cal: Calibration{Offset: -2, Factor: -0.5}, want: true},
		{name: "zero_factor", cal: Calibration{Offset: 1, Factor: 0}, want: false},
		{name: "nan_factor", cal: Calibration{Offset: 0, Factor: float32(math.NaN())}, want: false},
		{name: "nan_offset", cal: Calibration{Offset: float32(math.NaN()), Factor: 1}, want: false},
		{name: "inf_offset", cal: Calibration{Offset: float32(math.Inf(1)), Factor: 1}, want: false},
		{name: "inf_factor", cal: Calibration{Offset: 0, Factor: float32(math.Inf(-1))}, want: false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, test.cal.Valid())
		})
	}
}

func TestCalibrationBinaryLayout(t *testing.T) {
	cal := Calibration{Offset: 10, Factor: 0.1}
	data, err := cal.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, 8)
	assert.Equal(t, math.Float32bits(10), binary.LittleEndian.Uint32(data[0:4]))
	assert.Equal(t, math.Float32bits(0.1), binary.LittleEndian.Uint32(data[4:8]))

	var got Calibration
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, cal, got)

	assert.Error(t, got.UnmarshalBinary(data[:7]), "short record must not decode")
}

func TestStoreFileRoundTrip(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "calibration.bin"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	defer f.Close()

	const offset = 0x90
	store := NewStore(f, offset, discard())

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrStorage, "empty file reads short")

	want := Calibration{Offset: 12.5, Factor: 0.25}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStoreRejectsNonsense(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "calibration.bin"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	defer f.Close()

	// Structurally readable, semantically broken: zero factor.
	broken, _ := Calibration{Offset: 1, Factor: 0}.MarshalBinary()
	_, err = f.WriteAt(broken, 0)
	require.NoError(t, err)

	store := NewStore(f, 0, discard())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrInvalidCalibration)

	assert.ErrorIs(t, store.Save(Calibration{Factor: 0}), ErrInvalidCalibration)
}

func TestNewFallsBackToDefaultCalibration(t *testing.T) {
	sim := NewSim(Constant(0))
	cell := New(sim, sim, Config{
		Store:  NewStore(failingStorage{}, 0, discard()),
		Delay:  func(d time.Duration) {},
		Logger: discard(),
	})
	assert.Equal(t, DefaultCalibration, cell.Calibration())
}
