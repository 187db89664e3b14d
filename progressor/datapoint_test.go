// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package progressor

import (
	"encoding/binary"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightMeasurementWireLayout(t *testing.T) {
	p := NewDataPoint(WeightMeasurement{Weight: 1.5, Timestamp: 1000})
	got := p.Bytes()
	require.Len(t, got, 10)
	assert.Equal(t, byte(0x01), got[0])
	assert.Equal(t, byte(8), got[1])
	assert.Equal(t, math.Float32bits(1.5), binary.LittleEndian.Uint32(got[2:6]))
	assert.Equal(t, uint32(1000), binary.LittleEndian.Uint32(got[6:10]))

	var back DataPoint
	require.NoError(t, back.UnmarshalBinary(got))
	m, err := back.Measurement()
	require.NoError(t, err)
	assert.Equal(t, WeightMeasurement{Weight: 1.5, Timestamp: 1000}, m)
}

func TestResponseEncoding(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want []byte
	}{
		{
			name: "battery",
			resp: BatteryVoltage(3300),
			want: []byte{0x00, 4, 0xe4, 0x0c, 0x00, 0x00},
		},
		{
			name: "app_version",
			resp: AppVersion("1.2.3"),
			want: []byte{0x00, 5, '1', '.', '2', '.', '3'},
		},
		{
			name: "app_version_truncated",
			resp: AppVersion("1.2.3-rc1-longtail"),
			want: []byte{0x00, 12, '1', '.', '2', '.', '3', '-', 'r', 'c', '1', '-', 'l', 'o'},
		},
		{
			name: "progressor_id",
			resp: ProgressorID(0x0000c0ffee123456),
			want: []byte{0x00, 6, 0x56, 0x34, 0x12, 0xee, 0xff, 0xc0},
		},
		{
			name: "low_power",
			resp: LowPowerWarning{},
			want: []byte{0x04, 0},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, NewDataPoint(test.resp).Bytes())
		})
	}
}

func TestCalibrationValuesEncoding(t *testing.T) {
	p := NewDataPoint(CalibrationValues{Offset: 10, Factor: 0.1})
	got := p.Bytes()
	require.Len(t, got, 10)
	assert.Equal(t, byte(0x00), got[0])
	assert.Equal(t, math.Float32bits(10), binary.LittleEndian.Uint32(got[2:6]))
	assert.Equal(t, math.Float32bits(0.1), binary.LittleEndian.Uint32(got[6:10]))
}

func TestDataPointUnmarshalErrors(t *testing.T) {
	var p DataPoint
	assert.ErrorIs(t, p.UnmarshalBinary(nil), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, p.UnmarshalBinary([]byte{0x01}), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, p.UnmarshalBinary([]byte{0x01, 8, 0, 0}), io.ErrUnexpectedEOF, "payload shorter than declared length")
	assert.Error(t, p.UnmarshalBinary([]byte{0x01, 13, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}), "payload longer than capacity")

	require.NoError(t, p.UnmarshalBinary([]byte{0x00, 4, 1, 2, 3, 4}))
	_, err := p.Measurement()
	assert.Error(t, err, "command response is not a measurement")
}
