// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package battery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name            string
		mv, empty, full uint32
		want            byte
	}{
		{name: "empty", mv: 3300, empty: 3300, full: 4200, want: 0},
		{name: "below_empty", mv: 3000, empty: 3300, full: 4200, want: 0},
		{name: "full", mv: 4200, empty: 3300, full: 4200, want: 100},
		{name: "above_full", mv: 4400, empty: 3300, full: 4200, want: 100},
		{name: "half", mv: 3750, empty: 3300, full: 4200, want: 50},
		{name: "degenerate_range", mv: 4000, empty: 4200, full: 4200, want: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, Percent(test.mv, test.empty, test.full))
		})
	}
}

func TestPowerSupplyMillivolts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "BAT0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "BAT0", "voltage_now"), []byte("3785000\n"), 0o644))

	mv, err := PowerSupply{Name: "BAT0", Root: root}.Millivolts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(3785), mv)

	_, err = PowerSupply{Name: "missing", Root: root}.Millivolts(context.Background())
	assert.Error(t, err)
}
