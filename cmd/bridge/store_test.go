// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSessionRoundTrip(t *testing.T) {
	s, err := openStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer s.Close()

	session, err := s.BeginSession("Progressor_7125")
	require.NoError(t, err)

	for i, w := range []float32{0, 12.5, 40.25} {
		require.NoError(t, s.AddSample(session, uint32(i)*12500, w))
	}

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT count(*) FROM samples WHERE session_id = ?`, session).Scan(&n))
	assert.Equal(t, 3, n)

	var (
		ts uint32
		w  float32
	)
	require.NoError(t, s.db.QueryRow(
		`SELECT timestamp_us, weight_kg FROM samples WHERE session_id = ? ORDER BY timestamp_us DESC LIMIT 1`,
		session).Scan(&ts, &w))
	assert.Equal(t, uint32(25000), ts)
	assert.Equal(t, float32(40.25), w)

	var device string
	require.NoError(t, s.db.QueryRow(`SELECT device FROM sessions WHERE id = ?`, session).Scan(&device))
	assert.Equal(t, "Progressor_7125", device)
}

func TestStoreSessionsAreDistinct(t *testing.T) {
	s, err := openStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer s.Close()

	a, err := s.BeginSession("a")
	require.NoError(t, err)
	b, err := s.BeginSession("b")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
