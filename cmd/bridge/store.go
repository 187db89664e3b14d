// Copyright ©2026 The crimp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	device     TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
	session_id   INTEGER NOT NULL REFERENCES sessions(id),
	timestamp_us INTEGER NOT NULL,
	weight_kg    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS samples_session ON samples(session_id);
`

// store is the SQLite session log.
type store struct {
	db  *sql.DB
	add *sql.Stmt
}

func openStore(path string) (*store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// WAL keeps sample inserts from blocking concurrent reads of
	// past sessions.
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	add, err := db.Prepare(`INSERT INTO samples (session_id, timestamp_us, weight_kg) VALUES (?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	return &store{db: db, add: add}, nil
}

// BeginSession records the start of a recording session and returns
// its identifier.
func (s *store) BeginSession(device string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO sessions (device, started_at) VALUES (?, ?)`, device, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to begin session: %w", err)
	}
	return res.LastInsertId()
}

// AddSample appends one measurement to a session.
func (s *store) AddSample(session int64, timestampUS uint32, weightKG float32) error {
	_, err := s.add.Exec(session, timestampUS, weightKG)
	return err
}

func (s *store) Close() error {
	s.add.Close()
	return s.db.Close()
}
