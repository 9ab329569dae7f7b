/*
SPDX-License-Identifier: Apache-2.0

Copyright 2025 Ouranosinc

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package store persists the monitor registry's durable state in
// SQLite, giving active filesystem watches a record that survives
// process restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/ouranosinc/syncbird/internal/fswatch"
)

// MonitorStore is a SQLite-backed implementation of fswatch.Store. It
// enforces the (callback, path) uniqueness invariant at the schema
// level rather than in application code.
type MonitorStore struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at dsn and
// ensures the monitors table exists.
func Open(dsn string) (*MonitorStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening monitor store %q: %w", dsn, err)
	}
	s := &MonitorStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MonitorStore) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS monitors (
		callback  TEXT NOT NULL,
		path      TEXT NOT NULL,
		recursive INTEGER NOT NULL,
		UNIQUE(callback, path)
	);`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Close releases the underlying database handle.
func (s *MonitorStore) Close() error { return s.db.Close() }

// List returns every persisted monitor record.
func (s *MonitorStore) List() ([]fswatch.PersistedMonitor, error) {
	rows, err := s.db.QueryContext(context.Background(), `SELECT callback, path, recursive FROM monitors`)
	if err != nil {
		return nil, fmt.Errorf("listing monitors: %w", err)
	}
	defer rows.Close()

	var out []fswatch.PersistedMonitor
	for rows.Next() {
		var m fswatch.PersistedMonitor
		var recursive int
		if err := rows.Scan(&m.Callback, &m.Path, &recursive); err != nil {
			return nil, fmt.Errorf("scanning monitor row: %w", err)
		}
		m.Recursive = recursive != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// Upsert inserts or replaces the record for (m.Callback, m.Path).
func (s *MonitorStore) Upsert(m fswatch.PersistedMonitor) error {
	const query = `
	INSERT INTO monitors (callback, path, recursive) VALUES (?, ?, ?)
	ON CONFLICT(callback, path) DO UPDATE SET recursive = excluded.recursive`
	recursive := 0
	if m.Recursive {
		recursive = 1
	}
	_, err := s.db.ExecContext(context.Background(), query, m.Callback, m.Path, recursive)
	if err != nil {
		return fmt.Errorf("upserting monitor (%s, %s): %w", m.Callback, m.Path, err)
	}
	return nil
}

// Delete removes the record for (callback, path), if present.
func (s *MonitorStore) Delete(callback, path string) error {
	_, err := s.db.ExecContext(context.Background(),
		`DELETE FROM monitors WHERE callback = ? AND path = ?`, callback, path)
	if err != nil {
		return fmt.Errorf("deleting monitor (%s, %s): %w", callback, path, err)
	}
	return nil
}
