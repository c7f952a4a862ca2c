// Package storetest creates history databases with the collector's schema for
// tests.
package storetest

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS metrics (
	timestamp INTEGER PRIMARY KEY,
	cpu REAL,
	ram REAL,
	disk REAL,
	load1 REAL,
	load5 REAL,
	load15 REAL,
	net_down REAL,
	net_up REAL
);
CREATE TABLE IF NOT EXISTS openclaw_stats (
	timestamp INTEGER PRIMARY KEY,
	sessions INTEGER,
	tokens INTEGER,
	status TEXT
);
CREATE TABLE IF NOT EXISTS process_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp INTEGER,
	name TEXT,
	cpu REAL,
	ram_mb REAL
);
CREATE INDEX IF NOT EXISTS idx_ts ON metrics(timestamp);
CREATE INDEX IF NOT EXISTS idx_oc_ts ON openclaw_stats(timestamp);
CREATE INDEX IF NOT EXISTS idx_proc_ts ON process_metrics(timestamp);
CREATE INDEX IF NOT EXISTS idx_proc_name ON process_metrics(name);
`

// Seeder writes rows into a temporary history database.
type Seeder struct {
	Path string
	t    testing.TB
	conn *sql.DB
}

// New creates a database file in t.TempDir with the full collector schema.
func New(t testing.TB) *Seeder {
	t.Helper()
	s := Empty(t)
	s.Exec(schema)
	return s
}

// Empty creates a database file with no tables.
func Empty(t testing.TB) *Seeder {
	t.Helper()

	path := filepath.Join(t.TempDir(), "history.db")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open seed database: %v", err)
	}
	// writing the header makes sure the file exists on disk
	if _, err := conn.Exec(`PRAGMA user_version = 1`); err != nil {
		t.Fatalf("init seed database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &Seeder{Path: path, t: t, conn: conn}
}

func (s *Seeder) Exec(query string, args ...interface{}) {
	s.t.Helper()
	if _, err := s.conn.Exec(query, args...); err != nil {
		s.t.Fatalf("seed exec: %v", err)
	}
}

func (s *Seeder) Metric(ts int64, cpu, ram, disk float64) {
	s.t.Helper()
	s.Exec(`INSERT INTO metrics (timestamp, cpu, ram, disk, load1, load5, load15, net_down, net_up)
	        VALUES (?, ?, ?, ?, 0, 0, 0, 0, 0)`, ts, cpu, ram, disk)
}

func (s *Seeder) Usage(ts int64, sessions int, tokens int64) {
	s.t.Helper()
	s.Exec(`INSERT INTO openclaw_stats (timestamp, sessions, tokens, status) VALUES (?, ?, ?, 'running')`,
		ts, sessions, tokens)
}

func (s *Seeder) Process(ts int64, name string, cpu, ramMB float64) {
	s.t.Helper()
	s.Exec(`INSERT INTO process_metrics (timestamp, name, cpu, ram_mb) VALUES (?, ?, ?, ?)`,
		ts, name, cpu, ramMB)
}
