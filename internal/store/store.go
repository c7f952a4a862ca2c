// Package store reads the history database written by the metrics collector.
// The collector owns the schema; this package never writes to it.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/metorial/minidash/internal/models"
)

var ErrNoRows = errors.New("store: no rows")

// Row is one result row keyed by column name.
type Row map[string]any

type DB struct {
	conn         *sql.DB
	path         string
	queryTimeout time.Duration
}

// Open prepares a read-only handle on the database at path. The file does not
// have to exist yet; queries fail until the collector creates it.
func Open(path string, queryTimeout time.Duration) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(4)

	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}

	return &DB{conn: conn, path: path, queryTimeout: queryTimeout}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Path() string {
	return db.path
}

// Query runs an arbitrary read query and returns each row as a column map.
// TEXT values come back as strings rather than byte slices.
func (db *DB) Query(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// MetricsSince returns system metric rows newer than since, oldest first.
func (db *DB) MetricsSince(ctx context.Context, since time.Time) ([]Row, error) {
	return db.Query(ctx, `SELECT * FROM metrics WHERE timestamp > ? ORDER BY timestamp ASC`, since.Unix())
}

// UsageSince returns openclaw usage samples newer than since, oldest first.
func (db *DB) UsageSince(ctx context.Context, since time.Time) ([]models.UsageSample, error) {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT timestamp, sessions, tokens, status
	          FROM openclaw_stats
	          WHERE timestamp > ?
	          ORDER BY timestamp ASC`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []models.UsageSample
	for rows.Next() {
		s, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// LatestUsage returns the most recent openclaw usage sample, or ErrNoRows.
func (db *DB) LatestUsage(ctx context.Context) (*models.UsageSample, error) {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT timestamp, sessions, tokens, status
	          FROM openclaw_stats
	          ORDER BY timestamp DESC
	          LIMIT 1`)
	s, err := scanUsage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUsage(s scanner) (models.UsageSample, error) {
	var u models.UsageSample
	var sessions, tokens sql.NullInt64
	var status sql.NullString
	if err := s.Scan(&u.Timestamp, &sessions, &tokens, &status); err != nil {
		return u, err
	}
	u.Sessions = int(sessions.Int64)
	u.Tokens = tokens.Int64
	u.Status = status.String
	return u, nil
}

// ProcessAverages returns per-process mean CPU and RAM since the given time,
// keyed by process name.
func (db *DB) ProcessAverages(ctx context.Context, since time.Time) (map[string]models.ProcessAverage, error) {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT name, AVG(cpu), AVG(ram_mb), COUNT(*)
	          FROM process_metrics
	          WHERE timestamp > ?
	          GROUP BY name`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	averages := make(map[string]models.ProcessAverage)
	for rows.Next() {
		var a models.ProcessAverage
		var cpu, ram sql.NullFloat64
		if err := rows.Scan(&a.Name, &cpu, &ram, &a.Samples); err != nil {
			return nil, err
		}
		a.CPU = cpu.Float64
		a.RAMMB = ram.Float64
		averages[a.Name] = a
	}
	return averages, rows.Err()
}

// TableExists reports whether the named table is present.
func (db *DB) TableExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()

	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&count)
	return count > 0, err
}

// Health is the result of probing the database.
type Health struct {
	OK          bool   `json:"ok"`
	Initialized bool   `json:"initialized"`
	Path        string `json:"path"`
	Samples     int64  `json:"samples,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Check probes the database. A missing file or a missing metrics table means
// the collector has not run yet, which is reported as healthy but
// uninitialized.
func (db *DB) Check(ctx context.Context) Health {
	h := Health{Path: db.path}

	if _, err := os.Stat(db.path); errors.Is(err, os.ErrNotExist) {
		h.OK = true
		return h
	}

	exists, err := db.TableExists(ctx, "metrics")
	if err != nil {
		h.Error = err.Error()
		return h
	}
	if !exists {
		h.OK = true
		return h
	}

	ctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM metrics`).Scan(&h.Samples); err != nil {
		h.Error = err.Error()
		return h
	}

	h.OK = true
	h.Initialized = true
	return h
}
