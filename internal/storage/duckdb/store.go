// Package duckdb stores points in an embedded DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/aprs2influxdb/internal/errors"
	"github.com/xtxerr/aprs2influxdb/internal/logging"
	"github.com/xtxerr/aprs2influxdb/internal/point"
	"github.com/xtxerr/aprs2influxdb/internal/storage"
)

var log = logging.Component("duckdb")

const schema = `CREATE TABLE IF NOT EXISTS aprs_points (
	bucket      VARCHAR NOT NULL,
	measurement VARCHAR NOT NULL,
	time        TIMESTAMP NOT NULL,
	source      VARCHAR,
	destination VARCHAR,
	via         VARCHAR,
	type        VARCHAR,
	fields      VARCHAR NOT NULL
)`

const insert = `INSERT INTO aprs_points
	(bucket, measurement, time, source, destination, via, type, fields)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Store is a DuckDB-backed point store.
type Store struct {
	path string

	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Open opens (or creates) the database at path. An empty path opens an
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", errors.Mark(err, errors.ErrStorageUnreachable))
	}
	// A single connection keeps in-memory databases shared between calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", errors.Mark(err, errors.ErrStorageUnreachable))
	}

	log.Debug("opened", "path", path)
	return &Store{path: path, db: db}, nil
}

// Opener returns a storage.Opener for path.
func Opener(path string) storage.Opener {
	return func(ctx context.Context) (storage.Client, error) {
		s, err := Open(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.Wrap(errors.ErrConnectionClosed, "duckdb")
	}
	if err := s.db.PingContext(ctx); err != nil {
		return errors.Wrap(errors.Mark(err, errors.ErrStorageUnreachable), "ping duckdb")
	}
	return nil
}

// Writer returns the store itself.
func (s *Store) Writer() storage.Writer {
	return s
}

// Write inserts p into bucket.
func (s *Store) Write(ctx context.Context, bucket string, p point.Point) error {
	fields, err := json.Marshal(p.Fields)
	if err != nil {
		return errors.Wrap(errors.Mark(err, errors.ErrWrite), "encode fields")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.Wrap(errors.ErrConnectionClosed, "duckdb")
	}

	_, err = s.db.ExecContext(ctx, insert,
		bucket, p.Measurement, p.Time,
		p.Tags["source"], p.Tags["destination"], p.Tags["via"], p.Tags["type"],
		string(fields))
	if err != nil {
		return errors.Wrapf(errors.Mark(err, errors.ErrWrite), "insert into %s", bucket)
	}
	return nil
}

// Count returns the number of points stored in bucket.
func (s *Store) Count(ctx context.Context, bucket string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, errors.Wrap(errors.ErrConnectionClosed, "duckdb")
	}

	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM aprs_points WHERE bucket = ?", bucket).Scan(&n)
	return n, err
}

// Close closes the database. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
