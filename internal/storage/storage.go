// Package storage defines the point sink used by the ingestion core.
//
// Backends live in subpackages:
//
//	influx/   InfluxDB 2.x over HTTP
//	duckdb/   embedded DuckDB file, for running without a server
//	backend/  selects a backend from configuration
package storage

import (
	"context"

	"github.com/xtxerr/aprs2influxdb/internal/point"
)

// Writer stores points.
type Writer interface {
	// Write stores p in bucket. It blocks until the backend accepted or
	// rejected the point, or ctx is done.
	Write(ctx context.Context, bucket string, p point.Point) error
}

// Client is an open storage connection.
type Client interface {
	// Ping verifies the backend is reachable and accepts the credentials.
	Ping(ctx context.Context) error
	// Writer returns the write handle of this client.
	Writer() Writer
	// Close releases the connection. Writes after Close fail.
	Close() error
}

// Opener creates a storage client. It does not have to contact the
// backend; Ping does.
type Opener func(ctx context.Context) (Client, error)
