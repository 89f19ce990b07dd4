// Package config provides configuration defaults for aprs2influxdb.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via a YAML file, environment variables
// or command-line flags (see internal/config).
package config

import "time"

// =============================================================================
// APRS-IS Defaults
// =============================================================================

const (
	// DefaultAPRSServer is the APRS-IS rotation address. The rotation
	// resolves to a nearby tier-2 server.
	// Override via env: APRS_SERVER
	DefaultAPRSServer = "rotate.aprs.net"

	// DefaultAPRSPort is the user-defined filter port. Without a filter the
	// server sends nothing but its own comments.
	// Override via env: APRS_PORT
	DefaultAPRSPort = 14580

	// DefaultAPRSCallsign is a placeholder login. Receive-only logins do
	// not need a licensed callsign.
	// Override via env: APRS_CALLSIGN
	DefaultAPRSCallsign = "N0CALL"

	// DefaultAPRSPasscode is the receive-only passcode.
	// "auto" computes the passcode from the callsign.
	// Override via env: APRS_PASSCODE
	DefaultAPRSPasscode = "-1"

	// DefaultAPRSFilter is an empty server-side filter.
	// Override via env: APRS_FILTER
	DefaultAPRSFilter = ""

	// DefaultAPRSHeartbeatInterval is the maximum silence tolerated on the
	// upstream link. APRS-IS servers send a comment line every 20 seconds,
	// so ten minutes of silence means the link is dead.
	// Override via env: APRS_HEARTBEAT_INTERVAL
	DefaultAPRSHeartbeatInterval = 10 * time.Minute

	// DefaultAPRSLoginTimeout bounds the wait for the "# logresp" line.
	DefaultAPRSLoginTimeout = 30 * time.Second

	// DefaultAPRSPacketBuffer is the capacity of the delivered-packet
	// channel. The reader blocks when it is full.
	DefaultAPRSPacketBuffer = 1024
)

// =============================================================================
// Reconnect Defaults
// =============================================================================

const (
	// DefaultReconnectInitial is the first delay after a dropped link.
	// Override via env: APRS_RECONNECT_INITIAL
	DefaultReconnectInitial = 1 * time.Second

	// DefaultReconnectMax caps the exponential backoff.
	// Override via env: APRS_RECONNECT_MAX
	DefaultReconnectMax = 30 * time.Second

	// DefaultReconnectJitter is the random fraction added to each delay.
	// Range: 0.0-1.0
	// Override via env: APRS_RECONNECT_JITTER
	DefaultReconnectJitter = 0.2
)

// =============================================================================
// Storage Defaults
// =============================================================================

const (
	// DefaultStorageBackend selects the point sink.
	// Values: influxdb, duckdb
	// Override via env: STORAGE_BACKEND
	DefaultStorageBackend = "influxdb"

	// DefaultInfluxURL matches the service name of the compose deployment.
	// Override via env: INFLUXDB_URL
	DefaultInfluxURL = "http://influxdb:8086"

	// DefaultInfluxToken is empty. A token is required by InfluxDB 2.x.
	// Override via env: INFLUXDB_TOKEN
	DefaultInfluxToken = ""

	// DefaultInfluxOrg is the organization owning the bucket.
	// Override via env: INFLUXDB_ORG
	DefaultInfluxOrg = "aprs2influxdb"

	// DefaultInfluxBucket receives every point.
	// Override via env: INFLUXDB_BUCKET
	DefaultInfluxBucket = "aprs2influxdb"

	// DefaultDuckDBPath is the database file for the duckdb backend.
	// An empty path opens an in-memory database.
	// Override via env: DUCKDB_PATH
	DefaultDuckDBPath = "aprs2influxdb.duckdb"
)

// =============================================================================
// Observability Defaults
// =============================================================================

const (
	// DefaultLogLevel is verbose on purpose: raw packets are logged at DEBUG.
	// Values: DEBUG, INFO, WARNING, ERROR, CRITICAL
	// Override via env: LOG_LEVEL
	DefaultLogLevel = "DEBUG"

	// DefaultLogJSON selects text output.
	// Override via env: LOG_JSON
	DefaultLogJSON = false

	// DefaultMetricsListen disables the Prometheus endpoint.
	// Example: ":9108"
	// Override via env: METRICS_LISTEN
	DefaultMetricsListen = ""

	// DefaultStatusInterval is how often ingestion counters are logged.
	// Zero disables the status line.
	// Override via env: STATUS_INTERVAL
	DefaultStatusInterval = 1 * time.Minute
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultShutdownTimeout bounds Stop after a signal.
	DefaultShutdownTimeout = 10 * time.Second
)
