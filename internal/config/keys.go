package config

// Configuration keys. Environment variables use the key verbatim, YAML
// files use it lowercased (flat or nested on "_"), flags use the Flag*
// names below.
const (
	KeyAPRSServer            = "APRS_SERVER"
	KeyAPRSPort              = "APRS_PORT"
	KeyAPRSCallsign          = "APRS_CALLSIGN"
	KeyAPRSPasscode          = "APRS_PASSCODE"
	KeyAPRSFilter            = "APRS_FILTER"
	KeyAPRSHeartbeatInterval = "APRS_HEARTBEAT_INTERVAL"
	KeyAPRSReconnectInitial  = "APRS_RECONNECT_INITIAL"
	KeyAPRSReconnectMax      = "APRS_RECONNECT_MAX"
	KeyAPRSReconnectJitter   = "APRS_RECONNECT_JITTER"

	KeyStorageBackend = "STORAGE_BACKEND"
	KeyInfluxURL      = "INFLUXDB_URL"
	KeyInfluxToken    = "INFLUXDB_TOKEN"
	KeyInfluxOrg      = "INFLUXDB_ORG"
	KeyInfluxBucket   = "INFLUXDB_BUCKET"
	KeyDuckDBPath     = "DUCKDB_PATH"

	KeyLogLevel       = "LOG_LEVEL"
	KeyLogJSON        = "LOG_JSON"
	KeyMetricsListen  = "METRICS_LISTEN"
	KeyStatusInterval = "STATUS_INTERVAL"
)

// Command-line flag names.
const (
	FlagConfig = "config"

	FlagAPRSServer            = "aprs-server"
	FlagAPRSPort              = "aprs-port"
	FlagAPRSCallsign          = "aprs-callsign"
	FlagAPRSPasscode          = "aprs-passcode"
	FlagAPRSFilter            = "aprs-filter"
	FlagAPRSHeartbeatInterval = "aprs-heartbeat-interval"
	FlagAPRSReconnectInitial  = "aprs-reconnect-initial"
	FlagAPRSReconnectMax      = "aprs-reconnect-max"
	FlagAPRSReconnectJitter   = "aprs-reconnect-jitter"

	FlagStorageBackend = "storage-backend"
	FlagInfluxURL      = "influxdb-url"
	FlagInfluxToken    = "influxdb-token"
	FlagInfluxOrg      = "influxdb-org"
	FlagInfluxBucket   = "influxdb-bucket"
	FlagDuckDBPath     = "duckdb-path"

	FlagLogLevel       = "log-level"
	FlagLogJSON        = "log-json"
	FlagMetricsListen  = "metrics-listen"
	FlagStatusInterval = "status-interval"
)

// Storage backends.
const (
	BackendInfluxDB = "influxdb"
	BackendDuckDB   = "duckdb"
)

// PasscodeAuto asks the upstream client to compute the passcode.
const PasscodeAuto = "auto"

// flagKeys maps each flag to the key it overrides.
var flagKeys = []struct {
	flag, key, help string
}{
	{FlagAPRSServer, KeyAPRSServer, "APRS-IS server host"},
	{FlagAPRSPort, KeyAPRSPort, "APRS-IS server port"},
	{FlagAPRSCallsign, KeyAPRSCallsign, "login callsign"},
	{FlagAPRSPasscode, KeyAPRSPasscode, "login passcode (-1 receive-only, auto computes it)"},
	{FlagAPRSFilter, KeyAPRSFilter, "server-side filter expression"},
	{FlagAPRSHeartbeatInterval, KeyAPRSHeartbeatInterval, "max upstream silence (SS, MM:SS or HH:MM:SS)"},
	{FlagAPRSReconnectInitial, KeyAPRSReconnectInitial, "first reconnect delay"},
	{FlagAPRSReconnectMax, KeyAPRSReconnectMax, "max reconnect delay"},
	{FlagAPRSReconnectJitter, KeyAPRSReconnectJitter, "reconnect jitter fraction (0-1)"},
	{FlagStorageBackend, KeyStorageBackend, "storage backend (influxdb, duckdb)"},
	{FlagInfluxURL, KeyInfluxURL, "InfluxDB URL"},
	{FlagInfluxToken, KeyInfluxToken, "InfluxDB API token"},
	{FlagInfluxOrg, KeyInfluxOrg, "InfluxDB organization"},
	{FlagInfluxBucket, KeyInfluxBucket, "InfluxDB bucket"},
	{FlagDuckDBPath, KeyDuckDBPath, "DuckDB database file (empty for in-memory)"},
	{FlagLogLevel, KeyLogLevel, "log level (DEBUG, INFO, WARNING, ERROR, CRITICAL)"},
	{FlagLogJSON, KeyLogJSON, "log as JSON (t, true, 1)"},
	{FlagMetricsListen, KeyMetricsListen, "Prometheus listen address (empty disables)"},
	{FlagStatusInterval, KeyStatusInterval, "status line interval (0 disables)"},
}
