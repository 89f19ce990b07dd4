// Package config resolves the runtime configuration of aprs2influxdb.
//
// Values come from, in order of precedence: command-line flags,
// environment variables, an optional YAML file and the documented
// defaults in the top-level config package. The resulting Config is
// immutable and handed to constructors explicitly.
package config

import (
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	defaults "github.com/xtxerr/aprs2influxdb/config"
	"github.com/xtxerr/aprs2influxdb/internal/errors"
	"github.com/xtxerr/aprs2influxdb/internal/logging"
)

// Config is the complete runtime configuration.
type Config struct {
	APRS    APRSConfig
	Storage StorageConfig
	Log     LogConfig

	MetricsListen  string
	StatusInterval time.Duration
}

// APRSConfig configures the upstream APRS-IS connection.
type APRSConfig struct {
	Server            string
	Port              int
	Callsign          string
	Passcode          string
	Filter            string
	HeartbeatInterval time.Duration
	Reconnect         ReconnectConfig
}

// Addr returns host:port.
func (c APRSConfig) Addr() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// ReconnectConfig configures upstream reconnect backoff.
type ReconnectConfig struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64
}

// StorageConfig configures the point sink.
type StorageConfig struct {
	Backend    string
	URL        string
	Token      string
	Org        string
	Bucket     string
	DuckDBPath string
}

// LogConfig configures logging.
type LogConfig struct {
	Level string
	JSON  bool
}

// SlogLevel returns the parsed log level. Validate rejects unknown names.
func (c LogConfig) SlogLevel() slog.Level {
	lvl, _ := logging.ParseLevel(c.Level)
	return lvl
}

// Default returns the configuration with every value at its default.
func Default() *Config {
	return &Config{
		APRS: APRSConfig{
			Server:            defaults.DefaultAPRSServer,
			Port:              defaults.DefaultAPRSPort,
			Callsign:          defaults.DefaultAPRSCallsign,
			Passcode:          defaults.DefaultAPRSPasscode,
			Filter:            defaults.DefaultAPRSFilter,
			HeartbeatInterval: defaults.DefaultAPRSHeartbeatInterval,
			Reconnect: ReconnectConfig{
				Initial: defaults.DefaultReconnectInitial,
				Max:     defaults.DefaultReconnectMax,
				Jitter:  defaults.DefaultReconnectJitter,
			},
		},
		Storage: StorageConfig{
			Backend:    defaults.DefaultStorageBackend,
			URL:        defaults.DefaultInfluxURL,
			Token:      defaults.DefaultInfluxToken,
			Org:        defaults.DefaultInfluxOrg,
			Bucket:     defaults.DefaultInfluxBucket,
			DuckDBPath: defaults.DefaultDuckDBPath,
		},
		Log: LogConfig{
			Level: defaults.DefaultLogLevel,
			JSON:  defaults.DefaultLogJSON,
		},
		MetricsListen:  defaults.DefaultMetricsListen,
		StatusInterval: defaults.DefaultStatusInterval,
	}
}

// Load resolves a Config from sources, highest precedence first, and
// validates it.
func Load(sources ...Source) (*Config, error) {
	r := NewResolver(sources...)
	d := Default()

	cfg := &Config{
		APRS: APRSConfig{
			Server:            r.ResolveString(KeyAPRSServer, d.APRS.Server),
			Port:              r.ResolveInt(KeyAPRSPort, d.APRS.Port),
			Callsign:          r.ResolveString(KeyAPRSCallsign, d.APRS.Callsign),
			Passcode:          r.ResolveString(KeyAPRSPasscode, d.APRS.Passcode),
			Filter:            r.ResolveString(KeyAPRSFilter, d.APRS.Filter),
			HeartbeatInterval: r.ResolveInterval(KeyAPRSHeartbeatInterval, d.APRS.HeartbeatInterval),
			Reconnect: ReconnectConfig{
				Initial: r.ResolveInterval(KeyAPRSReconnectInitial, d.APRS.Reconnect.Initial),
				Max:     r.ResolveInterval(KeyAPRSReconnectMax, d.APRS.Reconnect.Max),
				Jitter:  r.ResolveFloat(KeyAPRSReconnectJitter, d.APRS.Reconnect.Jitter),
			},
		},
		Storage: StorageConfig{
			Backend:    r.ResolveString(KeyStorageBackend, d.Storage.Backend),
			URL:        r.ResolveString(KeyInfluxURL, d.Storage.URL),
			Token:      r.ResolveString(KeyInfluxToken, d.Storage.Token),
			Org:        r.ResolveString(KeyInfluxOrg, d.Storage.Org),
			Bucket:     r.ResolveString(KeyInfluxBucket, d.Storage.Bucket),
			DuckDBPath: r.ResolveString(KeyDuckDBPath, d.Storage.DuckDBPath),
		},
		Log: LogConfig{
			Level: r.ResolveString(KeyLogLevel, d.Log.Level),
			JSON:  r.ResolveBool(KeyLogJSON, d.Log.JSON),
		},
		MetricsListen:  r.ResolveString(KeyMetricsListen, d.MetricsListen),
		StatusInterval: r.ResolveInterval(KeyStatusInterval, d.StatusInterval),
	}

	errs := errors.NewValidationErrors()
	if err := r.Err(); err != nil {
		errs.Add(err)
	}
	for _, src := range sources {
		if fs, ok := src.(*FileSource); ok {
			for _, k := range fs.Keys() {
				if !knownKey(k) {
					errs.AddField(k, "unknown key in "+fs.Name())
				}
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		errs.Add(err)
	}
	if errs.HasErrors() {
		return nil, errs
	}
	return cfg, nil
}

func knownKey(key string) bool {
	for _, fk := range flagKeys {
		if fk.key == key {
			return true
		}
	}
	return false
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	errs := errors.NewValidationErrors()

	if c.APRS.Server == "" {
		errs.AddMissing(KeyAPRSServer)
	}
	if c.APRS.Port < 1 || c.APRS.Port > 65535 {
		errs.Add(errors.NewInvalidValue(KeyAPRSPort, c.APRS.Port, "must be 1-65535"))
	}
	if c.APRS.Callsign == "" {
		errs.AddMissing(KeyAPRSCallsign)
	}
	if c.APRS.Passcode != PasscodeAuto {
		if _, err := strconv.Atoi(c.APRS.Passcode); err != nil {
			errs.Add(errors.NewInvalidValue(KeyAPRSPasscode, c.APRS.Passcode, "must be a number or auto"))
		}
	}
	if c.APRS.HeartbeatInterval <= 0 {
		errs.AddField(KeyAPRSHeartbeatInterval, "must be positive")
	}
	if c.APRS.Reconnect.Initial <= 0 {
		errs.AddField(KeyAPRSReconnectInitial, "must be positive")
	}
	if c.APRS.Reconnect.Max < c.APRS.Reconnect.Initial {
		errs.AddField(KeyAPRSReconnectMax, "must not be below "+KeyAPRSReconnectInitial)
	}
	if c.APRS.Reconnect.Jitter < 0 || c.APRS.Reconnect.Jitter > 1 {
		errs.Add(errors.NewInvalidValue(KeyAPRSReconnectJitter, c.APRS.Reconnect.Jitter, "must be 0-1"))
	}

	switch c.Storage.Backend {
	case BackendInfluxDB:
		if u, err := url.Parse(c.Storage.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs.Add(errors.NewInvalidValue(KeyInfluxURL, c.Storage.URL, "must be an absolute URL"))
		}
		if c.Storage.Org == "" {
			errs.AddMissing(KeyInfluxOrg)
		}
	case BackendDuckDB:
	default:
		errs.Add(errors.NewInvalidValue(KeyStorageBackend, c.Storage.Backend, "must be influxdb or duckdb"))
	}
	if c.Storage.Bucket == "" {
		errs.AddMissing(KeyInfluxBucket)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs.Add(errors.NewInvalidValue(KeyLogLevel, c.Log.Level, "unknown level"))
	}
	if c.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(c.MetricsListen); err != nil {
			errs.Add(errors.NewInvalidValue(KeyMetricsListen, c.MetricsListen, "must be host:port"))
		}
	}
	if c.StatusInterval < 0 {
		errs.AddField(KeyStatusInterval, "must not be negative")
	}

	return errs.Err()
}
