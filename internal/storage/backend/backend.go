// Package backend selects the storage implementation named by the
// configuration.
package backend

import (
	"github.com/xtxerr/aprs2influxdb/internal/config"
	"github.com/xtxerr/aprs2influxdb/internal/errors"
	"github.com/xtxerr/aprs2influxdb/internal/storage"
	"github.com/xtxerr/aprs2influxdb/internal/storage/duckdb"
	"github.com/xtxerr/aprs2influxdb/internal/storage/influx"
)

// NewOpener returns the opener for cfg.Backend.
func NewOpener(cfg config.StorageConfig) (storage.Opener, error) {
	switch cfg.Backend {
	case config.BackendInfluxDB, "":
		return influx.Opener(influx.Options{
			URL:   cfg.URL,
			Token: cfg.Token,
			Org:   cfg.Org,
		}), nil
	case config.BackendDuckDB:
		return duckdb.Opener(cfg.DuckDBPath), nil
	default:
		return nil, errors.Wrapf(errors.ErrUnknownBackend, "%q", cfg.Backend)
	}
}
