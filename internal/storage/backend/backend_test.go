package backend

import (
	"context"
	"testing"

	"github.com/xtxerr/aprs2influxdb/internal/config"
	"github.com/xtxerr/aprs2influxdb/internal/errors"
)

func TestNewOpenerDuckDB(t *testing.T) {
	open, err := NewOpener(config.StorageConfig{Backend: config.BackendDuckDB})
	if err != nil {
		t.Fatalf("NewOpener: %v", err)
	}

	ctx := context.Background()
	c, err := open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if c.Writer() == nil {
		t.Error("Writer() = nil")
	}
}

func TestNewOpenerInflux(t *testing.T) {
	cfg := config.Default().Storage
	open, err := NewOpener(cfg)
	if err != nil {
		t.Fatalf("NewOpener: %v", err)
	}
	c, err := open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c.Close()
}

func TestNewOpenerUnknown(t *testing.T) {
	_, err := NewOpener(config.StorageConfig{Backend: "sqlite"})
	if !errors.Is(err, errors.ErrUnknownBackend) {
		t.Fatalf("NewOpener error = %v, want ErrUnknownBackend", err)
	}
}
