// Package ingest moves packets from the APRS-IS feed into storage.
//
// The package has three parts:
//
//   - Transformer turns one raw line into a point, or skips it.
//   - Lifecycle owns the upstream connection and the storage client and
//     sequences their start and stop.
//   - Orchestrator feeds the upstream packet stream through the
//     Transformer into the storage writer.
//
// Start, Stop and every write share a single mutex, so no point is written
// after Stop cleared the writer.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/xtxerr/aprs2influxdb/internal/aprs"
	"github.com/xtxerr/aprs2influxdb/internal/logging"
	"github.com/xtxerr/aprs2influxdb/internal/metrics"
	"github.com/xtxerr/aprs2influxdb/internal/point"
)

var log = logging.Component("ingest")

// =============================================================================
// Collaborators
// =============================================================================

// Decoder parses a raw APRS line.
type Decoder interface {
	Parse(raw string) (aprs.Packet, error)
}

// Enricher resolves telemetry definitions announced in messages and applies
// them to later telemetry reports. Implementations keep state across calls.
type Enricher interface {
	// Register records the definition carried by a message packet. It
	// returns true if p was a definition.
	Register(p aprs.Packet) bool
	// Enrich adds the resolved fields to a telemetry packet in place. It
	// returns true if a definition was applied.
	Enrich(p aprs.Packet) bool
}

// =============================================================================
// Transformer
// =============================================================================

// Transformer converts raw lines into points.
type Transformer struct {
	decoder  Decoder
	enricher Enricher
	clock    func() time.Time
	stats    *Stats
}

// NewTransformer creates a Transformer. A nil clock means time.Now and nil
// stats disables counting.
func NewTransformer(d Decoder, e Enricher, clock func() time.Time, stats *Stats) *Transformer {
	if clock == nil {
		clock = time.Now
	}
	if stats == nil {
		stats = newStats()
	}
	return &Transformer{
		decoder:  d,
		enricher: e,
		clock:    clock,
		stats:    stats,
	}
}

// Transform decodes raw, passes it through the enricher and builds a point.
// It returns false if the line could not be decoded or the packet lacks a
// field every point must carry. Neither case is an error for the caller.
func (t *Transformer) Transform(raw string) (point.Point, bool) {
	log.Debug("packet", "raw", raw)

	p, err := t.decoder.Parse(raw)
	if err != nil {
		t.stats.DecodeErrors.Add(1)
		metrics.IncOutcome(metrics.OutcomeDecodeError)
		log.Warn("decode failed", "raw", raw, "error", err)
		return point.Point{}, false
	}

	switch p.Type() {
	case aprs.TypeMessage:
		if t.enricher.Register(p) {
			t.stats.Definitions.Add(1)
			metrics.IncDefinitions()
			log.Debug("telemetry definition", "source", p.Source(), "addressee", p.String(aprs.FieldAddressee))
		}
	case aprs.TypeTelemetryData:
		t.enricher.Enrich(p)
	}

	pt, ok := point.Build(p, t.clock())
	if !ok {
		t.stats.Skipped.Add(1)
		metrics.IncOutcome(metrics.OutcomeSkipped)
		if log.Enabled(context.Background(), slog.LevelDebug) {
			log.Debug("skipped", "source", p.Source(), "type", p.Type(), "missing", point.Missing(p))
		}
		return point.Point{}, false
	}
	return pt, true
}
