package ingest

import (
	"context"
	"time"

	"github.com/xtxerr/aprs2influxdb/internal/config"
	"github.com/xtxerr/aprs2influxdb/internal/errors"
	"github.com/xtxerr/aprs2influxdb/internal/metrics"
	"github.com/xtxerr/aprs2influxdb/internal/storage"
)

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Dial     DialFunc
	Open     storage.Opener
	Decoder  Decoder
	Enricher Enricher

	// Clock stamps points. Defaults to time.Now.
	Clock func() time.Time
}

// Orchestrator feeds upstream packets through the Transformer into
// storage.
type Orchestrator struct {
	bucket      string
	lifecycle   *Lifecycle
	transformer *Transformer
	stats       *Stats
}

// New creates an Orchestrator writing to the bucket of cfg.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	stats := newStats()
	lc := NewLifecycle(deps.Dial, deps.Open)
	lc.stats = stats

	return &Orchestrator{
		bucket:      cfg.Storage.Bucket,
		lifecycle:   lc,
		transformer: NewTransformer(deps.Decoder, deps.Enricher, deps.Clock, stats),
		stats:       stats,
	}
}

// Stats returns the ingestion counters.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

// State returns the lifecycle state.
func (o *Orchestrator) State() State {
	return o.lifecycle.State()
}

// Start connects upstream and storage. On error nothing is left open.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.lifecycle.Start(ctx)
}

// RunUntilClosed processes packets until the upstream feed ends, Stop is
// called or ctx is done. It returns nil when the feed ended and ctx.Err()
// when ctx was cancelled.
func (o *Orchestrator) RunUntilClosed(ctx context.Context) error {
	packets := o.lifecycle.Packets()
	if packets == nil {
		return errors.ErrNotRunning
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-packets:
			if !ok {
				log.Info("upstream closed")
				return nil
			}
			o.handlePacket(ctx, raw)
		}
	}
}

// Stop closes storage and upstream. It may be called from any goroutine,
// any number of times. If ctx ends before a running Start or write lets go
// of the lifecycle, Stop returns with ErrTimeout and the close completes in
// the background.
func (o *Orchestrator) Stop(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- o.lifecycle.Stop()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return errors.Wrap(errors.Mark(ctx.Err(), errors.ErrTimeout), "stop")
	}
}

func (o *Orchestrator) handlePacket(ctx context.Context, raw string) {
	o.stats.Received.Add(1)
	metrics.IncReceived()

	p, ok := o.transformer.Transform(raw)
	if !ok {
		return
	}

	written, err := o.lifecycle.Write(ctx, o.bucket, p)
	switch {
	case !written:
		o.stats.DroppedShutdown.Add(1)
		metrics.IncOutcome(metrics.OutcomeDroppedShutdown)
	case err != nil:
		o.stats.WriteErrors.Add(1)
		metrics.IncOutcome(metrics.OutcomeWriteError)
		log.Warn("write failed", "source", p.Tags["source"], "error", err)
	default:
		o.stats.Written.Add(1)
		metrics.IncOutcome(metrics.OutcomeWritten)
	}
}
