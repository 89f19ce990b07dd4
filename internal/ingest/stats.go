package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
)

// Stats holds ingestion counters. All methods are safe for concurrent use.
type Stats struct {
	Received        atomic.Int64
	DecodeErrors    atomic.Int64
	Definitions     atomic.Int64
	Skipped         atomic.Int64
	Written         atomic.Int64
	WriteErrors     atomic.Int64
	DroppedShutdown atomic.Int64

	// DDSketch is not safe for concurrent use.
	latencyMu sync.Mutex
	latency   *ddsketch.DDSketch
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Received        int64
	DecodeErrors    int64
	Definitions     int64
	Skipped         int64
	Written         int64
	WriteErrors     int64
	DroppedShutdown int64

	WriteP50 time.Duration
	WriteP99 time.Duration
}

func newStats() *Stats {
	s := &Stats{}
	s.resetLatency()
	return s
}

func (s *Stats) resetLatency() {
	// Create DDSketch with relative accuracy of 1%
	sketch, err := ddsketch.NewDefaultDDSketch(0.01)
	if err == nil {
		s.latency = sketch
	}
}

func (s *Stats) observeWrite(d time.Duration) {
	s.latencyMu.Lock()
	defer s.latencyMu.Unlock()
	if s.latency != nil {
		s.latency.Add(float64(d) / float64(time.Millisecond))
	}
}

// Snapshot returns the current values. Write latency quantiles cover the
// writes since the previous ResetLatency.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Received:        s.Received.Load(),
		DecodeErrors:    s.DecodeErrors.Load(),
		Definitions:     s.Definitions.Load(),
		Skipped:         s.Skipped.Load(),
		Written:         s.Written.Load(),
		WriteErrors:     s.WriteErrors.Load(),
		DroppedShutdown: s.DroppedShutdown.Load(),
	}

	s.latencyMu.Lock()
	defer s.latencyMu.Unlock()
	if s.latency != nil && s.latency.GetCount() > 0 {
		p50, _ := s.latency.GetValueAtQuantile(0.50)
		p99, _ := s.latency.GetValueAtQuantile(0.99)
		snap.WriteP50 = time.Duration(p50 * float64(time.Millisecond))
		snap.WriteP99 = time.Duration(p99 * float64(time.Millisecond))
	}
	return snap
}

// ResetLatency starts a new latency window.
func (s *Stats) ResetLatency() {
	s.latencyMu.Lock()
	defer s.latencyMu.Unlock()
	// DDSketch doesn't have a Clear method
	s.resetLatency()
}

// ReportStatus logs a status line every interval until ctx is done. Each
// line covers the latency of the writes since the previous line.
func ReportStatus(ctx context.Context, s *Stats, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prev Snapshot
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			snap := s.Snapshot()
			s.ResetLatency()
			log.Info("status",
				"received", snap.Received,
				"received_delta", snap.Received-prev.Received,
				"written", snap.Written,
				"written_delta", snap.Written-prev.Written,
				"skipped", snap.Skipped,
				"decode_errors", snap.DecodeErrors,
				"write_errors", snap.WriteErrors,
				"definitions", snap.Definitions,
				"write_p50", snap.WriteP50,
				"write_p99", snap.WriteP99,
			)
			prev = snap
		}
	}
}
