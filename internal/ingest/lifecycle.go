package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/aprs2influxdb/internal/aprsis"
	"github.com/xtxerr/aprs2influxdb/internal/errors"
	"github.com/xtxerr/aprs2influxdb/internal/metrics"
	"github.com/xtxerr/aprs2influxdb/internal/point"
	"github.com/xtxerr/aprs2influxdb/internal/storage"
)

// =============================================================================
// Upstream
// =============================================================================

// Upstream is an open APRS-IS feed.
type Upstream interface {
	// Packets delivers raw lines in receive order. The channel is closed
	// when the feed ends or Close is called.
	Packets() <-chan string
	Close() error
}

// DialFunc opens the upstream feed.
type DialFunc func(ctx context.Context) (Upstream, error)

// APRSIS returns a DialFunc connecting with d.
func APRSIS(d *aprsis.Dialer) DialFunc {
	return func(ctx context.Context) (Upstream, error) {
		conn, err := d.Dial(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// =============================================================================
// State
// =============================================================================

// State is the lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Lifecycle owns the upstream feed and the storage client.
//
// Start, Stop and Write are serialized by one mutex. A Stop requested
// while Start is still connecting waits until Start finished or rolled
// back, and a Write waiting for the mutex while Stop runs finds the writer
// cleared and drops its point.
type Lifecycle struct {
	dial  DialFunc
	open  storage.Opener
	stats *Stats

	state atomic.Int32

	mu       sync.Mutex
	upstream Upstream
	client   storage.Client
	writer   storage.Writer
}

// NewLifecycle creates a stopped Lifecycle.
func NewLifecycle(dial DialFunc, open storage.Opener) *Lifecycle {
	return &Lifecycle{
		dial: dial,
		open: open,
	}
}

// State returns the current state without blocking.
func (l *Lifecycle) State() State {
	return State(l.state.Load())
}

func (l *Lifecycle) setState(s State) {
	l.state.Store(int32(s))
	metrics.SetLifecycleState(int(s))
}

// Start opens the upstream feed, then the storage client, and pings the
// storage backend. If any step fails everything opened so far is closed in
// reverse order, the state returns to stopped and the error is returned
// marked with ErrUpstreamConnect, ErrStorageUnreachable or ErrStorageAuth.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if s := l.State(); s != StateStopped {
		return errors.Wrapf(errors.ErrAlreadyRunning, "start in state %s", s)
	}
	l.setState(StateStarting)

	up, err := l.dial(ctx)
	if err != nil {
		l.rollback()
		metrics.IncStart(metrics.ResultError)
		return errors.Wrap(errors.Mark(err, errors.ErrUpstreamConnect), "open upstream")
	}
	l.upstream = up

	client, err := l.open(ctx)
	if err != nil {
		l.rollback()
		metrics.IncStart(metrics.ResultError)
		return errors.Wrap(storageError(err), "open storage")
	}
	l.client = client

	if err := client.Ping(ctx); err != nil {
		l.rollback()
		metrics.IncStart(metrics.ResultError)
		return errors.Wrap(storageError(err), "ping storage")
	}

	l.writer = client.Writer()
	l.setState(StateRunning)
	metrics.IncStart(metrics.ResultSuccess)
	log.Info("started")
	return nil
}

func storageError(err error) error {
	if errors.IsAuthError(err) {
		return errors.Mark(err, errors.ErrStorageAuth)
	}
	return errors.Mark(err, errors.ErrStorageUnreachable)
}

// rollback closes whatever Start opened. Caller holds mu.
func (l *Lifecycle) rollback() {
	l.setState(StateStopping)
	if err := l.closeHandles(); err != nil {
		log.Warn("rollback close failed", "error", err)
	}
	l.setState(StateStopped)
}

// closeHandles clears the writer and closes storage, then upstream.
// Caller holds mu.
func (l *Lifecycle) closeHandles() error {
	l.writer = nil

	var errs []error
	if l.client != nil {
		if err := l.client.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close storage"))
		}
		l.client = nil
	}
	if l.upstream != nil {
		if err := l.upstream.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close upstream"))
		}
		l.upstream = nil
	}
	return errors.Join(errs...)
}

// Stop clears the writer and closes storage, then upstream. Stopping a
// stopped Lifecycle does nothing. Close errors are returned but the state
// ends stopped either way.
func (l *Lifecycle) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State() == StateStopped && l.client == nil && l.upstream == nil {
		return nil
	}

	l.setState(StateStopping)
	err := l.closeHandles()
	l.setState(StateStopped)

	if err != nil {
		log.Warn("stop", "error", err)
	} else {
		log.Info("stopped")
	}
	return err
}

// Packets returns the packet channel of the open upstream, or nil when
// stopped.
func (l *Lifecycle) Packets() <-chan string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.upstream == nil {
		return nil
	}
	return l.upstream.Packets()
}

// Write stores p under the lifecycle mutex. It returns false without error
// when the writer was cleared by Stop.
func (l *Lifecycle) Write(ctx context.Context, bucket string, p point.Point) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == nil {
		return false, nil
	}

	start := time.Now()
	err := l.writer.Write(ctx, bucket, p)
	took := time.Since(start)
	if err != nil {
		metrics.ObserveWrite(metrics.ResultError, took)
		return true, err
	}
	metrics.ObserveWrite(metrics.ResultSuccess, took)
	if l.stats != nil {
		l.stats.observeWrite(took)
	}
	return true, nil
}
