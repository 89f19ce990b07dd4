package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/xtxerr/aprs2influxdb/internal/point"
	"github.com/xtxerr/aprs2influxdb/internal/storage"
)

// events records close calls across fakes so tests can check ordering.
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, s)
}

func (e *events) get() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

type fakeUpstream struct {
	ev      *events
	packets chan string
	once    sync.Once
	closed  bool
	mu      sync.Mutex
}

func newFakeUpstream(ev *events, buffer int) *fakeUpstream {
	return &fakeUpstream{ev: ev, packets: make(chan string, buffer)}
}

func (u *fakeUpstream) Packets() <-chan string { return u.packets }

func (u *fakeUpstream) Close() error {
	u.once.Do(func() {
		u.mu.Lock()
		u.closed = true
		u.mu.Unlock()
		close(u.packets)
		u.ev.add("close upstream")
	})
	return nil
}

func (u *fakeUpstream) isClosed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.closed
}

type fakeClient struct {
	ev       *events
	pingErr  error
	writeErr error

	mu     sync.Mutex
	closed bool
	points []point.Point
	// lateWrites counts writes that reached the client after Close.
	lateWrites int
}

func (c *fakeClient) Ping(ctx context.Context) error { return c.pingErr }

func (c *fakeClient) Writer() storage.Writer { return c }

func (c *fakeClient) Write(ctx context.Context, bucket string, p point.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.lateWrites++
		return fmt.Errorf("write after close")
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.points = append(c.points, p)
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.ev.add("close storage")
	}
	return nil
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) written() []point.Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]point.Point(nil), c.points...)
}

// harness wires a Lifecycle to fresh fakes on every Start.
type harness struct {
	ev events

	mu        sync.Mutex
	dialErr   error
	openErr   error
	pingErr   error
	upstreams []*fakeUpstream
	clients   []*fakeClient
	dials     int
	opens     int
}

func (h *harness) dial(ctx context.Context) (Upstream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dials++
	if h.dialErr != nil {
		return nil, h.dialErr
	}
	u := newFakeUpstream(&h.ev, 16)
	h.upstreams = append(h.upstreams, u)
	return u, nil
}

func (h *harness) open(ctx context.Context) (storage.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opens++
	if h.openErr != nil {
		return nil, h.openErr
	}
	c := &fakeClient{ev: &h.ev, pingErr: h.pingErr}
	h.clients = append(h.clients, c)
	return c, nil
}

func (h *harness) lastUpstream() *fakeUpstream {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.upstreams[len(h.upstreams)-1]
}

func (h *harness) lastClient() *fakeClient {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients[len(h.clients)-1]
}
