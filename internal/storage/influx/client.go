// Package influx writes points to InfluxDB 2.x.
package influx

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"

	"github.com/xtxerr/aprs2influxdb/internal/errors"
	"github.com/xtxerr/aprs2influxdb/internal/logging"
	"github.com/xtxerr/aprs2influxdb/internal/point"
	"github.com/xtxerr/aprs2influxdb/internal/storage"
)

var log = logging.Component("influx")

// DefaultRequestTimeout bounds every HTTP request to the server.
const DefaultRequestTimeout = 20 * time.Second

// Options configures a Client.
type Options struct {
	URL   string
	Token string
	Org   string

	// RequestTimeout defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration
}

// Client is an InfluxDB connection.
type Client struct {
	client influxdb2.Client
	org    string
	url    string

	mu      sync.Mutex
	writers map[string]api.WriteAPIBlocking
	closed  bool
}

// New creates a client. No request is made until Ping or Write.
func New(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	seconds := uint(timeout / time.Second)
	if seconds == 0 {
		seconds = 1
	}

	o := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(seconds).
		SetApplicationName("aprs2influxdb")

	return &Client{
		client:  influxdb2.NewClientWithOptions(opts.URL, opts.Token, o),
		org:     opts.Org,
		url:     opts.URL,
		writers: make(map[string]api.WriteAPIBlocking),
	}
}

// Opener returns a storage.Opener for opts.
func Opener(opts Options) storage.Opener {
	return func(ctx context.Context) (storage.Client, error) {
		return New(opts), nil
	}
}

// Ping checks that the server answers and that the token can read the
// organization. A rejected token maps to ErrStorageAuth, anything else to
// ErrStorageUnreachable.
func (c *Client) Ping(ctx context.Context) error {
	ok, err := c.client.Ping(ctx)
	if err != nil {
		return classify(err, "ping "+c.url)
	}
	if !ok {
		return errors.Wrapf(errors.ErrStorageUnreachable, "ping %s", c.url)
	}

	if _, err := c.client.OrganizationsAPI().FindOrganizationByName(ctx, c.org); err != nil {
		return classify(err, "find organization "+c.org)
	}
	return nil
}

// Writer returns the client itself; it writes to any bucket of the org.
func (c *Client) Writer() storage.Writer {
	return c
}

// Write stores p in bucket.
func (c *Client) Write(ctx context.Context, bucket string, p point.Point) error {
	w, err := c.writeAPI(bucket)
	if err != nil {
		return err
	}

	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	if err := w.WritePoint(ctx, influxdb2.NewPoint(p.Measurement, p.Tags, fields, p.Time)); err != nil {
		if isAuth(err) {
			return errors.Wrapf(errors.Mark(err, errors.ErrStorageAuth), "write %s", bucket)
		}
		return errors.Wrapf(errors.Mark(err, errors.ErrWrite), "write %s", bucket)
	}
	return nil
}

func (c *Client) writeAPI(bucket string) (api.WriteAPIBlocking, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.Wrap(errors.ErrConnectionClosed, "influx client")
	}
	w, ok := c.writers[bucket]
	if !ok {
		w = c.client.WriteAPIBlocking(c.org, bucket)
		c.writers[bucket] = w
	}
	return w, nil
}

// Close releases idle connections. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.writers = nil
	c.client.Close()
	log.Debug("closed", "url", c.url)
	return nil
}

func classify(err error, what string) error {
	if isAuth(err) {
		return errors.Wrap(errors.Mark(err, errors.ErrStorageAuth), what)
	}
	return errors.Wrap(errors.Mark(err, errors.ErrStorageUnreachable), what)
}

func isAuth(err error) bool {
	var herr *influxhttp.Error
	if errors.As(err, &herr) {
		return herr.StatusCode == http.StatusUnauthorized || herr.StatusCode == http.StatusForbidden
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden")
}
