// Package aprsis is a receive-only APRS-IS client.
//
// A Conn logs in once, then delivers every non-comment line on a channel.
// A link that stays silent for the heartbeat interval, or that fails, is
// replaced by a new connection with exponential backoff. The channel stays
// open across reconnects and is closed by Close.
package aprsis

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xtxerr/aprs2influxdb/config"
	appconfig "github.com/xtxerr/aprs2influxdb/internal/config"
	"github.com/xtxerr/aprs2influxdb/internal/errors"
	"github.com/xtxerr/aprs2influxdb/internal/logging"
)

var log = logging.Component("aprsis")

// Software identifies this client in the login line.
const Software = "aprs2influxdb"

// Options configures a Dialer.
type Options struct {
	Addr      string
	Callsign  string
	Passcode  string
	Filter    string
	Version   string
	Heartbeat time.Duration

	LoginTimeout     time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	ReconnectJitter  float64
	Buffer           int
}

// OptionsFromConfig builds Options from the resolved configuration.
func OptionsFromConfig(cfg appconfig.APRSConfig, version string) Options {
	return Options{
		Addr:             cfg.Addr(),
		Callsign:         cfg.Callsign,
		Passcode:         cfg.Passcode,
		Filter:           cfg.Filter,
		Version:          version,
		Heartbeat:        cfg.HeartbeatInterval,
		ReconnectInitial: cfg.Reconnect.Initial,
		ReconnectMax:     cfg.Reconnect.Max,
		ReconnectJitter:  cfg.Reconnect.Jitter,
	}
}

func (o *Options) applyDefaults() {
	if o.Heartbeat <= 0 {
		o.Heartbeat = config.DefaultAPRSHeartbeatInterval
	}
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = config.DefaultAPRSLoginTimeout
	}
	if o.ReconnectInitial <= 0 {
		o.ReconnectInitial = config.DefaultReconnectInitial
	}
	if o.ReconnectMax < o.ReconnectInitial {
		o.ReconnectMax = o.ReconnectInitial
	}
	if o.Buffer <= 0 {
		o.Buffer = config.DefaultAPRSPacketBuffer
	}
	if o.Passcode == "" {
		o.Passcode = config.DefaultAPRSPasscode
	}
	if o.Version == "" {
		o.Version = "dev"
	}
}

// LoginLine returns the login command sent after connecting.
func (o Options) LoginLine() string {
	pass := o.Passcode
	if pass == appconfig.PasscodeAuto {
		pass = strconv.Itoa(Passcode(o.Callsign))
	}
	line := fmt.Sprintf("user %s pass %s vers %s %s", o.Callsign, pass, Software, o.Version)
	if o.Filter != "" {
		line += " filter " + o.Filter
	}
	return line + "\r\n"
}

// Passcode computes the APRS-IS passcode for callsign. The SSID is ignored.
func Passcode(callsign string) int {
	base, _, _ := strings.Cut(strings.ToUpper(strings.TrimSpace(callsign)), "-")
	hash := 0x73e2
	for i := 0; i < len(base); i += 2 {
		hash ^= int(base[i]) << 8
		if i+1 < len(base) {
			hash ^= int(base[i+1])
		}
	}
	return hash & 0x7fff
}

// Dialer opens Conns.
type Dialer struct {
	opts Options
	net  net.Dialer
}

// NewDialer creates a dialer.
func NewDialer(opts Options) *Dialer {
	opts.applyDefaults()
	return &Dialer{opts: opts}
}

// Dial connects and logs in. It returns once the server acknowledged the
// login, so a returned Conn has proven the link works.
func (d *Dialer) Dial(ctx context.Context) (*Conn, error) {
	c := &Conn{
		dialer:  d,
		packets: make(chan string, d.opts.Buffer),
		done:    make(chan struct{}),
	}

	l, err := d.connect(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, errors.ErrUpstreamConnect), "connect %s", d.opts.Addr)
	}
	c.setLink(l)

	c.wg.Add(2)
	go c.readLoop(l)
	go c.keepaliveLoop()
	return c, nil
}

// link is one logged-in TCP connection.
type link struct {
	conn   net.Conn
	reader *bufio.Reader
	server string
}

func (d *Dialer) connect(ctx context.Context) (*link, error) {
	dctx, cancel := context.WithTimeout(ctx, d.opts.LoginTimeout)
	defer cancel()

	conn, err := d.net.DialContext(dctx, "tcp", d.opts.Addr)
	if err != nil {
		return nil, err
	}

	deadline, _ := dctx.Deadline()
	conn.SetDeadline(deadline)

	// Cancellation unblocks the login exchange.
	stop := context.AfterFunc(dctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write([]byte(d.opts.LoginLine())); err != nil {
		conn.Close()
		return nil, errors.Wrap(loginError(dctx, err), "send login")
	}

	l := &link{conn: conn, reader: bufio.NewReader(conn)}
	for {
		line, err := l.reader.ReadString('\n')
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(loginError(dctx, err), "await logresp")
		}
		line = strings.TrimRight(line, "\r\n")
		log.Debug("server", "line", line)

		if !strings.HasPrefix(line, "# logresp") {
			continue
		}
		if server, ok := parseLogresp(line); ok {
			l.server = server
		}
		if strings.Contains(line, " unverified") && d.opts.Passcode != "-1" {
			log.Warn("login not verified, check passcode", "callsign", d.opts.Callsign)
		}
		break
	}

	if !stop() {
		// ctx ended after logresp arrived; the deadline is already spent.
		conn.Close()
		return nil, errors.Wrap(dctx.Err(), "await logresp")
	}
	conn.SetDeadline(time.Time{})
	log.Info("logged in", "addr", d.opts.Addr, "server", l.server, "callsign", d.opts.Callsign, "filter", d.opts.Filter)
	return l, nil
}

// loginError prefers the context error when ctx ended the exchange.
func loginError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	return err
}

// parseLogresp extracts the server name from
// "# logresp CALL verified, server T2NAME".
func parseLogresp(line string) (string, bool) {
	_, after, ok := strings.Cut(line, "server ")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(after), true
}

// Conn is a logged-in APRS-IS session.
type Conn struct {
	dialer  *Dialer
	packets chan string
	done    chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex
	link   *link
	closed bool

	closeOnce sync.Once
	closeErr  error

	received   atomic.Int64
	comments   atomic.Int64
	reconnects atomic.Int64
}

// Packets delivers raw packet lines in receive order. It is closed after
// Close.
func (c *Conn) Packets() <-chan string {
	return c.packets
}

// Server returns the name of the server that accepted the current login.
func (c *Conn) Server() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.link == nil {
		return ""
	}
	return c.link.server
}

// Received returns the number of packets delivered.
func (c *Conn) Received() int64 { return c.received.Load() }

// Comments returns the number of server comment lines seen.
func (c *Conn) Comments() int64 { return c.comments.Load() }

// Reconnects returns the number of successful reconnects.
func (c *Conn) Reconnects() int64 { return c.reconnects.Load() }

func (c *Conn) setLink(l *link) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.link = l
	return true
}

// Close stops reconnecting, closes the socket and waits for the
// background goroutines. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.done)
		if c.link != nil {
			if err := c.link.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				c.closeErr = err
			}
		}
		c.mu.Unlock()

		c.wg.Wait()
		log.Info("disconnected", "addr", c.dialer.opts.Addr, "received", c.received.Load())
	})
	return c.closeErr
}

func (c *Conn) isDone() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) readLoop(l *link) {
	defer c.wg.Done()
	defer close(c.packets)

	heartbeat := c.dialer.opts.Heartbeat
	for {
		l.conn.SetReadDeadline(time.Now().Add(heartbeat))
		line, err := l.reader.ReadString('\n')
		if err != nil {
			l.conn.Close()
			if c.isDone() {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Warn("no data within heartbeat interval", "heartbeat", heartbeat)
			} else {
				log.Warn("link lost", "error", err)
			}
			if l = c.reconnect(); l == nil {
				return
			}
			continue
		}

		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if line[0] == '#' {
			c.comments.Add(1)
			log.Debug("server", "line", line)
			continue
		}

		select {
		case c.packets <- line:
			c.received.Add(1)
		case <-c.done:
			return
		}
	}
}

// reconnect dials until it succeeds or the Conn is closed.
func (c *Conn) reconnect() *link {
	opts := c.dialer.opts
	delay := opts.ReconnectInitial
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for attempt := 1; ; attempt++ {
		wait := Backoff(delay, opts.ReconnectJitter)
		log.Info("reconnecting", "attempt", attempt, "in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-c.done:
			timer.Stop()
			return nil
		case <-timer.C:
		}

		l, err := c.dialer.connect(ctx)
		if err == nil {
			if !c.setLink(l) {
				l.conn.Close()
				return nil
			}
			c.reconnects.Add(1)
			return l
		}
		if c.isDone() {
			return nil
		}
		log.Warn("reconnect failed", "attempt", attempt, "error", err)

		delay *= 2
		if delay > opts.ReconnectMax {
			delay = opts.ReconnectMax
		}
	}
}

// Backoff adds up to jitter*d of random delay to d.
func Backoff(d time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*jitter*float64(d))
}

func (c *Conn) keepaliveLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.dialer.opts.Heartbeat)
	defer ticker.Stop()

	line := []byte("#keepalive " + Software + "\r\n")
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			l := c.link
			c.mu.Unlock()
			if l == nil {
				continue
			}
			l.conn.SetWriteDeadline(time.Now().Add(c.dialer.opts.LoginTimeout))
			if _, err := l.conn.Write(line); err != nil {
				log.Debug("keepalive failed", "error", err)
			}
		}
	}
}
