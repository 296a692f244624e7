package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/devfront/devfront/server/internal/metrics"
	"github.com/devfront/devfront/server/internal/retry"
)

// Defaults for the dev notification socket.
const (
	DefaultURL        = "ws://127.0.0.1:3333"
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second

	handshakeTimeout = 10 * time.Second
)

// ErrRetriesExhausted matches the error returned by Connect once every
// attempt has failed. It is fatal for the caller.
var ErrRetriesExhausted = retry.ErrExhausted

// ErrAlreadyStarted is returned when Connect is called more than once on the
// same Connector.
var ErrAlreadyStarted = errors.New("upstream: connector already started")

// State is the lifecycle stage of the upstream connection.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ConnectError is a single failed dial. It is transient while retries remain.
type ConnectError struct {
	URL     string
	Attempt int
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s (attempt %d): %v", e.URL, e.Attempt, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// DialFunc opens one websocket connection to url.
// Abstracted so tests can inject failing dialers.
type DialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// Result is the single outcome of a connection attempt sequence.
type Result struct {
	Conn *websocket.Conn
	Err  error
}

// Connector obtains exactly one live connection to the dev socket.
type Connector struct {
	url        string
	maxRetries int
	retryDelay time.Duration
	clock      clockwork.Clock
	dial       DialFunc
	metrics    *metrics.Metrics

	mu       sync.Mutex
	state    State
	attempts int
	lastErr  error
}

// Option configures a Connector.
type Option func(*Connector)

// WithRetry overrides the retry budget and the fixed delay between attempts.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Connector) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithClock sets the clock retry waits are scheduled on.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Connector) { c.clock = clock }
}

// WithDialer replaces the websocket dialer.
func WithDialer(dial DialFunc) Option {
	return func(c *Connector) { c.dial = dial }
}

// WithMetrics records attempt outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connector) { c.metrics = m }
}

// NewConnector returns a Connector for url. An empty url selects DefaultURL.
func NewConnector(url string, opts ...Option) *Connector {
	if url == "" {
		url = DefaultURL
	}
	c := &Connector{
		url:        url,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		clock:      clockwork.NewRealClock(),
		dial:       defaultDial,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the dev socket, retrying on failure. It returns exactly once
// with either an open connection or an error; the error matches
// ErrRetriesExhausted when the retry budget was spent.
func (c *Connector) Connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	c.state = StateConnecting
	c.mu.Unlock()

	policy := retry.Policy{
		MaxRetries: c.maxRetries,
		Delay:      c.retryDelay,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			slog.Debug("upstream: dial failed, will retry",
				"url", c.url, "attempt", attempt, "retry_in", delay, "err", err)
		},
	}

	conn, err := retry.Do(ctx, c.clock, policy, c.attempt)
	if err != nil {
		c.setState(StateFailed)
		return nil, fmt.Errorf("upstream: %w", err)
	}

	c.setState(StateOpen)
	slog.Info("upstream: connected to dev socket", "url", c.url, "attempts", c.Attempts())
	return conn, nil
}

// ConnectAsync runs Connect in the background. The returned channel receives
// exactly one Result and is then closed.
func (c *Connector) ConnectAsync(ctx context.Context) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		conn, err := c.Connect(ctx)
		out <- Result{Conn: conn, Err: err}
	}()
	return out
}

// State returns the current lifecycle stage.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns how many dials have been started so far.
func (c *Connector) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// LastError returns the most recent dial failure, or nil.
func (c *Connector) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// MarkClosed records that an open connection has gone away. It has no
// effect in any other state.
func (c *Connector) MarkClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateOpen {
		c.state = StateClosed
	}
}

// URL returns the dev socket address.
func (c *Connector) URL() string { return c.url }

func (c *Connector) attempt(ctx context.Context, n int) (*websocket.Conn, error) {
	c.mu.Lock()
	c.attempts = n
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.url)
	if err != nil {
		cerr := &ConnectError{URL: c.url, Attempt: n, Err: err}
		c.mu.Lock()
		c.lastErr = cerr
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.UpstreamAttempts.WithLabelValues("error").Inc()
		}
		return nil, cerr
	}

	if c.metrics != nil {
		c.metrics.UpstreamAttempts.WithLabelValues("success").Inc()
	}
	return conn, nil
}

func (c *Connector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func defaultDial(ctx context.Context, url string) (*websocket.Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := d.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
