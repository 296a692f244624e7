package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/devfront/devfront/server/internal/metrics"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the connection
	// as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// Default upgrade rate limit.
	defaultUpgradeRate  = rate.Limit(50)
	defaultUpgradeBurst = 100
)

var (
	// ErrNotOpen is returned by Client.Send when the client is not open.
	ErrNotOpen = errors.New("relay: client not open")

	// ErrBufferFull is returned by Client.Send when the client's outbound
	// buffer is full. The client is closed.
	ErrBufferFull = errors.New("relay: client send buffer full")
)

// Hub tracks downstream websocket clients.
type Hub struct {
	upgrader websocket.Upgrader
	limiter  *rate.Limiter
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics records client and broadcast metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithUpgradeLimit caps the rate of accepted upgrade requests.
func WithUpgradeLimit(r rate.Limit, burst int) Option {
	return func(h *Hub) { h.limiter = rate.NewLimiter(r, burst) }
}

// NewHub creates an empty Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		limiter: rate.NewLimiter(defaultUpgradeRate, defaultUpgradeBurst),
		clients: make(map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request to a websocket and serves the client until
// it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		http.Error(w, "too many websocket upgrades", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := newClient(conn, h.metrics)
	h.register(c)
	defer h.unregister(c)

	slog.Debug("relay: client connected", "client", c.id, "remote_addr", r.RemoteAddr)

	c.state.transition(Connecting, Open)
	go c.writePump()
	c.readPump()

	slog.Debug("relay: client disconnected", "client", c.id)
}

// Broadcast fans msg out to a snapshot of the current clients and returns
// the clients it was sent to.
func (h *Hub) Broadcast(msg []byte) []*Client {
	targets := h.Clients()
	sent := FanOut(targets, msg)
	if h.metrics != nil {
		h.metrics.MessagesRelayed.Inc()
		h.metrics.SendsSkipped.Add(float64(len(targets) - len(sent)))
	}
	return sent
}

// Clients returns a snapshot of the registered clients.
func (h *Hub) Clients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run blocks until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.DownstreamClients.Inc()
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok && h.metrics != nil {
		h.metrics.DownstreamClients.Dec()
	}
	c.close()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.DownstreamClients.Sub(float64(len(clients)))
	}
	for _, c := range clients {
		c.close()
	}
}
