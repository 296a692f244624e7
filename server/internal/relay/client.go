package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devfront/devfront/server/internal/metrics"
)

// Client is one downstream websocket connection.
type Client struct {
	id      uuid.UUID
	conn    *websocket.Conn
	metrics *metrics.Metrics
	state   readyState

	mu   sync.Mutex // guards send against close
	send chan []byte
}

func newClient(conn *websocket.Conn, m *metrics.Metrics) *Client {
	return &Client{
		id:      uuid.New(),
		conn:    conn,
		metrics: m,
		send:    make(chan []byte, sendBufSize),
	}
}

// ID identifies the client in logs.
func (c *Client) ID() uuid.UUID { return c.id }

// ReadyState returns the client's current lifecycle stage.
func (c *Client) ReadyState() ReadyState { return c.state.load() }

// Send enqueues msg for delivery as a text frame. It never blocks. When the
// buffer is full the client is closed and ErrBufferFull is returned.
func (c *Client) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.load() != Open {
		return ErrNotOpen
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.closeLocked()
		if c.metrics != nil {
			c.metrics.ClientsDropped.Inc()
		}
		return ErrBufferFull
	}
}

func (c *Client) close() {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Client) closeLocked() {
	switch c.state.load() {
	case Closing, Closed:
		return
	}
	c.state.store(Closing)
	close(c.send)
}

// writePump drains the send buffer to the connection in order and sends
// periodic pings. Runs in its own goroutine per client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.state.store(Closed)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readPump processes control frames and detects disconnects. Blocks until
// the connection closes.
func (c *Client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
