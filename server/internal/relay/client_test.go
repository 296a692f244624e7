package relay

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devfront/devfront/server/internal/metrics"
)

// bareClient builds a Client without a connection; Send and close never
// touch the connection.
func bareClient(buf int, m *metrics.Metrics) *Client {
	return &Client{metrics: m, send: make(chan []byte, buf)}
}

func TestClientSend_NotOpen(t *testing.T) {
	c := bareClient(1, nil)
	assert.ErrorIs(t, c.Send([]byte("m")), ErrNotOpen)
	assert.Empty(t, c.send)
}

func TestClientSend_EnqueuesInOrder(t *testing.T) {
	c := bareClient(4, nil)
	c.state.store(Open)

	require.NoError(t, c.Send([]byte("m1")))
	require.NoError(t, c.Send([]byte("m2")))

	assert.Equal(t, []byte("m1"), <-c.send)
	assert.Equal(t, []byte("m2"), <-c.send)
}

func TestClientSend_FullBufferClosesClient(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c := bareClient(1, m)
	c.state.store(Open)

	require.NoError(t, c.Send([]byte("m1")))
	assert.ErrorIs(t, c.Send([]byte("m2")), ErrBufferFull)
	assert.Equal(t, Closing, c.ReadyState())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClientsDropped))

	// Buffered message is still drained, then the channel reports closed.
	assert.Equal(t, []byte("m1"), <-c.send)
	_, ok := <-c.send
	assert.False(t, ok)

	assert.ErrorIs(t, c.Send([]byte("m3")), ErrNotOpen)
}

func TestClientClose_Idempotent(t *testing.T) {
	c := bareClient(1, nil)
	c.state.store(Open)

	c.close()
	assert.NotPanics(t, c.close)
	assert.Equal(t, Closing, c.ReadyState())
}

func TestReadyStateTransition(t *testing.T) {
	var s readyState
	assert.True(t, s.transition(Connecting, Open))
	assert.False(t, s.transition(Connecting, Open))
	assert.Equal(t, Open, s.load())
}
