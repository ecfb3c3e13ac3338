package realtime

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/livechat/internal/metrics"
)

func newTestHub(t *testing.T, cfg ClientConfig) *Hub {
	t.Helper()
	return NewHub(cfg, zaptest.NewLogger(t), metrics.NewWebSocketMetrics(prometheus.NewRegistry()))
}

// TestNewHub verifies that a new hub starts empty with default limits.
func TestNewHub(t *testing.T) {
	hub := NewHub(ClientConfig{}, nil, nil)

	assert.Equal(t, 0, hub.ClientCount())
	assert.Empty(t, hub.Snapshot())
	assert.Equal(t, DefaultClientConfig(), hub.config)
}

// TestNewClient verifies client construction from the hub's limits.
func TestNewClient(t *testing.T) {
	hub := newTestHub(t, ClientConfig{SendBufferSize: 8})
	client := NewClient(nil, hub, "127.0.0.1:12345")

	assert.Equal(t, "127.0.0.1:12345", client.Addr())
	assert.Equal(t, 8, cap(client.send))
	assert.Equal(t, StateConnecting, hub.State(client))
}

func TestRegisterAndUnregister(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})
	a := NewClient(nil, hub, "a")
	b := NewClient(nil, hub, "b")

	hub.Register(a)
	hub.Register(b)

	assert.Equal(t, 2, hub.ClientCount())
	assert.ElementsMatch(t, []*Client{a, b}, hub.Snapshot())
	assert.Equal(t, StateOpen, hub.State(a))
	assert.Equal(t, 2.0, testutil.ToFloat64(hub.metrics.ActiveConnections))

	hub.Unregister(a)

	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, []*Client{b}, hub.Snapshot())
	assert.Equal(t, StateClosed, hub.State(a))
	assert.Equal(t, 1.0, testutil.ToFloat64(hub.metrics.ActiveConnections))

	_, open := <-a.GetSendChan()
	assert.False(t, open, "send queue should be closed after unregister")
}

// TestUnregisterIsIdempotent verifies that repeated and unknown unregisters are no-ops.
func TestUnregisterIsIdempotent(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})
	client := NewClient(nil, hub, "a")
	stranger := NewClient(nil, hub, "never-registered")

	hub.Register(client)

	assert.NotPanics(t, func() {
		hub.Unregister(client)
		hub.Unregister(client)
		hub.Unregister(stranger)
		hub.Unregister(nil)
	})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestRegisterNilClient(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})

	assert.NotPanics(t, func() { hub.Register(nil) })
	assert.Equal(t, 0, hub.ClientCount())
}

// TestUnregisterAfterWritePumpExitKeepsClosed verifies that a client whose
// write pump already marked it CLOSED is not moved back to CLOSING.
func TestUnregisterAfterWritePumpExitKeepsClosed(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})
	client := NewClient(nil, hub, "a")
	hub.Register(client)

	// Stand-in for a live socket; Unregister only checks it for nil.
	client.conn = new(websocket.Conn)
	hub.markClosed(client)
	require.Equal(t, StateClosed, hub.State(client))

	hub.Unregister(client)

	assert.Equal(t, StateClosed, hub.State(client))
	assert.Equal(t, 0, hub.ClientCount())
}

// TestShutdownKeepsClosedClientsClosed verifies Shutdown does not move a
// client whose pump already exited back to CLOSING.
func TestShutdownKeepsClosedClientsClosed(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})
	client := NewClient(nil, hub, "a")
	hub.Register(client)
	client.conn = new(websocket.Conn)
	hub.markClosed(client)

	require.NoError(t, hub.Shutdown(time.Second))

	assert.Equal(t, StateClosed, hub.State(client))
}

// TestReRegisterIsIgnored verifies that a removed client cannot come back with a closed queue.
func TestReRegisterIsIgnored(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})
	client := NewClient(nil, hub, "a")

	hub.Register(client)
	hub.Unregister(client)
	hub.Register(client)

	assert.Equal(t, 0, hub.ClientCount())
	assert.False(t, hub.offer(client, []byte("x")))
}

func TestSnapshotIsACopy(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})
	client := NewClient(nil, hub, "a")
	hub.Register(client)

	snapshot := hub.Snapshot()
	hub.Unregister(client)

	assert.Len(t, snapshot, 1)
	assert.Empty(t, hub.Snapshot())
}

// TestConcurrentHubOperations verifies registry consistency under concurrent use.
func TestConcurrentHubOperations(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})

	const workers = 20
	done := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			client := NewClient(nil, hub, "concurrent")
			hub.Register(client)
			_ = hub.Snapshot()
			hub.offer(client, []byte("ping"))
			hub.Unregister(client)
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}

	assert.Equal(t, 0, hub.ClientCount())
}

func TestShutdownWithoutClients(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})

	start := time.Now()
	require.NoError(t, hub.Shutdown(time.Second))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

// TestShutdownClosesQueuesAndRejectsNewClients verifies the hub refuses work after shutdown.
func TestShutdownClosesQueuesAndRejectsNewClients(t *testing.T) {
	hub := newTestHub(t, ClientConfig{})
	client := NewClient(nil, hub, "a")
	hub.Register(client)

	require.NoError(t, hub.Shutdown(time.Second))

	_, open := <-client.GetSendChan()
	assert.False(t, open)
	assert.Equal(t, 0, hub.ClientCount())

	late := NewClient(nil, hub, "late")
	hub.Register(late)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, StateConnecting, hub.State(late))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
