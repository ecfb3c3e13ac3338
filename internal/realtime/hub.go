package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/metrics"
)

// ClientConfig holds the per-connection limits applied to every client.
type ClientConfig struct {
	SendBufferSize int
	MaxMessageSize int64
	// InboundBurst frames are accepted per InboundRefill; extra frames are dropped.
	InboundBurst  int
	InboundRefill time.Duration
}

// DefaultClientConfig returns the limits used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBufferSize: 256,
		MaxMessageSize: 512,
		InboundBurst:   5,
		InboundRefill:  time.Second,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	def := DefaultClientConfig()
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = def.SendBufferSize
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = def.InboundBurst
	}
	if c.InboundRefill <= 0 {
		c.InboundRefill = def.InboundRefill
	}
	return c
}

// Hub is the registry of open WebSocket connections. All methods are safe
// for concurrent use.
type Hub struct {
	clients map[*Client]struct{}
	mutex   sync.RWMutex
	wg      sync.WaitGroup
	closed  bool

	config  ClientConfig
	logger  *zap.Logger
	metrics *metrics.WebSocketMetrics
}

// NewHub creates an empty registry. m may be nil.
func NewHub(cfg ClientConfig, logger *zap.Logger, m *metrics.WebSocketMetrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		config:  cfg.withDefaults(),
		logger:  logger.Named("hub"),
		metrics: m,
	}
}

// Register adds a client that finished its handshake and starts its pumps.
// Clients without a socket are tracked but not pumped. Registering after
// Shutdown closes the client's socket instead.
func (h *Hub) Register(client *Client) {
	if client == nil {
		h.logger.Warn("Received nil client registration; skipping")
		return
	}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		h.logger.Info("Rejecting client registration after shutdown", zap.String("remote_addr", client.addr))
		client.closeConnection()
		return
	}
	if client.state != StateConnecting {
		h.mutex.Unlock()
		h.logger.Warn("Ignoring registration of client in state "+client.state.String(), zap.String("remote_addr", client.addr))
		return
	}
	client.state = StateOpen
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	pumped := client.conn != nil
	if pumped {
		h.wg.Add(2)
	}
	h.mutex.Unlock()

	h.metrics.SetActiveConnections(clientCount)
	h.logger.Info("Client registered",
		zap.String("remote_addr", client.addr),
		zap.Int("clients", clientCount),
	)

	if !pumped {
		return
	}
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// Unregister removes client and closes its send queue. Unknown or already
// removed clients are ignored.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}

	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	h.beginClosingLocked(client)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// The state change above stops offer from sending before the close.
	close(client.send)

	h.metrics.SetActiveConnections(clientCount)
	h.logger.Info("Client unregistered",
		zap.String("remote_addr", client.addr),
		zap.Int("clients", clientCount),
	)
}

// Snapshot returns the clients that are currently open.
func (h *Hub) Snapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.state == StateOpen {
			clients = append(clients, client)
		}
	}
	return clients
}

// ClientCount returns the number of open clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// offer enqueues message on client's send queue without blocking. It reports
// false when the client is not open or its queue is full.
func (h *Hub) offer(client *Client, message []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Recovered from panic while enqueueing message", zap.Any("panic", r))
			ok = false
		}
	}()

	// The read lock is held through the send so Unregister cannot close the
	// queue in between.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if client.state != StateOpen {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// beginClosingLocked moves an open client to CLOSING. A client whose write
// pump already finished stays CLOSED, since no pump is left to finish the
// transition. Callers hold the write lock.
func (h *Hub) beginClosingLocked(client *Client) {
	if client.state != StateOpen {
		return
	}
	client.state = StateClosing
	if client.conn == nil {
		client.state = StateClosed
	}
}

func (h *Hub) markClosed(client *Client) {
	h.mutex.Lock()
	client.state = StateClosed
	h.mutex.Unlock()
}

// State returns the current lifecycle state of client.
func (h *Hub) State(client *Client) State {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return client.state
}

// Shutdown closes every connection and waits for all pump goroutines, or
// returns context.DeadlineExceeded once timeout elapses.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("Initiating hub shutdown")

	h.mutex.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		delete(h.clients, client)
		h.beginClosingLocked(client)
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	// Closing the queue makes each write pump send a close frame and release
	// its socket, which in turn ends the read pump.
	for _, client := range clients {
		close(client.send)
	}
	h.metrics.SetActiveConnections(0)
	h.logger.Info("Closing client connections", zap.Int("clients", len(clients)))

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		for _, client := range clients {
			client.closeConnection()
		}
		h.logger.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
