package realtime

import (
	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/metrics"
)

// Publisher is what mutation services depend on to announce committed changes.
type Publisher interface {
	Broadcast(event Event)
}

// Broadcaster fans events out to every open client of a Hub.
type Broadcaster struct {
	hub     *Hub
	logger  *zap.Logger
	metrics *metrics.WebSocketMetrics
}

var _ Publisher = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster for hub. m may be nil.
func NewBroadcaster(hub *Hub, logger *zap.Logger, m *metrics.WebSocketMetrics) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		hub:     hub,
		logger:  logger.Named("broadcaster"),
		metrics: m,
	}
}

// Broadcast serializes event once and enqueues the same bytes for every open
// client. It never blocks on a socket and never fails: clients that cannot
// accept the envelope are logged and evicted, and delivery to the others
// continues.
func (b *Broadcaster) Broadcast(event Event) {
	payload, err := Marshal(event)
	if err != nil {
		b.logger.Error("Dropping event that could not be serialized",
			zap.String("type", string(event.Kind())),
			zap.Error(err),
		)
		return
	}

	clients := b.hub.Snapshot()
	failed := b.broadcastToClients(clients, payload)
	b.removeFailedClients(failed)

	b.metrics.RecordBroadcast(string(event.Kind()))
	b.logger.Debug("Broadcast event",
		zap.String("type", string(event.Kind())),
		zap.Int("targets", len(clients)),
		zap.Int("failed", len(failed)),
	)
}

func (b *Broadcaster) broadcastToClients(clients []*Client, payload []byte) []*Client {
	var failed []*Client
	for _, client := range clients {
		if !b.hub.offer(client, payload) {
			failed = append(failed, client)
		}
	}
	return failed
}

func (b *Broadcaster) removeFailedClients(failed []*Client) {
	for _, client := range failed {
		b.metrics.RecordSendFailure()
		b.logger.Warn("Evicting client that could not accept broadcast", zap.String("remote_addr", client.addr))
		b.hub.Unregister(client)
	}
}
