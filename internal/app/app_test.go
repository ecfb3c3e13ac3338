package app

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/config"
)

func freePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// TestRunServesAndShutsDown verifies the in-memory wiring serves /health and
// returns cleanly once its context is cancelled.
func TestRunServesAndShutsDown(t *testing.T) {
	cfg := config.Default()
	cfg.Port = freePort(t)
	cfg.ShutdownTimeout = 2 * time.Second

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + cfg.Port + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestClientConfig(t *testing.T) {
	cfg := config.Default()
	cfg.SendBufferSize = 8
	cfg.RateLimit.Burst = 3

	cc := ClientConfig(cfg)

	assert.Equal(t, 8, cc.SendBufferSize)
	assert.Equal(t, cfg.MaxMessageSize, cc.MaxMessageSize)
	assert.Equal(t, 3, cc.InboundBurst)
	assert.Equal(t, time.Second, cc.InboundRefill)
}

func TestMigrateRequiresDatabaseURL(t *testing.T) {
	err := Migrate(context.Background(), config.Default(), zap.NewNop())
	assert.ErrorContains(t, err, "DATABASE_URL")
}
