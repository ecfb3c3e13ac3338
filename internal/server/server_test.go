package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/livechat/internal/auth"
	"github.com/Tyrowin/livechat/internal/config"
	"github.com/Tyrowin/livechat/internal/metrics"
	"github.com/Tyrowin/livechat/internal/realtime"
	"github.com/Tyrowin/livechat/internal/service"
	"github.com/Tyrowin/livechat/internal/store"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testApp struct {
	cfg    *config.Config
	hub    *realtime.Hub
	store  *store.Memory
	clock  *clockwork.FakeClock
	server *httptest.Server
}

// newTestApp wires the full HTTP stack over an in-memory store. configure may
// adjust the configuration before anything is built.
func newTestApp(t *testing.T, configure func(*config.Config)) *testApp {
	t.Helper()

	cfg := config.Default()
	cfg.AppEnv = config.EnvTest
	cfg.JWTSecret = testSecret
	if configure != nil {
		configure(cfg)
	}

	logger := zap.NewNop()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	registry := prometheus.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(registry)

	hub := realtime.NewHub(realtime.ClientConfig{
		SendBufferSize: cfg.SendBufferSize,
		MaxMessageSize: cfg.MaxMessageSize,
		InboundBurst:   cfg.RateLimit.Burst,
		InboundRefill:  cfg.RateLimit.RefillInterval,
	}, logger, wsMetrics)
	broadcaster := realtime.NewBroadcaster(hub, logger, wsMetrics)

	mem := store.NewMemory()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens := auth.NewTokenManager(cfg.JWTSecret, "livechat", cfg.JWTTTL, clock)
	cache, err := service.NewUserCache(cfg.UserCacheSize)
	require.NoError(t, err)

	srv := New(Deps{
		Config:   cfg,
		Logger:   logger,
		Hub:      hub,
		Auth:     service.NewAuthService(mem.Users(), hasher, tokens, cache, broadcaster, clock, logger),
		Messages: service.NewMessageService(mem.Messages(), broadcaster, clock, logger),
		Users:    service.NewUserService(mem.Users(), hasher, cache, broadcaster, clock, logger),
		Store:    mem,
		Registry: registry,
		Clock:    clock,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = hub.Shutdown(2 * time.Second)
		ts.Close()
	})

	return &testApp{cfg: cfg, hub: hub, store: mem, clock: clock, server: ts}
}

func (a *testApp) wsURL() string {
	return "ws" + strings.TrimPrefix(a.server.URL, "http") + "/ws"
}

// do sends a JSON request and decodes the JSON response into out when out is
// non-nil.
func (a *testApp) do(t *testing.T, method, path, token string, body any, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// signUp registers and logs in username, returning the user ID and token.
func (a *testApp) signUp(t *testing.T, username string) (string, string) {
	t.Helper()

	creds := map[string]string{"username": username, "password": "password123"}
	resp := a.do(t, http.MethodPost, "/api/v1/auth/register", "", creds, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var login loginResponse
	resp = a.do(t, http.MethodPost, "/api/v1/auth/login", "", creds, &login)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return login.UserID, login.Token
}

func (a *testApp) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(a.wsURL(), header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (a *testApp) waitForClients(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return a.hub.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(data, &envelope))
	return envelope
}

func expectNoEnvelope(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, got %s", data)
	}
}
