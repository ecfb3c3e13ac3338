package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/livechat/internal/logging"
	"github.com/Tyrowin/livechat/internal/realtime"
)

const readyTimeout = 2 * time.Second

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
	Clients     int    `json:"clients"`
}

type readyResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type notFoundResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// handleWebSocket upgrades a GET request and hands the connection to the hub,
// which starts its pumps. Clients never authenticate here; the socket only
// carries server events.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.FromContext(r.Context()).Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	s.hub.Register(realtime.NewClient(conn, s.hub, r.RemoteAddr))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Timestamp:   s.clock.Now().UTC().Format(time.RFC3339),
		Environment: s.cfg.AppEnv,
		Clients:     s.hub.ClientCount(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		if err := s.store.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("Readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, readyResponse{Status: "unavailable", Error: "database unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, readyResponse{Status: "ready"})
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundResponse{
		Error:   "Not Found",
		Message: fmt.Sprintf("Route %s %s was not found", r.Method, r.URL.Path),
	})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, notFoundResponse{
		Error:   "Method Not Allowed",
		Message: fmt.Sprintf("Method %s is not allowed on %s", r.Method, r.URL.Path),
	})
}

// handleTestPage serves a page that connects to /ws and prints every event.
func handleTestPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		zap.L().Debug("Error writing HTML response", zap.Error(err))
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Live Chat Event Monitor</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events {
            border: 1px solid #ccc;
            height: 400px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        .type { font-weight: bold; color: #005a87; }
    </style>
</head>
<body>
    <h1>Live Chat Event Monitor</h1>
    <p>Events appear here when messages or users change through the REST API.</p>

    <div id="status" class="status disconnected">Disconnected</div>
    <button id="connectButton" onclick="toggleConnection()">Connect</button>
    <button onclick="clearEvents()">Clear</button>

    <div id="events"></div>

    <script>
        let ws = null;
        const eventsDiv = document.getElementById('events');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addLine(text, type) {
            const line = document.createElement('div');
            line.style.margin = '4px 0';
            if (type) {
                const label = document.createElement('span');
                label.className = 'type';
                label.textContent = type + ' ';
                line.appendChild(label);
            }
            line.appendChild(document.createTextNode(text));
            eventsDiv.appendChild(line);
            eventsDiv.scrollTop = eventsDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                addLine('connected');
                updateStatus(true);
            };

            ws.onmessage = function(event) {
                try {
                    const envelope = JSON.parse(event.data);
                    addLine(JSON.stringify(envelope.data), envelope.type);
                } catch (e) {
                    addLine(event.data);
                }
            };

            ws.onclose = function(event) {
                addLine('connection closed (' + event.code + ')');
                updateStatus(false);
                ws = null;
            };

            ws.onerror = function() {
                addLine('connection error');
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function clearEvents() {
            eventsDiv.innerHTML = '';
        }
    </script>
</body>
</html>`
