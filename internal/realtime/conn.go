package realtime

import "strings"

// State is the lifecycle state of a connection.
type State int32

const (
	// StateConnecting covers the handshake; the client is not yet registered.
	StateConnecting State = iota
	// StateOpen clients are registered and receive broadcasts.
	StateOpen
	// StateClosing clients have been unregistered; their send queue is closed.
	StateClosing
	// StateClosed clients have released their socket.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
