// Package realtime pushes state changes to connected WebSocket clients.
//
// The Hub is the registry of open connections; each Client owns a bounded
// send queue drained by its own write pump. The Broadcaster serializes an
// Event once and offers the same bytes to every open client without ever
// blocking on a socket, evicting clients whose queue is full.
package realtime
