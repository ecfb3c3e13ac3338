// Package server exposes the chat service over HTTP.
//
// Routing is done with chi. The REST API lives under /api/v1 and is guarded by
// a per-IP rate limit; the WebSocket endpoint at /ws only pushes events and
// never accepts chat messages from clients. Health, readiness, metrics, and a
// small HTML test page round out the surface.
package server
