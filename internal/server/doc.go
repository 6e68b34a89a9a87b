// Package server exposes the device registry over a local HTTP API.
//
// The server binds to loopback by default and is meant for other
// processes on the same machine (panels, scripts, stream decks) that
// want to control lights without running their own discovery stack.
// There is no authentication; do not bind it to a routable address.
//
// # Endpoints
//
//	GET  /api/devices             list managed devices
//	GET  /api/devices/{id}        one device by identity
//	GET  /api/devices/{id}/state  cached state; ?refresh=1 reads the device
//	PUT  /api/devices/{id}/state  buffer a desired state (202 Accepted)
//	GET  /api/events              WebSocket stream of availability events
//
// State writes go through the session's coalescing buffer, never
// straight to the device: a client hammering PUT during a slider drag
// produces one device write per flush interval, the same guarantee the
// CLI gets. The response is 202 because delivery is asynchronous; 422
// signals an out-of-range state, which is rejected rather than
// clamped.
//
// The event stream carries device_available and device_gone messages
// as JSON. Pings keep idle connections alive; a client that stops
// responding is dropped after the pong deadline.
package server
