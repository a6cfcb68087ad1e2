// Package server is the transport adapter for the Roomcast room registry.
// It upgrades HTTP connections to WebSocket, decodes inbound event frames,
// feeds them through a single hub loop into the registry, and delivers the
// computed fan-out back to the affected connections.
package server
