// Package registry is the authoritative in-memory state holder for the
// Roomcast service. It tracks rooms and per-connection sessions, applies
// create/join/start/leave/message operations, and computes the set of
// connections each resulting event must be delivered to. It never touches
// the network; delivery is the transport layer's job.
package registry
