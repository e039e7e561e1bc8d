// Package realtime maintains the live event channel to the backend.
//
// A Channel owns one WebSocket connection, keeps it alive with heartbeat
// pings, reconnects with exponential backoff after transient failures, and
// fans decoded events out to in-process subscribers. An optional Relay
// mirrors events to sibling channel instances (additional app windows) so
// they stay consistent without their own socket side effects; relayed events
// are dispatched locally but never re-relayed.
//
// Connection loss is never fatal: events emitted while disconnected are
// simply missed, and consumers treat deliveries as refresh hints that stay
// idempotent under an occasional duplicate.
package realtime
