// Package api implements the HTTP REST API and WebSocket event stream for
// the XDTK controller.
//
// This package provides:
//   - Read-only device snapshots from the live registry
//   - Haptics commands to registered devices
//   - The discovery registration log, when the database is enabled
//   - Component statistics and health
//   - A WebSocket hub that relays device events as they are dispatched
//
// # WebSocket
//
// Clients connect to the configured path (default /ws) and subscribe to
// channels. "events" carries every device event; "events.{id}" carries a
// single device's. The hub is a dispatch listener: it never blocks the
// tick loop, and a client whose buffer is full misses events.
//
// There is no authentication. Bind the API to a trusted interface.
package api
