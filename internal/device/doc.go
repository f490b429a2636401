// Package device holds the live state of each remote XDTK device and the
// registry that maps network addresses and assigned ids to devices.
//
// # State and events
//
// Apply is a pure function: given a State and one parsed protocol record
// it returns the next State and at most one Event. Device wraps a State
// with a mutex and a FIFO event queue so the network receive goroutine
// can apply records while the tick loop drains events and reads
// snapshots. Snapshot returns a copy, so position and orientation are
// always read together.
//
// # Registry
//
// Registry keeps three views of the same devices:
//
//	byAddress  address → device   (unique)
//	byID       id → device        (unique)
//	all        every device, in insertion order
//
// Register never overwrites a binding held by another device; it returns
// ErrAddressConflict or ErrIDConflict and leaves the registry untouched.
//
// Devices are never removed. A device that goes quiet stays registered
// for the life of the process.
package device
