// Package osc forwards device events as Open Sound Control messages.
//
// Each event becomes one message addressed {prefix}/{device_id}/{kind},
// for example /xdtk/0/touch_down. Arguments follow the event's fields in
// a fixed order: slot (int32) when present, then the payload as float32
// values (x and y for positions, deltas and velocities, or the span for
// pinches), then the tap count (int32) when present.
//
// Sends are single UDP writes, so the forwarder can run directly on the
// tick goroutine as a dispatch listener.
package osc
