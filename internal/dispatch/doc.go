// Package dispatch delivers device events to listeners.
//
// Devices queue events as datagrams arrive. Once per tick the controller
// loop calls Broadcaster.Drain, which pops every device's queue and hands
// each event to every subscribed listener, in arrival order per device.
// Nothing is ordered across devices.
//
// Listeners run on the tick goroutine and must not block. Bridges that
// do I/O queue the event and return.
package dispatch
