// Package transceiver owns the UDP sockets and runs device discovery.
//
// Datagrams arrive on the listener port. A sender that has not completed
// discovery is asked to identify itself with WHOAREYOU until it sends
// DEVICE_INFO. DEVICE_INFO from an unknown sender is resolved in this
// order, first match wins:
//
//  1. a pre-declared device configured with the sender's address
//  2. a pre-declared device with an id but no address
//  3. a pre-declared device with neither
//  4. a new device, created on the next tick
//
// Any device that needs an id gets the lowest one not already bound.
// Datagrams from registered addresses are parsed, applied to the bound
// device and acknowledged with HEARTBEAT.
//
// The receive goroutine never creates devices. Case 4 queues a creation
// request on a buffered channel which the tick loop drains with Update.
package transceiver
