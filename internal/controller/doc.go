// Package controller runs the application tick loop.
//
// Each tick the loop delivers queued device events, creates devices whose
// discovery finished on the receive goroutine, applies the staleness
// policy and finally hands device snapshots to observers such as the
// telemetry sampler. All of this happens on one goroutine, so listeners
// and observers never run concurrently with each other.
package controller
