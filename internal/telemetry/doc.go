// Package telemetry samples device sensor state into InfluxDB.
//
// The Sampler is registered as a controller observer. Every tick it is
// handed a snapshot of each device; at most once per sample interval it
// writes one device_sensors point per registered device plus one
// controller point summarising the registry. Writes go through the
// InfluxDB client's non-blocking write API.
package telemetry
