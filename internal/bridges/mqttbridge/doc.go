// Package mqttbridge connects the controller to an MQTT broker.
//
// Outbound, every device event is published on xdtk/event/{id}/{kind}
// as JSON or CBOR. Notify only enqueues; a worker started by Run does
// the publishing so the tick goroutine never waits on the broker. When
// the queue is full the event is dropped and counted.
//
// Inbound, haptics commands published on xdtk/command/haptics/{id} are
// decoded and handed to the transceiver:
//
//	{"effect":"click"}
//	{"effect":"oneshot","millis":100,"amplitude":128}
package mqttbridge
