// Package protocol implements the XDTK text wire format.
//
// Every device→controller datagram is a single comma-separated line:
//
//	<timestamp>,<HEADER>,<field>,<field>...
//
// Decode splits a line into a Message; Parse turns a Message into one of
// the typed records in this package. Both are stateless. A record is
// returned only if every field it needs parsed cleanly, so callers can
// apply it to device state without risk of a partial update.
//
// Controller→device traffic is a bare header with optional fields and no
// timestamp: WHOAREYOU, HEARTBEAT and the HAPTICS_* commands.
//
// Values are carried exactly as the device sent them. Handedness
// conversion belongs to the device package.
package protocol
