package mqttbridge

import "errors"

var (
	// ErrUnknownFormat is returned for a payload format other than json or cbor.
	ErrUnknownFormat = errors.New("mqttbridge: unknown payload format")

	// ErrBadCommand is returned when a command payload cannot be decoded.
	ErrBadCommand = errors.New("mqttbridge: bad command payload")
)
