package protocol

import "errors"

// Decode errors. Any of them means the datagram is dropped.
var (
	// ErrMalformed is returned when a line has no header or too few fields.
	ErrMalformed = errors.New("protocol: malformed message")

	// ErrInvalidField is returned when a numeric or enumerated field does not parse.
	ErrInvalidField = errors.New("protocol: invalid field")

	// ErrUnknownHeader is returned by Parse for headers it does not know.
	ErrUnknownHeader = errors.New("protocol: unknown header")
)

// Haptics errors.
var (
	ErrUnknownEffect  = errors.New("protocol: unknown haptic effect")
	ErrInvalidHaptics = errors.New("protocol: invalid haptic parameters")
)
