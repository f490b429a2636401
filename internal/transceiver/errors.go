package transceiver

import "errors"

var (
	// ErrBindFailed is returned by Start when a socket cannot be opened.
	ErrBindFailed = errors.New("transceiver: bind failed")

	// ErrSendFailed is returned when a datagram cannot be written.
	ErrSendFailed = errors.New("transceiver: send failed")

	// ErrNotStarted is returned by sends before Start or after Close.
	ErrNotStarted = errors.New("transceiver: not started")

	// ErrNoAddress is returned when a device has no bound address to send to.
	ErrNoAddress = errors.New("transceiver: device has no address")
)
