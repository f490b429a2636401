package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, device.ErrAddressConflict) {
//	    // the sender stays unregistered and will be asked again
//	}
var (
	// ErrSlotOutOfRange is returned by Apply for a touch slot outside 0..TouchSlots-1.
	ErrSlotOutOfRange = errors.New("device: touch slot out of range")

	// ErrUnsupportedRecord is returned by Apply for a record type it does not handle.
	ErrUnsupportedRecord = errors.New("device: unsupported record")

	// ErrAddressConflict is returned when an address is bound to a different device.
	ErrAddressConflict = errors.New("device: address already bound")

	// ErrIDConflict is returned when an id is bound to a different device.
	ErrIDConflict = errors.New("device: id already bound")

	// ErrNotFound is returned when no device has the requested id or address.
	ErrNotFound = errors.New("device: not found")
)
