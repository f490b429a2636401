package device

import (
	"sync"
	"time"

	"github.com/google/xdtk/internal/protocol"
)

// Device is the live record of one remote device.
//
// The receive goroutine calls Handle; the tick loop calls Drain and
// Snapshot. Identity (address and id) changes only through Registry.
type Device struct {
	mu          sync.Mutex
	state       State
	queue       []Event
	predeclared bool
}

// New creates a device that has not been heard from. Pass "" and NoID
// for an unknown address or id.
func New(name, address string, id int) *Device {
	return &Device{state: NewState(name, address, id)}
}

// NewPredeclared creates a device from configuration. Pre-declared
// devices take part in discovery resolution before new devices are made.
func NewPredeclared(name, address string, id int) *Device {
	d := New(name, address, id)
	d.predeclared = true
	return d
}

// Predeclared reports whether the device came from configuration.
func (d *Device) Predeclared() bool {
	return d.predeclared
}

// Handle applies rec and queues the resulting event, if any. On error
// the device is unchanged and nothing is queued.
func (d *Device) Handle(rec protocol.Record, now time.Time) (Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	next, ev, err := Apply(d.state, rec)
	if err != nil {
		return nil, err
	}
	next.LastSeen = now
	next.Stale = false
	d.state = next
	if ev != nil {
		d.queue = append(d.queue, ev)
	}
	return ev, nil
}

// Drain removes and returns every queued event in arrival order.
func (d *Device) Drain() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.queue) == 0 {
		return nil
	}
	events := d.queue
	d.queue = nil
	return events
}

// Pending returns the number of queued events.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Snapshot returns a copy of the current state.
func (d *Device) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ID returns the assigned id, or NoID.
func (d *Device) ID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.ID
}

// Address returns the bound address, or "".
func (d *Device) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Address
}

// Name returns the configured or reported name.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Name
}

// MarkStale sets the stale flag and reports whether it changed.
func (d *Device) MarkStale(stale bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Stale == stale {
		return false
	}
	d.state.Stale = stale
	return true
}

// identity returns address and id under one lock.
func (d *Device) identity() (string, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Address, d.state.ID
}

func (d *Device) setIdentity(address string, id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Address = address
	d.state.ID = id
}
