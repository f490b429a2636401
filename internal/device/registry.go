package device

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry indexes devices by address and by id.
//
// An address or id maps to at most one device, and every device reachable
// by id is also in All. Registered addresses are those that completed
// discovery; a pre-declared address is indexed but not registered until
// its device sends DEVICE_INFO.
//
// All public methods are thread-safe.
type Registry struct {
	mu         sync.RWMutex
	byAddress  map[string]*Device
	byID       map[int]*Device
	all        []*Device
	registered map[string]struct{}

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byAddress:  make(map[string]*Device),
		byID:       make(map[int]*Device),
		registered: make(map[string]struct{}),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Registry) log() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// Add inserts a device with whatever identity it already carries,
// without marking its address registered. It is used for pre-declared
// devices and fails without mutation on a conflicting address or id.
func (r *Registry) Add(d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr, id := d.identity()
	if err := r.checkLocked(d, addr, id); err != nil {
		return err
	}
	r.indexLocked(d, "", NoID, addr, id)
	return nil
}

// Register binds address and id to d and marks the address registered.
// Pass "" or NoID to leave that part of the device's identity as it is.
//
// If either is already bound to a different device Register returns
// ErrAddressConflict or ErrIDConflict and changes nothing.
func (r *Registry) Register(d *Device, address string, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldAddr, oldID := d.identity()
	if address == "" {
		address = oldAddr
	}
	if id < 0 {
		id = oldID
	}

	if err := r.checkLocked(d, address, id); err != nil {
		r.log().Warn("registration refused", "address", address, "id", id, "error", err)
		return err
	}

	r.indexLocked(d, oldAddr, oldID, address, id)
	if address != "" {
		r.registered[address] = struct{}{}
	}
	return nil
}

func (r *Registry) checkLocked(d *Device, address string, id int) error {
	if address != "" {
		if other, ok := r.byAddress[address]; ok && other != d {
			return fmt.Errorf("%w: %s", ErrAddressConflict, address)
		}
	}
	if id >= 0 {
		if other, ok := r.byID[id]; ok && other != d {
			return fmt.Errorf("%w: %d", ErrIDConflict, id)
		}
	}
	return nil
}

func (r *Registry) indexLocked(d *Device, oldAddr string, oldID int, address string, id int) {
	if oldAddr != "" && oldAddr != address && r.byAddress[oldAddr] == d {
		delete(r.byAddress, oldAddr)
		delete(r.registered, oldAddr)
	}
	if oldID >= 0 && oldID != id && r.byID[oldID] == d {
		delete(r.byID, oldID)
	}

	if address != "" {
		r.byAddress[address] = d
	}
	if id >= 0 {
		r.byID[id] = d
	}
	if !r.containsLocked(d) {
		r.all = append(r.all, d)
	}
	d.setIdentity(address, id)
}

func (r *Registry) containsLocked(d *Device) bool {
	for _, x := range r.all {
		if x == d {
			return true
		}
	}
	return false
}

// ByAddress returns the device bound to address.
func (r *Registry) ByAddress(address string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byAddress[address]
	return d, ok
}

// ByID returns the device bound to id.
func (r *Registry) ByID(id int) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// All returns every device in insertion order.
func (r *Registry) All() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, len(r.all))
	copy(out, r.all)
	return out
}

// Len returns the number of devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// IsRegistered reports whether address has completed discovery.
func (r *Registry) IsRegistered(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.registered[address]
	return ok
}

// LowestFreeID returns the smallest non-negative id not bound in the
// registry and not reported taken by reserved. reserved may be nil.
func (r *Registry) LowestFreeID(reserved func(int) bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id := 0; ; id++ {
		if _, ok := r.byID[id]; ok {
			continue
		}
		if reserved != nil && reserved(id) {
			continue
		}
		return id
	}
}
