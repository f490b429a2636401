package transceiver

import (
	"errors"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/protocol"
)

// HandleDatagram processes one datagram from address. The receive
// goroutine calls it for every datagram; it is exported so other
// transports and tests can feed lines in directly.
func (t *Transceiver) HandleDatagram(address, line string) {
	now := t.now()
	t.datagramsRx.Add(1)
	t.lastActivity.Store(now.UnixNano())

	if !t.registry.IsRegistered(address) {
		t.discover(address, line)
	}
	if t.registry.IsRegistered(address) {
		t.route(address, line)
	}
}

// discover handles a datagram from a sender that has not completed discovery.
func (t *Transceiver) discover(address, line string) {
	msg, err := protocol.Decode(line)
	if err != nil {
		t.decodeFailures.Add(1)
		t.log().Debug("dropping datagram from unknown sender", "address", address, "error", err)
		return
	}

	if msg.Header != protocol.HeaderDeviceInfo {
		if t.sendControl(address, protocol.WhoAreYou) {
			t.whoAreYouTx.Add(1)
		}
		t.log().Debug("sent device info request", "address", address, "header", msg.Header)
		return
	}

	// DEVICE_INFO is checked up front so a malformed one never binds an address.
	rec, err := protocol.Parse(msg)
	if err != nil {
		t.decodeFailures.Add(1)
		t.log().Debug("dropping malformed DEVICE_INFO", "address", address, "error", err)
		return
	}

	t.resolve(address, line, rec.(protocol.DeviceInfo).Name)
}

// resolve binds address to a device following the discovery order.
func (t *Transceiver) resolve(address, line, name string) {
	t.discoveryMu.Lock()
	defer t.discoveryMu.Unlock()

	if _, ok := t.pending[address]; ok {
		return
	}
	// Another goroutine may have finished discovery for this address.
	if t.registry.IsRegistered(address) {
		return
	}

	if d, ok := t.registry.ByAddress(address); ok {
		id := device.NoID
		if d.ID() < 0 {
			id = t.lowestFreeIDLocked()
		}
		t.registerLocked(d, address, id, name, ResolvedByAddress)
		return
	}

	all := t.registry.All()
	for _, d := range all {
		if d.Predeclared() && d.ID() >= 0 && d.Address() == "" {
			t.registerLocked(d, address, device.NoID, name, ResolvedByID)
			return
		}
	}
	for _, d := range all {
		if d.Predeclared() && d.ID() < 0 && d.Address() == "" {
			t.registerLocked(d, address, t.lowestFreeIDLocked(), name, ResolvedUnbound)
			return
		}
	}

	id := t.lowestFreeIDLocked()
	select {
	case t.creations <- creationRequest{address: address, id: id, name: name, info: line}:
		t.pending[address] = id
		t.reserved[id] = struct{}{}
		t.log().Debug("device creation queued", "address", address, "id", id)
	default:
		t.creationsDropped.Add(1)
		t.log().Warn("creation queue full, dropping DEVICE_INFO", "address", address)
	}
}

func (t *Transceiver) lowestFreeIDLocked() int {
	return t.registry.LowestFreeID(func(id int) bool {
		_, ok := t.reserved[id]
		return ok
	})
}

// registerLocked binds d and reports the registration. name is the name
// the device reported in DEVICE_INFO, which has not been applied yet.
func (t *Transceiver) registerLocked(d *device.Device, address string, id int, name string, how Resolution) bool {
	if err := t.registry.Register(d, address, id); err != nil {
		t.conflicts.Add(1)
		t.log().Warn("device registration refused", "address", address, "id", id, "resolution", how, "error", err)
		return false
	}
	t.registrations.Add(1)

	reg := Registration{
		DeviceID:   d.ID(),
		Address:    address,
		Name:       name,
		Resolution: how,
		At:         t.now(),
	}
	t.log().Info("device registered", "device_id", reg.DeviceID, "address", address, "name", reg.Name, "resolution", how)
	t.notifyRegistered(reg)
	return true
}

func (t *Transceiver) notifyRegistered(reg Registration) {
	t.callbackMu.RLock()
	fn := t.onRegistered
	t.callbackMu.RUnlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.log().Error("panic in registration callback", "panic", r)
		}
	}()
	fn(reg)
}

// route applies a datagram to the device bound to address and
// acknowledges it. Nothing is acknowledged if the datagram is rejected.
func (t *Transceiver) route(address, line string) {
	d, ok := t.registry.ByAddress(address)
	if !ok {
		return
	}

	_, rec, err := protocol.ParseLine(line)
	if err != nil {
		t.decodeFailures.Add(1)
		t.log().Debug("dropping datagram", "address", address, "device_id", d.ID(), "error", err)
		return
	}

	if _, err := d.Handle(rec, t.now()); err != nil {
		if !errors.Is(err, device.ErrSlotOutOfRange) {
			t.log().Warn("device rejected message", "device_id", d.ID(), "header", rec.Header(), "error", err)
		}
		t.decodeFailures.Add(1)
		return
	}

	if t.sendControl(address, protocol.Heartbeat) {
		t.heartbeatsTx.Add(1)
	}
}

// Update drains pending device creations. Call it once per tick from
// the tick loop. It returns the number of devices created.
func (t *Transceiver) Update() int {
	created := 0
	for {
		select {
		case req := <-t.creations:
			if t.create(req) {
				created++
			}
		default:
			return created
		}
	}
}

// create applies the queued DEVICE_INFO before the address becomes
// routable, so later datagrams from the receive goroutine land on top of it.
func (t *Transceiver) create(req creationRequest) bool {
	d := device.New("", "", device.NoID)
	_, rec, err := protocol.ParseLine(req.info)
	if err == nil {
		_, err = d.Handle(rec, t.now())
	}
	if err != nil {
		t.decodeFailures.Add(1)
		t.log().Warn("queued DEVICE_INFO no longer applies", "address", req.address, "error", err)
	}

	t.discoveryMu.Lock()
	delete(t.pending, req.address)
	delete(t.reserved, req.id)
	ok := err == nil && t.registerLocked(d, req.address, req.id, req.name, ResolvedCreated)
	t.discoveryMu.Unlock()

	if ok && t.sendControl(req.address, protocol.Heartbeat) {
		t.heartbeatsTx.Add(1)
	}
	return ok
}

// CheckExpiry applies the expiry policy to every registered device.
// It returns the number of devices that became stale.
func (t *Transceiver) CheckExpiry() int {
	t.discoveryMu.Lock()
	policy := t.expiry
	t.discoveryMu.Unlock()

	if _, never := policy.(NeverExpire); never {
		return 0
	}

	now := t.now()
	changed := 0
	for _, d := range t.registry.All() {
		s := d.Snapshot()
		if s.Address == "" || !t.registry.IsRegistered(s.Address) {
			continue
		}
		stale := policy.Stale(s, now)
		if d.MarkStale(stale) && stale {
			changed++
			t.log().Info("device stale", "device_id", s.ID, "address", s.Address, "last_seen", s.LastSeen)
		}
	}
	return changed
}
