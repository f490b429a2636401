package transceiver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/protocol"
)

// Logger defines the logging interface used by the Transceiver.
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

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Resolution records which discovery rule bound a device.
type Resolution string

const (
	ResolvedByAddress Resolution = "predeclared_address"
	ResolvedByID      Resolution = "predeclared_id"
	ResolvedUnbound   Resolution = "predeclared_unbound"
	ResolvedCreated   Resolution = "created"
)

// Registration describes one completed discovery.
type Registration struct {
	DeviceID   int
	Address    string
	Name       string
	Resolution Resolution
	At         time.Time
}

// Stats holds transceiver counters.
type Stats struct {
	DatagramsReceived uint64    `json:"datagrams_received"`
	DecodeFailures    uint64    `json:"decode_failures"`
	WhoAreYouSent     uint64    `json:"whoareyou_sent"`
	HeartbeatsSent    uint64    `json:"heartbeats_sent"`
	SendFailures      uint64    `json:"send_failures"`
	Registrations     uint64    `json:"registrations"`
	Conflicts         uint64    `json:"conflicts"`
	CreationsDropped  uint64    `json:"creations_dropped"`
	LastActivity      time.Time `json:"last_activity"`
	Devices           int       `json:"devices"`
	Listening         bool      `json:"listening"`
}

// creationRequest asks the tick loop to create a device for a sender
// whose DEVICE_INFO matched no pre-declared device.
type creationRequest struct {
	address string
	id      int
	name    string
	info    string
}

// Transceiver runs discovery and routes datagrams to devices.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Update must be called from a single goroutine (the tick loop).
type Transceiver struct {
	cfg      Config
	registry *device.Registry

	conn   *net.UDPConn
	sender Sender
	connMu sync.RWMutex

	// discoveryMu serialises resolution and creation so reserved ids and
	// pending addresses stay consistent with the registry.
	discoveryMu sync.Mutex
	pending     map[string]int
	reserved    map[int]struct{}
	creations   chan creationRequest

	expiry ExpiryPolicy

	onRegistered func(Registration)
	callbackMu   sync.RWMutex

	done *closeOnce
	wg   sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	now func() time.Time

	datagramsRx      atomic.Uint64
	decodeFailures   atomic.Uint64
	whoAreYouTx      atomic.Uint64
	heartbeatsTx     atomic.Uint64
	sendFailures     atomic.Uint64
	registrations    atomic.Uint64
	conflicts        atomic.Uint64
	creationsDropped atomic.Uint64
	lastActivity     atomic.Int64
}

// New creates a transceiver over registry and adds the sanitised
// pre-declared devices to it. No sockets are opened until Start.
func New(cfg Config, registry *device.Registry, decls []Declaration, logger Logger) (*Transceiver, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	cfg = cfg.withDefaults()

	t := &Transceiver{
		cfg:       cfg,
		registry:  registry,
		pending:   make(map[string]int),
		reserved:  make(map[int]struct{}),
		creations: make(chan creationRequest, cfg.CreationQueueSize),
		expiry:    NeverExpire{},
		done:      newCloseOnce(),
		logger:    logger,
		now:       time.Now,
	}

	for _, d := range Sanitize(decls, logger) {
		dev := device.NewPredeclared(d.Name, d.Address, d.ID)
		if err := registry.Add(dev); err != nil {
			return nil, fmt.Errorf("adding pre-declared device %q: %w", d.Name, err)
		}
		logger.Info("pre-declared device", "name", d.Name, "address", d.Address, "id", d.ID)
	}

	return t, nil
}

// Start opens the listener and sender sockets and starts the receive
// goroutine. Bind failures are returned wrapped in ErrBindFailed.
func (t *Transceiver) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	laddr := &net.UDPAddr{Port: t.cfg.ListenPort}
	if t.cfg.ListenHost != "" {
		laddr.IP = net.ParseIP(t.cfg.ListenHost)
		if laddr.IP == nil {
			return fmt.Errorf("%w: invalid listen host %q", ErrBindFailed, t.cfg.ListenHost)
		}
	}

	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("%w: listener %s: %w", ErrBindFailed, net.JoinHostPort(t.cfg.ListenHost, strconv.Itoa(t.cfg.ListenPort)), err)
	}
	if err := conn.SetReadBuffer(t.cfg.ReceiveBufferSize); err != nil {
		t.log().Warn("could not set receive buffer size", "size", t.cfg.ReceiveBufferSize, "error", err)
	}

	t.connMu.Lock()
	if t.sender == nil {
		s, err := newUDPSender(t.cfg.SenderPort, t.cfg.SendTimeout)
		if err != nil {
			t.connMu.Unlock()
			conn.Close()
			return fmt.Errorf("%w: sender: %w", ErrBindFailed, err)
		}
		t.sender = s
	}
	t.conn = conn
	t.connMu.Unlock()

	t.wg.Add(1)
	go t.receiveLoop(conn)

	t.log().Info("transceiver listening", "address", conn.LocalAddr().String(), "sender_port", t.cfg.SenderPort)
	return nil
}

// receiveLoop reads datagrams until Close. Each datagram is handled
// before the next read; a panic while handling one is recovered.
func (t *Transceiver) receiveLoop(conn *net.UDPConn) {
	defer t.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if t.isClosed() || errors.Is(err, net.ErrClosed) {
				return
			}
			t.log().Warn("receive failed", "error", err)
			continue
		}
		t.safeHandle(from.Addr().Unmap().String(), string(buf[:n]))
	}
}

func (t *Transceiver) safeHandle(address, line string) {
	defer func() {
		if r := recover(); r != nil {
			t.log().Error("panic handling datagram", "address", address, "panic", r)
		}
	}()
	t.HandleDatagram(address, line)
}

// SetSender replaces the outbound transport. It must be called before Start.
func (t *Transceiver) SetSender(s Sender) {
	t.connMu.Lock()
	t.sender = s
	t.connMu.Unlock()
}

// SetLogger sets the logger for this transceiver.
func (t *Transceiver) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

func (t *Transceiver) log() Logger {
	t.loggerMu.RLock()
	defer t.loggerMu.RUnlock()
	return t.logger
}

// SetOnRegistered sets a callback invoked after every successful
// discovery. It runs on the goroutine that completed the binding and
// must not block.
func (t *Transceiver) SetOnRegistered(fn func(Registration)) {
	t.callbackMu.Lock()
	t.onRegistered = fn
	t.callbackMu.Unlock()
}

// SetExpiryPolicy replaces the default NeverExpire policy.
func (t *Transceiver) SetExpiryPolicy(p ExpiryPolicy) {
	if p == nil {
		p = NeverExpire{}
	}
	t.discoveryMu.Lock()
	t.expiry = p
	t.discoveryMu.Unlock()
}

// Registry returns the device registry.
func (t *Transceiver) Registry() *device.Registry {
	return t.registry
}

// Devices returns every known device, pre-declared or discovered.
func (t *Transceiver) Devices() []*device.Device {
	return t.registry.All()
}

// Device returns the device with the given id.
func (t *Transceiver) Device(id int) (*device.Device, bool) {
	return t.registry.ByID(id)
}

// LocalAddr returns the listener address, or nil before Start.
func (t *Transceiver) LocalAddr() net.Addr {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.LocalAddr()
}

// Send writes a raw control message to address.
func (t *Transceiver) Send(ctx context.Context, address, message string) error {
	t.connMu.RLock()
	s := t.sender
	t.connMu.RUnlock()
	if s == nil || t.isClosed() {
		return ErrNotStarted
	}
	if err := s.Send(ctx, address, message); err != nil {
		t.sendFailures.Add(1)
		return err
	}
	return nil
}

// sendControl sends from the receive path, where failures are logged only.
func (t *Transceiver) sendControl(address, message string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.SendTimeout)
	defer cancel()
	if err := t.Send(ctx, address, message); err != nil {
		t.log().Warn("send failed", "address", address, "message", message, "error", err)
		return false
	}
	return true
}

// SendHaptics sends a vibration command to the device with the given id.
func (t *Transceiver) SendHaptics(ctx context.Context, id int, h protocol.Haptics) error {
	msg, err := h.Encode()
	if err != nil {
		return err
	}
	d, ok := t.registry.ByID(id)
	if !ok {
		return fmt.Errorf("%w: id %d", device.ErrNotFound, id)
	}
	addr := d.Address()
	if addr == "" {
		return fmt.Errorf("%w: id %d", ErrNoAddress, id)
	}
	if err := t.Send(ctx, addr, msg); err != nil {
		return err
	}
	t.log().Debug("haptics sent", "device_id", id, "effect", h.Effect)
	return nil
}

// Stats returns current operational statistics.
func (t *Transceiver) Stats() Stats {
	var last time.Time
	if ts := t.lastActivity.Load(); ts != 0 {
		last = time.Unix(0, ts)
	}
	return Stats{
		DatagramsReceived: t.datagramsRx.Load(),
		DecodeFailures:    t.decodeFailures.Load(),
		WhoAreYouSent:     t.whoAreYouTx.Load(),
		HeartbeatsSent:    t.heartbeatsTx.Load(),
		SendFailures:      t.sendFailures.Load(),
		Registrations:     t.registrations.Load(),
		Conflicts:         t.conflicts.Load(),
		CreationsDropped:  t.creationsDropped.Load(),
		LastActivity:      last,
		Devices:           t.registry.Len(),
		Listening:         t.LocalAddr() != nil && !t.isClosed(),
	}
}

// HealthCheck reports whether the listener is open.
func (t *Transceiver) HealthCheck(_ context.Context) error {
	if t.LocalAddr() == nil || t.isClosed() {
		return ErrNotStarted
	}
	return nil
}

func (t *Transceiver) isClosed() bool {
	select {
	case <-t.done.Done():
		return true
	default:
		return false
	}
}

// Close stops the receive goroutine and closes both sockets.
// Safe to call multiple times.
func (t *Transceiver) Close() error {
	t.done.Close()

	t.connMu.Lock()
	conn, s := t.conn, t.sender
	t.connMu.Unlock()

	var errs []error
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	t.wg.Wait()
	if s != nil {
		if err := s.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
