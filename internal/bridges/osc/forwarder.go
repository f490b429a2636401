package osc

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hypebeast/go-osc/osc"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/geom"
	"github.com/google/xdtk/internal/infrastructure/config"
)

// DefaultPrefix is the address prefix used when none is configured.
const DefaultPrefix = "/xdtk"

// ErrDisabled is returned by New when OSC forwarding is turned off.
var ErrDisabled = errors.New("osc: forwarding disabled")

// Sender delivers one OSC packet. *osc.Client satisfies it.
type Sender interface {
	Send(packet osc.Packet) error
}

// Logger defines the logging interface used by the Forwarder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Stats holds forwarder counters.
type Stats struct {
	Sent   uint64 `json:"sent"`
	Failed uint64 `json:"failed"`
	Target string `json:"target,omitempty"`
}

// Forwarder is a dispatch listener that sends every event over OSC.
type Forwarder struct {
	sender Sender
	prefix string
	target string

	logger   Logger
	loggerMu sync.RWMutex

	sent   atomic.Uint64
	failed atomic.Uint64
}

// New creates a forwarder that sends UDP packets to cfg.Host:cfg.Port.
func New(cfg config.OSCConfig) (*Forwarder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if cfg.Host == "" || cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("osc: invalid target %s:%d", cfg.Host, cfg.Port)
	}
	f := NewWithSender(osc.NewClient(cfg.Host, cfg.Port), cfg.Prefix)
	f.target = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	return f, nil
}

// NewWithSender creates a forwarder around an existing sender.
func NewWithSender(s Sender, prefix string) *Forwarder {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return &Forwarder{sender: s, prefix: prefix, logger: noopLogger{}}
}

// SetLogger sets the logger for this forwarder.
func (f *Forwarder) SetLogger(logger Logger) {
	f.loggerMu.Lock()
	f.logger = logger
	f.loggerMu.Unlock()
}

func (f *Forwarder) log() Logger {
	f.loggerMu.RLock()
	defer f.loggerMu.RUnlock()
	return f.logger
}

// Notify sends ev. Failures are counted and logged; they never reach
// the dispatcher.
func (f *Forwarder) Notify(ev device.Event) {
	msg := f.Message(ev)
	if err := f.sender.Send(msg); err != nil {
		f.failed.Add(1)
		f.log().Warn("osc send failed", "address", msg.Address, "error", err)
		return
	}
	f.sent.Add(1)
}

// Message builds the OSC message for ev.
func (f *Forwarder) Message(ev device.Event) *osc.Message {
	rec := device.Flatten(ev)
	msg := osc.NewMessage(f.prefix + "/" + strconv.Itoa(rec.DeviceID) + "/" + string(rec.Kind))

	if rec.Slot != nil {
		msg.Append(int32(*rec.Slot))
	}
	for _, v := range []*geom.Vec2{rec.Position, rec.Delta, rec.Velocity} {
		if v != nil {
			msg.Append(float32(v.X))
			msg.Append(float32(v.Y))
		}
	}
	if rec.Span != nil {
		msg.Append(float32(*rec.Span))
	}
	if rec.Count != nil {
		msg.Append(int32(*rec.Count))
	}
	return msg
}

// Stats returns current forwarder counters.
func (f *Forwarder) Stats() Stats {
	return Stats{
		Sent:   f.sent.Load(),
		Failed: f.failed.Load(),
		Target: f.target,
	}
}
