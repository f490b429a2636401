package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/google/xdtk/internal/device"
)

// Listener receives drained events.
type Listener interface {
	Notify(ev device.Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ev device.Event)

// Notify calls f(ev).
func (f ListenerFunc) Notify(ev device.Event) { f(ev) }

// Logger defines the logging interface used by the Broadcaster.
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

type subscription struct {
	id       uint64
	name     string
	listener Listener
}

// Stats holds dispatch counters.
type Stats struct {
	Listeners int    `json:"listeners"`
	Events    uint64 `json:"events"`
	Panics    uint64 `json:"panics"`
}

// Broadcaster fans events out to listeners in subscription order.
//
// Thread Safety: Subscribe and the returned cancel func are safe to call
// from any goroutine, including from inside Notify.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64

	logger   Logger
	loggerMu sync.RWMutex

	events atomic.Uint64
	panics atomic.Uint64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{logger: noopLogger{}}
}

// SetLogger sets the logger for this broadcaster.
func (b *Broadcaster) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Broadcaster) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// Subscribe adds l under name and returns a func that removes it.
func (b *Broadcaster) Subscribe(name string, l Listener) (cancel func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, listener: l})
	b.mu.Unlock()

	b.log().Debug("listener subscribed", "listener", name)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			// Copy so a Notify already iterating the old slice is unaffected.
			next := make([]subscription, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			b.subs = append(next, b.subs[i+1:]...)
			return
		}
	}
}

func (b *Broadcaster) snapshot() []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.subs
}

// Notify delivers ev to every listener. A panicking listener is logged
// and skipped; the rest still receive the event.
func (b *Broadcaster) Notify(ev device.Event) {
	b.events.Add(1)
	for _, s := range b.snapshot() {
		b.deliver(s, ev)
	}
}

func (b *Broadcaster) deliver(s subscription, ev device.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			b.log().Error("panic in event listener",
				"listener", s.name,
				"device_id", ev.DeviceID(),
				"kind", ev.Kind(),
				"panic", r,
			)
		}
	}()
	s.listener.Notify(ev)
}

// Drain pops every queued event from devices and delivers them. Events
// from one device are delivered in the order they were queued. It
// returns the number of events delivered.
func (b *Broadcaster) Drain(devices []*device.Device) int {
	n := 0
	for _, d := range devices {
		for _, ev := range d.Drain() {
			b.Notify(ev)
			n++
		}
	}
	return n
}

// Stats returns current dispatch counters.
func (b *Broadcaster) Stats() Stats {
	b.mu.RLock()
	listeners := len(b.subs)
	b.mu.RUnlock()
	return Stats{
		Listeners: listeners,
		Events:    b.events.Load(),
		Panics:    b.panics.Load(),
	}
}
