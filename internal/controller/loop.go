package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/xdtk/internal/device"
)

// DefaultTickInterval is roughly one frame at 60 Hz.
const DefaultTickInterval = 16 * time.Millisecond

// Transport is the part of the transceiver the loop drives.
type Transport interface {
	Devices() []*device.Device
	Update() int
	CheckExpiry() int
}

// Dispatcher delivers queued events.
type Dispatcher interface {
	Drain(devices []*device.Device) int
}

// Observer receives a snapshot of every device once per tick.
// It runs on the tick goroutine and must not block.
type Observer interface {
	Observe(now time.Time, snapshots []device.State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(now time.Time, snapshots []device.State)

// Observe calls f.
func (f ObserverFunc) Observe(now time.Time, snapshots []device.State) { f(now, snapshots) }

// Logger defines the logging interface used by the Loop.
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

// StepResult summarises one tick.
type StepResult struct {
	Events  int
	Created int
	Stale   int
}

// Stats holds loop counters.
type Stats struct {
	Ticks     uint64        `json:"ticks"`
	Events    uint64        `json:"events"`
	Created   uint64        `json:"created"`
	LastTick  time.Time     `json:"last_tick,omitzero"`
	Interval  time.Duration `json:"interval"`
	Observers int           `json:"observers"`
}

// Loop is the single-threaded application tick loop.
type Loop struct {
	transport  Transport
	dispatcher Dispatcher
	interval   time.Duration

	observers   []Observer
	observersMu sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	now func() time.Time

	ticks    atomic.Uint64
	events   atomic.Uint64
	created  atomic.Uint64
	lastTick atomic.Int64
}

// New creates a loop. A non-positive interval uses DefaultTickInterval.
func New(transport Transport, dispatcher Dispatcher, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Loop{
		transport:  transport,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for this loop.
func (l *Loop) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

func (l *Loop) log() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

// AddObserver registers o to receive per-tick snapshots.
func (l *Loop) AddObserver(o Observer) {
	l.observersMu.Lock()
	l.observers = append(l.observers, o)
	l.observersMu.Unlock()
}

// Step runs one tick: deliver queued events, create pending devices,
// apply the staleness policy, then notify observers.
func (l *Loop) Step() StepResult {
	now := l.now()
	var res StepResult

	res.Events = l.dispatcher.Drain(l.transport.Devices())
	res.Created = l.transport.Update()
	res.Stale = l.transport.CheckExpiry()

	l.observersMu.RLock()
	observers := l.observers
	l.observersMu.RUnlock()
	if len(observers) > 0 {
		devices := l.transport.Devices()
		snapshots := make([]device.State, 0, len(devices))
		for _, d := range devices {
			snapshots = append(snapshots, d.Snapshot())
		}
		for _, o := range observers {
			l.observe(o, now, snapshots)
		}
	}

	l.ticks.Add(1)
	l.events.Add(uint64(res.Events))
	l.created.Add(uint64(res.Created))
	l.lastTick.Store(now.UnixNano())

	if res.Created > 0 || res.Stale > 0 {
		l.log().Debug("tick", "events", res.Events, "created", res.Created, "stale", res.Stale)
	}
	return res
}

func (l *Loop) observe(o Observer, now time.Time, snapshots []device.State) {
	defer func() {
		if r := recover(); r != nil {
			l.log().Error("panic in tick observer", "panic", r)
		}
	}()
	o.Observe(now, snapshots)
}

// Run ticks until ctx is cancelled. It runs one final Step on the way
// out so events queued just before shutdown are still delivered.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log().Info("tick loop started", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			l.Step()
			l.log().Info("tick loop stopped", "ticks", l.ticks.Load())
			return nil
		case <-ticker.C:
			l.Step()
		}
	}
}

// Stats returns current loop counters.
func (l *Loop) Stats() Stats {
	var last time.Time
	if ts := l.lastTick.Load(); ts != 0 {
		last = time.Unix(0, ts)
	}
	l.observersMu.RLock()
	observers := len(l.observers)
	l.observersMu.RUnlock()
	return Stats{
		Ticks:     l.ticks.Load(),
		Events:    l.events.Load(),
		Created:   l.created.Load(),
		LastTick:  last,
		Interval:  l.interval,
		Observers: observers,
	}
}
