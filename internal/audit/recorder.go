package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/xdtk/internal/transceiver"
)

const (
	defaultQueueSize = 64
	writeTimeout     = 5 * time.Second
)

// Logger defines the logging interface used by the Recorder.
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

// Recorder writes transceiver registrations to a Repository off the
// receive path. Record never blocks; when the queue is full the
// registration is dropped and counted.
type Recorder struct {
	repo      Repository
	sessionID string
	queue     chan transceiver.Registration

	logger   Logger
	loggerMu sync.RWMutex

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewRecorder creates a recorder tagging rows with sessionID. A
// non-positive queueSize uses the default.
func NewRecorder(repo Repository, sessionID string, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Recorder{
		repo:      repo,
		sessionID: sessionID,
		queue:     make(chan transceiver.Registration, queueSize),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for this recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Recorder) log() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

// SessionID returns the id written with every row.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Record queues reg. It matches the transceiver's OnRegistered callback.
func (r *Recorder) Record(reg transceiver.Registration) {
	select {
	case r.queue <- reg:
	default:
		r.dropped.Add(1)
		r.log().Warn("audit queue full, dropping registration", "device_id", reg.DeviceID, "address", reg.Address)
	}
}

// Run writes queued registrations until ctx is cancelled, then writes
// whatever is still queued and returns.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case reg := <-r.queue:
			r.write(reg)
		case <-ctx.Done():
			r.flush()
			return nil
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case reg := <-r.queue:
			r.write(reg)
		default:
			return
		}
	}
}

func (r *Recorder) write(reg transceiver.Registration) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	row := &Registration{
		SessionID:  r.sessionID,
		DeviceID:   reg.DeviceID,
		Address:    reg.Address,
		Name:       reg.Name,
		Resolution: string(reg.Resolution),
		CreatedAt:  reg.At,
	}
	if err := r.repo.Create(ctx, row); err != nil {
		r.failed.Add(1)
		r.log().Error("recording registration failed", "device_id", reg.DeviceID, "error", err)
		return
	}
	r.written.Add(1)
}

// RecorderStats holds recorder counters.
type RecorderStats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
	Queued  int    `json:"queued"`
}

// Stats returns recorder counters.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Written: r.written.Load(),
		Dropped: r.dropped.Load(),
		Failed:  r.failed.Load(),
		Queued:  len(r.queue),
	}
}
