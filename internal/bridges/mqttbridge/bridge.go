package mqttbridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/infrastructure/mqtt"
	"github.com/google/xdtk/internal/protocol"
)

const (
	// DefaultQueueSize bounds events waiting to be published.
	DefaultQueueSize = 1024

	// commandTimeout bounds one haptics send to a device.
	commandTimeout = 5 * time.Second
)

// MQTTClient is the subset of *mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// HapticsSender delivers a haptics command to a device by id.
// *transceiver.Transceiver satisfies it.
type HapticsSender interface {
	SendHaptics(ctx context.Context, id int, h protocol.Haptics) error
}

// Logger defines the logging interface used by the Bridge.
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

// Options configures a Bridge.
type Options struct {
	Client MQTTClient

	// Haptics receives decoded commands. Nil disables the command subscription.
	Haptics HapticsSender

	QoS       byte
	Format    string
	QueueSize int
}

// Stats holds bridge counters.
type Stats struct {
	Published      uint64 `json:"published"`
	PublishErrors  uint64 `json:"publish_errors"`
	Dropped        uint64 `json:"dropped"`
	Queued         int    `json:"queued"`
	Commands       uint64 `json:"commands"`
	CommandErrors  uint64 `json:"command_errors"`
	EncodeFailures uint64 `json:"encode_failures"`
}

// Bridge publishes device events and accepts haptics commands.
//
// Thread Safety: Notify is safe to call from any goroutine; Run must be
// called once.
type Bridge struct {
	client  MQTTClient
	haptics HapticsSender
	qos     byte
	encode  Encoder
	topics  mqtt.Topics
	queue   chan device.EventRecord

	logger   Logger
	loggerMu sync.RWMutex

	published      atomic.Uint64
	publishErrors  atomic.Uint64
	dropped        atomic.Uint64
	commands       atomic.Uint64
	commandErrors  atomic.Uint64
	encodeFailures atomic.Uint64
}

// New creates a bridge. Call Run to start publishing.
func New(opts Options) (*Bridge, error) {
	if opts.Client == nil {
		return nil, errors.New("mqttbridge: MQTT client is required")
	}
	if opts.QoS > 2 {
		return nil, fmt.Errorf("%w: %d", mqtt.ErrInvalidQoS, opts.QoS)
	}
	enc, err := EncoderFor(opts.Format)
	if err != nil {
		return nil, err
	}
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Bridge{
		client:  opts.Client,
		haptics: opts.Haptics,
		qos:     opts.QoS,
		encode:  enc,
		queue:   make(chan device.EventRecord, size),
		logger:  noopLogger{},
	}, nil
}

// SetLogger sets the logger for this bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// Notify queues ev for publishing. It never blocks.
func (b *Bridge) Notify(ev device.Event) {
	select {
	case b.queue <- device.Flatten(ev):
	default:
		if b.dropped.Add(1) == 1 {
			b.log().Warn("mqtt event queue full, dropping events")
		}
	}
}

// Run subscribes to haptics commands and publishes queued events until
// ctx is cancelled. Events still queued at cancellation are published
// before Run returns.
func (b *Bridge) Run(ctx context.Context) error {
	if b.haptics != nil {
		if err := b.client.Subscribe(b.topics.AllHapticsCommands(), b.qos, b.handleHaptics); err != nil {
			return fmt.Errorf("subscribing to haptics commands: %w", err)
		}
		defer func() {
			if err := b.client.Unsubscribe(b.topics.AllHapticsCommands()); err != nil {
				b.log().Debug("unsubscribe haptics commands", "error", err)
			}
		}()
	}

	for {
		select {
		case rec := <-b.queue:
			b.publish(rec)
		case <-ctx.Done():
			b.flush()
			return nil
		}
	}
}

func (b *Bridge) flush() {
	for {
		select {
		case rec := <-b.queue:
			b.publish(rec)
		default:
			return
		}
	}
}

func (b *Bridge) publish(rec device.EventRecord) {
	payload, err := b.encode(rec)
	if err != nil {
		b.encodeFailures.Add(1)
		b.log().Error("encoding event", "device_id", rec.DeviceID, "kind", rec.Kind, "error", err)
		return
	}
	topic := b.topics.DeviceEvent(rec.DeviceID, string(rec.Kind))
	if err := b.client.Publish(topic, payload, b.qos, false); err != nil {
		b.publishErrors.Add(1)
		b.log().Warn("publishing event", "topic", topic, "error", err)
		return
	}
	b.published.Add(1)
}

// Stats returns current bridge counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Published:      b.published.Load(),
		PublishErrors:  b.publishErrors.Load(),
		Dropped:        b.dropped.Load(),
		Queued:         len(b.queue),
		Commands:       b.commands.Load(),
		CommandErrors:  b.commandErrors.Load(),
		EncodeFailures: b.encodeFailures.Load(),
	}
}
