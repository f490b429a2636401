package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/geom"
	"github.com/google/xdtk/internal/infrastructure/mqtt"
	"github.com/google/xdtk/internal/protocol"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakeClient struct {
	mu         sync.Mutex
	published  []published
	handlers   map[string]mqtt.MessageHandler
	publishErr error
	subErr     error
	unsubbed   []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, published{topic, payload, qos, retained})
	return nil
}

func (c *fakeClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subErr != nil {
		return c.subErr
	}
	c.handlers[topic] = handler
	return nil
}

func (c *fakeClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, topic)
	c.unsubbed = append(c.unsubbed, topic)
	return nil
}

func (c *fakeClient) handler(topic string) mqtt.MessageHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[topic]
}

func (c *fakeClient) messages() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.published...)
}

type fakeHaptics struct {
	mu    sync.Mutex
	calls []hapticsCall
	err   error
}

type hapticsCall struct {
	id int
	h  protocol.Haptics
}

func (f *fakeHaptics) SendHaptics(_ context.Context, id int, h protocol.Haptics) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, hapticsCall{id, h})
	return nil
}

// runBridge starts Run and returns a stop func that cancels it and waits.
func runBridge(t *testing.T, b *Bridge) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	return func() {
		t.Helper()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run() did not return after cancel")
		}
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{name: "no client", opts: Options{}},
		{name: "bad qos", opts: Options{Client: newFakeClient(), QoS: 3}, wantErr: mqtt.ErrInvalidQoS},
		{name: "bad format", opts: Options{Client: newFakeClient(), Format: "xml"}, wantErr: ErrUnknownFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if err == nil {
				t.Fatal("New() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBridge_PublishesEventsOnShutdown(t *testing.T) {
	client := newFakeClient()
	b, err := New(Options{Client: client, QoS: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	b.Notify(device.TouchDown{Device: 2, Slot: 0, Position: geom.Vec2{X: 0.1, Y: 0.2}})
	b.Notify(device.PinchEnd{Device: 2, Span: 0.4})
	runBridge(t, b)()

	msgs := client.messages()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	if msgs[0].topic != "xdtk/event/2/touch_down" || msgs[1].topic != "xdtk/event/2/pinch_end" {
		t.Errorf("topics = %q, %q", msgs[0].topic, msgs[1].topic)
	}
	if msgs[0].qos != 1 || msgs[0].retained {
		t.Errorf("qos/retained = %d/%v, want 1/false", msgs[0].qos, msgs[0].retained)
	}

	var rec device.EventRecord
	if err := json.Unmarshal(msgs[0].payload, &rec); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if rec.Slot == nil || *rec.Slot != 0 || rec.Position == nil || rec.Position.Y != 0.2 {
		t.Errorf("decoded record = %+v", rec)
	}
	if rec.Span != nil {
		t.Error("touch_down payload should not carry span")
	}

	if got := b.Stats(); got.Published != 2 || got.Queued != 0 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestBridge_CBORPayload(t *testing.T) {
	client := newFakeClient()
	b, err := New(Options{Client: client, Format: FormatCBOR})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b.Notify(device.Tap{Device: 1, Slot: 3, Position: geom.Vec2{X: 1, Y: 2}, Count: 1})
	runBridge(t, b)()

	msgs := client.messages()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	var rec device.EventRecord
	if err := cbor.Unmarshal(msgs[0].payload, &rec); err != nil {
		t.Fatalf("payload is not CBOR: %v", err)
	}
	if rec.Kind != device.KindTap || rec.Count == nil || *rec.Count != 1 {
		t.Errorf("decoded record = %+v", rec)
	}
}

func TestBridge_NotifyDropsWhenFull(t *testing.T) {
	b, err := New(Options{Client: newFakeClient(), QueueSize: 2})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for n := 0; n < 5; n++ {
		b.Notify(device.Fling{Device: 0})
	}
	if got := b.Stats(); got.Dropped != 3 || got.Queued != 2 {
		t.Errorf("Stats() = %+v, want 3 dropped and 2 queued", got)
	}
}

func TestBridge_PublishErrorIsCounted(t *testing.T) {
	client := newFakeClient()
	client.publishErr = mqtt.ErrNotConnected
	b, err := New(Options{Client: client})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b.Notify(device.Fling{Device: 0})
	runBridge(t, b)()

	if got := b.Stats(); got.PublishErrors != 1 || got.Published != 0 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestBridge_HapticsCommands(t *testing.T) {
	client := newFakeClient()
	haptics := &fakeHaptics{}
	b, err := New(Options{Client: client, Haptics: haptics})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := runBridge(t, b)

	topic := mqtt.Topics{}.AllHapticsCommands()
	var handler mqtt.MessageHandler
	deadline := time.Now().Add(2 * time.Second)
	for handler == nil && time.Now().Before(deadline) {
		handler = client.handler(topic)
		time.Sleep(time.Millisecond)
	}
	if handler == nil {
		t.Fatalf("no subscription on %q", topic)
	}

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr bool
	}{
		{name: "click", topic: "xdtk/command/haptics/2", payload: `{"effect":"click"}`},
		{name: "oneshot upper case", topic: "xdtk/command/haptics/0", payload: `{"effect":"ONESHOT","millis":100,"amplitude":128}`},
		{name: "bad topic", topic: "xdtk/command/haptics/x", payload: `{"effect":"click"}`, wantErr: true},
		{name: "not json", topic: "xdtk/command/haptics/2", payload: `click`, wantErr: true},
		{name: "unknown effect", topic: "xdtk/command/haptics/2", payload: `{"effect":"buzz"}`, wantErr: true},
		{name: "oneshot without millis", topic: "xdtk/command/haptics/2", payload: `{"effect":"oneshot"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := handler(tt.topic, []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("handler() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	stop()

	if len(haptics.calls) != 2 {
		t.Fatalf("SendHaptics called %d times, want 2", len(haptics.calls))
	}
	want := hapticsCall{0, protocol.Haptics{Effect: protocol.HapticOneShot, Millis: 100, Amplitude: 128}}
	if haptics.calls[1] != want {
		t.Errorf("second call = %+v, want %+v", haptics.calls[1], want)
	}
	if got := b.Stats(); got.Commands != 6 || got.CommandErrors != 4 {
		t.Errorf("Stats() = %+v", got)
	}
	if len(client.unsubbed) != 1 {
		t.Errorf("unsubscribed %v, want the haptics wildcard", client.unsubbed)
	}
}

func TestBridge_HapticsSendFailure(t *testing.T) {
	client := newFakeClient()
	sendErr := errors.New("device not found")
	b, err := New(Options{Client: client, Haptics: &fakeHaptics{err: sendErr}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.handleHaptics("xdtk/command/haptics/9", []byte(`{"effect":"tick"}`)); !errors.Is(err, sendErr) {
		t.Errorf("handleHaptics() error = %v, want %v", err, sendErr)
	}
}

func TestBridge_RunSubscribeFailure(t *testing.T) {
	client := newFakeClient()
	client.subErr = mqtt.ErrNotConnected
	b, err := New(Options{Client: client, Haptics: &fakeHaptics{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := b.Run(context.Background()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Run() error = %v, want ErrNotConnected", err)
	}
}

func TestBridge_NoHapticsSkipsSubscription(t *testing.T) {
	client := newFakeClient()
	b, err := New(Options{Client: client})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runBridge(t, b)()
	if len(client.handlers) != 0 || len(client.unsubbed) != 0 {
		t.Errorf("handlers = %v, unsubbed = %v", client.handlers, client.unsubbed)
	}
}
