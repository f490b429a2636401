package transceiver

import (
	"context"
	"errors"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/xdtk/internal/device"
	"github.com/google/xdtk/internal/protocol"
)

type sentMessage struct {
	address string
	message string
}

// fakeSender records outbound datagrams.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Send(_ context.Context, address, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{address: address, message: message})
	return nil
}

func (f *fakeSender) Close() error { return nil }

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeSender) count(message string) int {
	n := 0
	for _, m := range f.messages() {
		if m.message == message {
			n++
		}
	}
	return n
}

func newTestTransceiver(t *testing.T, decls ...Declaration) (*Transceiver, *fakeSender) {
	t.Helper()
	tr, err := New(Config{}, device.NewRegistry(), decls, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fs := &fakeSender{}
	tr.SetSender(fs)
	return tr, fs
}

const pixelInfo = "100,DEVICE_INFO,Pixel7,1080,2400,3.0,6.7"

func TestHandleDatagram_UnknownSenderGetsWhoAreYou(t *testing.T) {
	tr, fs := newTestTransceiver(t)

	tr.HandleDatagram("10.0.0.5", "1,ACCELEROMETER,0,0,9.8")

	msgs := fs.messages()
	if len(msgs) != 1 || msgs[0] != (sentMessage{"10.0.0.5", protocol.WhoAreYou}) {
		t.Fatalf("sent = %+v, want one WHOAREYOU", msgs)
	}
	if tr.Registry().IsRegistered("10.0.0.5") {
		t.Error("sender registered without DEVICE_INFO")
	}
	if tr.Registry().Len() != 0 {
		t.Errorf("Len() = %d, want 0", tr.Registry().Len())
	}
}

func TestHandleDatagram_NewDeviceCreatedOnTick(t *testing.T) {
	tr, fs := newTestTransceiver(t)

	tr.HandleDatagram("10.0.0.5", pixelInfo)

	if tr.Registry().Len() != 0 {
		t.Fatal("device created on the receive path")
	}
	if tr.Registry().IsRegistered("10.0.0.5") {
		t.Fatal("address registered before the tick")
	}

	if n := tr.Update(); n != 1 {
		t.Fatalf("Update() created %d devices, want 1", n)
	}

	d, ok := tr.Registry().ByAddress("10.0.0.5")
	if !ok {
		t.Fatal("device not bound to address")
	}
	s := d.Snapshot()
	if s.ID != 0 {
		t.Errorf("ID = %d, want 0", s.ID)
	}
	if s.Name != "Pixel7" || !s.ReceivedInfo {
		t.Errorf("Name = %q ReceivedInfo = %v", s.Name, s.ReceivedInfo)
	}
	if s.SizePx.X != 1080 || s.SizePx.Y != 2400 {
		t.Errorf("SizePx = %+v", s.SizePx)
	}
	if math.Abs(s.SizeM.X-0.0762) > 1e-12 || math.Abs(s.SizeM.Y-0.17018) > 1e-12 {
		t.Errorf("SizeM = %+v, want (0.0762, 0.17018)", s.SizeM)
	}
	if got, _ := tr.Registry().ByID(0); got != d {
		t.Error("ByID(0) does not return the created device")
	}
	if fs.count(protocol.Heartbeat) != 1 {
		t.Errorf("heartbeats = %d, want 1", fs.count(protocol.Heartbeat))
	}
	if tr.Update() != 0 {
		t.Error("second Update() created another device")
	}
}

func TestUpdate_QueuedInfoAppliedBeforeAddressRoutes(t *testing.T) {
	tr, fs := newTestTransceiver(t)
	tr.HandleDatagram("10.0.0.5", pixelInfo)

	// A newer DEVICE_INFO arriving the moment the address becomes routable
	// must not be overwritten by the queued one.
	var atRegistration device.State
	tr.SetOnRegistered(func(reg Registration) {
		d, ok := tr.Registry().ByAddress(reg.Address)
		if !ok {
			t.Error("registered address has no device")
			return
		}
		atRegistration = d.Snapshot()
		tr.HandleDatagram(reg.Address, "200,DEVICE_INFO,Pixel8,1080,2424,2.8,6.2")
	})

	if n := tr.Update(); n != 1 {
		t.Fatalf("Update() created %d devices, want 1", n)
	}
	if atRegistration.Name != "Pixel7" || !atRegistration.ReceivedInfo {
		t.Errorf("at registration Name = %q ReceivedInfo = %v, want queued info applied", atRegistration.Name, atRegistration.ReceivedInfo)
	}

	d, _ := tr.Registry().ByAddress("10.0.0.5")
	s := d.Snapshot()
	if s.Name != "Pixel8" || s.SizePx.Y != 2424 {
		t.Errorf("Name = %q SizePx = %+v, want newer DEVICE_INFO to win", s.Name, s.SizePx)
	}
	if got := fs.count(protocol.Heartbeat); got != 2 {
		t.Errorf("heartbeats = %d, want 2", got)
	}
}

func TestHandleDatagram_PredeclaredIDBindsAddress(t *testing.T) {
	tr, _ := newTestTransceiver(t, Declaration{Name: "tablet", ID: 2, Address: ""})

	tr.HandleDatagram("10.0.0.9", pixelInfo)

	d, ok := tr.Registry().ByAddress("10.0.0.9")
	if !ok {
		t.Fatal("address not bound on the receive path")
	}
	if d.ID() != 2 {
		t.Errorf("ID = %d, want 2", d.ID())
	}
	if tr.Registry().Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Registry().Len())
	}
	if tr.Update() != 0 {
		t.Error("Update() created a device for a pre-declared match")
	}
	if !d.Snapshot().ReceivedInfo {
		t.Error("DEVICE_INFO not applied to the pre-declared device")
	}
}

func TestHandleDatagram_ResolutionOrder(t *testing.T) {
	tests := []struct {
		name     string
		decls    []Declaration
		sender   string
		wantName string
		wantID   int
		wantHow  Resolution
	}{
		{
			name: "address beats id-only and unbound",
			decls: []Declaration{
				{Name: "unbound", ID: device.NoID},
				{Name: "id-only", ID: 0},
				{Name: "by-address", Address: "10.0.0.7", ID: device.NoID},
			},
			sender:   "10.0.0.7",
			wantName: "by-address",
			wantID:   1,
			wantHow:  ResolvedByAddress,
		},
		{
			name: "address with configured id keeps it",
			decls: []Declaration{
				{Name: "by-address", Address: "10.0.0.7", ID: 5},
			},
			sender:   "10.0.0.7",
			wantName: "by-address",
			wantID:   5,
			wantHow:  ResolvedByAddress,
		},
		{
			name: "id-only beats unbound",
			decls: []Declaration{
				{Name: "unbound", ID: device.NoID},
				{Name: "id-only", ID: 3},
				{Name: "elsewhere", Address: "10.0.0.1", ID: device.NoID},
			},
			sender:   "10.0.0.7",
			wantName: "id-only",
			wantID:   3,
			wantHow:  ResolvedByID,
		},
		{
			name: "unbound gets lowest free id",
			decls: []Declaration{
				{Name: "zero", Address: "10.0.0.1", ID: 0},
				{Name: "unbound", ID: device.NoID},
				{Name: "two", Address: "10.0.0.2", ID: 2},
			},
			sender:   "10.0.0.7",
			wantName: "unbound",
			wantID:   1,
			wantHow:  ResolvedUnbound,
		},
		{
			name: "first id-only in declaration order",
			decls: []Declaration{
				{Name: "first", ID: 4},
				{Name: "second", ID: 1},
			},
			sender:   "10.0.0.7",
			wantName: "first",
			wantID:   4,
			wantHow:  ResolvedByID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _ := newTestTransceiver(t, tt.decls...)
			var got []Registration
			tr.SetOnRegistered(func(r Registration) { got = append(got, r) })

			tr.HandleDatagram(tt.sender, pixelInfo)

			d, ok := tr.Registry().ByAddress(tt.sender)
			if !ok || !tr.Registry().IsRegistered(tt.sender) {
				t.Fatal("sender not registered")
			}
			// The configured name is replaced by the reported one once
			// DEVICE_INFO is applied, so identify the device by registry order.
			idx := -1
			for i, x := range tr.Registry().All() {
				if x == d {
					idx = i
				}
			}
			if idx < 0 || tt.decls[idx].Name != tt.wantName {
				t.Errorf("bound declaration index %d, want %q", idx, tt.wantName)
			}
			if d.ID() != tt.wantID {
				t.Errorf("ID = %d, want %d", d.ID(), tt.wantID)
			}
			if len(got) != 1 || got[0].Resolution != tt.wantHow || got[0].Name != "Pixel7" {
				t.Errorf("registrations = %+v", got)
			}
		})
	}
}

func TestHandleDatagram_RepeatDeviceInfoIsUpdate(t *testing.T) {
	tr, fs := newTestTransceiver(t)
	var regs int
	tr.SetOnRegistered(func(Registration) { regs++ })

	tr.HandleDatagram("10.0.0.5", pixelInfo)
	tr.Update()
	tr.HandleDatagram("10.0.0.5", "200,DEVICE_INFO,Pixel7 Pro,1440,3120,2.8,6.1")
	tr.Update()

	if regs != 1 {
		t.Errorf("registrations = %d, want 1", regs)
	}
	if tr.Registry().Len() != 1 {
		t.Errorf("Len() = %d, want 1", tr.Registry().Len())
	}
	d, _ := tr.Registry().ByAddress("10.0.0.5")
	if s := d.Snapshot(); s.Name != "Pixel7 Pro" || s.SizePx.X != 1440 {
		t.Errorf("second DEVICE_INFO not applied: %+v", s)
	}
	if fs.count(protocol.Heartbeat) != 2 {
		t.Errorf("heartbeats = %d, want 2", fs.count(protocol.Heartbeat))
	}
}

func TestHandleDatagram_PendingCreationsGetDistinctIDs(t *testing.T) {
	tr, _ := newTestTransceiver(t, Declaration{Name: "fixed", Address: "10.0.0.1", ID: 1})

	tr.HandleDatagram("10.0.0.5", pixelInfo)
	tr.HandleDatagram("10.0.0.5", pixelInfo) // already pending
	tr.HandleDatagram("10.0.0.6", pixelInfo)
	tr.HandleDatagram("10.0.0.7", pixelInfo)

	if n := tr.Update(); n != 3 {
		t.Fatalf("Update() created %d, want 3", n)
	}
	want := map[string]int{"10.0.0.5": 0, "10.0.0.6": 2, "10.0.0.7": 3}
	for addr, id := range want {
		d, ok := tr.Registry().ByAddress(addr)
		if !ok {
			t.Errorf("%s not registered", addr)
			continue
		}
		if d.ID() != id {
			t.Errorf("%s id = %d, want %d", addr, d.ID(), id)
		}
	}
}

func TestHandleDatagram_CreationQueueFull(t *testing.T) {
	tr, err := New(Config{CreationQueueSize: 1}, device.NewRegistry(), nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tr.SetSender(&fakeSender{})

	tr.HandleDatagram("10.0.0.5", pixelInfo)
	tr.HandleDatagram("10.0.0.6", pixelInfo)

	if got := tr.Stats().CreationsDropped; got != 1 {
		t.Errorf("CreationsDropped = %d, want 1", got)
	}
	tr.Update()
	if tr.Registry().IsRegistered("10.0.0.6") {
		t.Error("dropped sender was registered")
	}

	// A dropped request reserves nothing; the next DEVICE_INFO retries.
	tr.HandleDatagram("10.0.0.6", pixelInfo)
	tr.Update()
	d, ok := tr.Registry().ByAddress("10.0.0.6")
	if !ok || d.ID() != 1 {
		t.Errorf("retry not registered with id 1: ok=%v", ok)
	}
}

func TestHandleDatagram_MalformedDeviceInfoNotRegistered(t *testing.T) {
	tr, fs := newTestTransceiver(t, Declaration{Name: "slot", ID: device.NoID})

	tr.HandleDatagram("10.0.0.5", "100,DEVICE_INFO,Pixel7,wide,2400,3.0,6.7")

	if tr.Registry().IsRegistered("10.0.0.5") {
		t.Error("malformed DEVICE_INFO bound an address")
	}
	if len(fs.messages()) != 0 {
		t.Errorf("sent %+v, want nothing", fs.messages())
	}
	if tr.Stats().DecodeFailures != 1 {
		t.Errorf("DecodeFailures = %d, want 1", tr.Stats().DecodeFailures)
	}
}

func TestHandleDatagram_RegisteredRouting(t *testing.T) {
	tests := []struct {
		name          string
		line          string
		wantHeartbeat bool
		wantEvents    int
	}{
		{name: "touch", line: "1,TOUCH_DOWN,0,1,2,0.1,0.2,0,0,1", wantHeartbeat: true, wantEvents: 1},
		{name: "sensor", line: "1,GRAVITY,0,9.8,0", wantHeartbeat: true, wantEvents: 0},
		{name: "unknown orientation token", line: "1,DEVICE_ORIENTATION,TILTED", wantHeartbeat: true, wantEvents: 0},
		{name: "slot out of range", line: "50,TOUCH_DOWN,5,1,2,0.1,0.2,0,0,1", wantHeartbeat: false, wantEvents: 0},
		{name: "bad number", line: "1,GRAVITY,0,nine,0", wantHeartbeat: false, wantEvents: 0},
		{name: "NaN scalar", line: "1,LIGHT,NaN", wantHeartbeat: false, wantEvents: 0},
		{name: "infinite touch delta", line: "1,TOUCH_MOVE,0,1,2,0.1,0.2,Inf,0,1", wantHeartbeat: false, wantEvents: 0},
		{name: "unknown header", line: "1,BAROMETER,1013", wantHeartbeat: false, wantEvents: 0},
		{name: "garbage", line: "hello", wantHeartbeat: false, wantEvents: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, fs := newTestTransceiver(t, Declaration{Name: "phone", Address: "10.0.0.5", ID: 0})
			tr.HandleDatagram("10.0.0.5", pixelInfo)
			d, _ := tr.Registry().ByAddress("10.0.0.5")
			before := fs.count(protocol.Heartbeat)
			snap := d.Snapshot()

			tr.HandleDatagram("10.0.0.5", tt.line)

			gotHeartbeat := fs.count(protocol.Heartbeat) > before
			if gotHeartbeat != tt.wantHeartbeat {
				t.Errorf("heartbeat sent = %v, want %v", gotHeartbeat, tt.wantHeartbeat)
			}
			if got := len(d.Drain()); got != tt.wantEvents {
				t.Errorf("events = %d, want %d", got, tt.wantEvents)
			}
			if !tt.wantHeartbeat {
				after := d.Snapshot()
				after.LastSeen = snap.LastSeen
				if after != snap {
					t.Error("rejected datagram changed device state")
				}
			}
			if fs.count(protocol.WhoAreYou) != 0 {
				t.Error("registered sender was sent WHOAREYOU")
			}
		})
	}
}

func TestHandleDatagram_SendFailureDoesNotStopRouting(t *testing.T) {
	tr, fs := newTestTransceiver(t, Declaration{Name: "phone", Address: "10.0.0.5", ID: 0})
	fs.err = errors.New("network unreachable")

	tr.HandleDatagram("10.0.0.5", pixelInfo)
	tr.HandleDatagram("10.0.0.5", "1,TOUCH_DOWN,0,1,2,0,0,0,0,1")

	d, _ := tr.Registry().ByAddress("10.0.0.5")
	if d.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", d.Pending())
	}
	if got := tr.Stats().SendFailures; got != 2 {
		t.Errorf("SendFailures = %d, want 2", got)
	}
}

func TestSendHaptics(t *testing.T) {
	tr, fs := newTestTransceiver(t,
		Declaration{Name: "phone", Address: "10.0.0.5", ID: 0},
		Declaration{Name: "waiting", ID: 1},
	)
	ctx := context.Background()

	if err := tr.SendHaptics(ctx, 0, protocol.Haptics{Effect: protocol.HapticOneShot, Millis: 50, Amplitude: 200}); err != nil {
		t.Fatalf("SendHaptics() error = %v", err)
	}
	msgs := fs.messages()
	if len(msgs) != 1 || msgs[0] != (sentMessage{"10.0.0.5", "HAPTICS_ONESHOT,50,200"}) {
		t.Errorf("sent = %+v", msgs)
	}

	if err := tr.SendHaptics(ctx, 9, protocol.Haptics{Effect: protocol.HapticClick}); !errors.Is(err, device.ErrNotFound) {
		t.Errorf("unknown id error = %v, want ErrNotFound", err)
	}
	if err := tr.SendHaptics(ctx, 1, protocol.Haptics{Effect: protocol.HapticClick}); !errors.Is(err, ErrNoAddress) {
		t.Errorf("no address error = %v, want ErrNoAddress", err)
	}
	if err := tr.SendHaptics(ctx, 0, protocol.Haptics{Effect: "buzz"}); !errors.Is(err, protocol.ErrUnknownEffect) {
		t.Errorf("bad effect error = %v, want ErrUnknownEffect", err)
	}
}

func TestCheckExpiry(t *testing.T) {
	tr, _ := newTestTransceiver(t, Declaration{Name: "phone", Address: "10.0.0.5", ID: 0})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	tr.now = func() time.Time { return now }

	tr.HandleDatagram("10.0.0.5", pixelInfo)
	d, _ := tr.Registry().ByAddress("10.0.0.5")

	now = base.Add(time.Hour)
	if n := tr.CheckExpiry(); n != 0 {
		t.Errorf("default policy marked %d stale", n)
	}

	tr.SetExpiryPolicy(PolicyFor(10 * time.Second))
	now = base.Add(5 * time.Second)
	if n := tr.CheckExpiry(); n != 0 {
		t.Errorf("marked %d stale within timeout", n)
	}
	now = base.Add(11 * time.Second)
	if n := tr.CheckExpiry(); n != 1 {
		t.Errorf("CheckExpiry() = %d, want 1", n)
	}
	if !d.Snapshot().Stale {
		t.Error("device not flagged stale")
	}
	if _, ok := tr.Registry().ByID(0); !ok {
		t.Error("stale device removed from registry")
	}

	tr.HandleDatagram("10.0.0.5", "1,LIGHT,10")
	if d.Snapshot().Stale {
		t.Error("stale flag not cleared by traffic")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   []Declaration
		want []Declaration
	}{
		{
			name: "invalid address dropped",
			in:   []Declaration{{Name: "a", Address: "10.0.0.300", ID: 1}},
			want: []Declaration{{Name: "a", Address: "", ID: 1}},
		},
		{
			name: "hostname dropped",
			in:   []Declaration{{Name: "a", Address: "phone.local", ID: device.NoID}},
			want: []Declaration{{Name: "a", Address: "", ID: device.NoID}},
		},
		{
			name: "negative id dropped",
			in:   []Declaration{{Name: "a", Address: "10.0.0.1", ID: -5}},
			want: []Declaration{{Name: "a", Address: "10.0.0.1", ID: device.NoID}},
		},
		{
			name: "mapped address canonicalised",
			in:   []Declaration{{Name: "a", Address: "::ffff:10.0.0.1", ID: device.NoID}},
			want: []Declaration{{Name: "a", Address: "10.0.0.1", ID: device.NoID}},
		},
		{
			name: "duplicates cleared from later declarations",
			in: []Declaration{
				{Name: "a", Address: "10.0.0.1", ID: 0},
				{Name: "b", Address: "10.0.0.1", ID: 0},
				{Name: "c", Address: "10.0.0.2", ID: 0},
			},
			want: []Declaration{
				{Name: "a", Address: "10.0.0.1", ID: 0},
				{Name: "b", Address: "", ID: device.NoID},
				{Name: "c", Address: "10.0.0.2", ID: device.NoID},
			},
		},
		{
			name: "invalid entries do not claim values",
			in: []Declaration{
				{Name: "a", Address: "bogus", ID: -3},
				{Name: "b", Address: "10.0.0.1", ID: device.NoID},
			},
			want: []Declaration{
				{Name: "a", Address: "", ID: device.NoID},
				{Name: "b", Address: "10.0.0.1", ID: device.NoID},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in, nil)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNew_SanitisesBeforeRegistry(t *testing.T) {
	tr, _ := newTestTransceiver(t,
		Declaration{Name: "a", Address: "10.0.0.1", ID: 3},
		Declaration{Name: "b", Address: "10.0.0.1", ID: 3},
	)
	if tr.Registry().Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (duplicates keep the device)", tr.Registry().Len())
	}
	if d, _ := tr.Registry().ByID(3); d.Name() != "a" {
		t.Errorf("ByID(3) = %q, want a", d.Name())
	}
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func TestStart_ReceivesOverUDP(t *testing.T) {
	tr, err := New(Config{ListenHost: "127.0.0.1", ListenPort: freeUDPPort(t), SenderPort: 1}, device.NewRegistry(), nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	fs := &fakeSender{}
	tr.SetSender(fs)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer tr.Close()

	if err := tr.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client, err := net.DialUDP("udp", nil, tr.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("DialUDP() error = %v", err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("not a message")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := client.Write([]byte(pixelInfo)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for tr.Stats().DatagramsReceived < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("received %d datagrams, want 2", tr.Stats().DatagramsReceived)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if tr.Update() != 1 {
		t.Fatal("no device created from UDP DEVICE_INFO")
	}
	if _, ok := tr.Registry().ByAddress("127.0.0.1"); !ok {
		t.Error("device not bound to 127.0.0.1")
	}
	if tr.Stats().DecodeFailures != 1 {
		t.Errorf("DecodeFailures = %d, want 1", tr.Stats().DecodeFailures)
	}
}

func TestStart_BindFailure(t *testing.T) {
	busy, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer busy.Close()

	tr, err := New(Config{ListenHost: "127.0.0.1", ListenPort: busy.LocalAddr().(*net.UDPAddr).Port}, device.NewRegistry(), nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tr.SetSender(&fakeSender{})

	if err := tr.Start(context.Background()); !errors.Is(err, ErrBindFailed) {
		t.Errorf("Start() error = %v, want ErrBindFailed", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	tr, _ := newTestTransceiver(t)
	if err := tr.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := tr.Send(context.Background(), "10.0.0.1", protocol.Heartbeat); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Send() after Close error = %v, want ErrNotStarted", err)
	}
}
