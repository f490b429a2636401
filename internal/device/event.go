package device

import "github.com/google/xdtk/internal/geom"

// Kind names an Event variant on the wire (MQTT topics, OSC addresses,
// WebSocket payloads).
type Kind string

const (
	KindTouchDown    Kind = "touch_down"
	KindTouchUp      Kind = "touch_up"
	KindTouchMove    Kind = "touch_move"
	KindTap          Kind = "tap"
	KindTapConfirmed Kind = "tap_confirmed"
	KindDoubleTap    Kind = "double_tap"
	KindLongPress    Kind = "long_press"
	KindPinchStart   Kind = "pinch_start"
	KindPinchMove    Kind = "pinch_move"
	KindPinchEnd     Kind = "pinch_end"
	KindFling        Kind = "fling"
)

// Event is a semantic notification derived from one device message.
// The concrete types below are the only implementations.
type Event interface {
	DeviceID() int
	Kind() Kind
	isEvent()
}

// TouchDown reports a new contact at Position.
type TouchDown struct {
	Device   int
	Slot     int
	Position geom.Vec2
}

// TouchUp reports a contact lifting at Position.
type TouchUp struct {
	Device   int
	Slot     int
	Position geom.Vec2
}

// TouchMove reports a contact moving by Delta.
type TouchMove struct {
	Device int
	Slot   int
	Delta  geom.Vec2
}

// Tap reports a single tap at the slot's last known position.
type Tap struct {
	Device   int
	Slot     int
	Position geom.Vec2
	Count    int
}

// TapConfirmed reports a tap that is not the first half of a double tap.
type TapConfirmed struct {
	Device   int
	Slot     int
	Position geom.Vec2
	Count    int
}

// DoubleTap reports a double tap.
type DoubleTap struct {
	Device   int
	Slot     int
	Position geom.Vec2
	Count    int
}

// LongPress reports a press held past the device's long-press threshold.
type LongPress struct {
	Device   int
	Slot     int
	Position geom.Vec2
}

// PinchStart, PinchMove and PinchEnd carry the current span between contacts.
type PinchStart struct {
	Device int
	Span   float64
}

type PinchMove struct {
	Device int
	Span   float64
}

type PinchEnd struct {
	Device int
	Span   float64
}

// Fling reports a swipe velocity, not tied to a slot.
type Fling struct {
	Device   int
	Velocity geom.Vec2
}

func (e TouchDown) DeviceID() int    { return e.Device }
func (e TouchUp) DeviceID() int      { return e.Device }
func (e TouchMove) DeviceID() int    { return e.Device }
func (e Tap) DeviceID() int          { return e.Device }
func (e TapConfirmed) DeviceID() int { return e.Device }
func (e DoubleTap) DeviceID() int    { return e.Device }
func (e LongPress) DeviceID() int    { return e.Device }
func (e PinchStart) DeviceID() int   { return e.Device }
func (e PinchMove) DeviceID() int    { return e.Device }
func (e PinchEnd) DeviceID() int     { return e.Device }
func (e Fling) DeviceID() int        { return e.Device }

func (TouchDown) Kind() Kind    { return KindTouchDown }
func (TouchUp) Kind() Kind      { return KindTouchUp }
func (TouchMove) Kind() Kind    { return KindTouchMove }
func (Tap) Kind() Kind          { return KindTap }
func (TapConfirmed) Kind() Kind { return KindTapConfirmed }
func (DoubleTap) Kind() Kind    { return KindDoubleTap }
func (LongPress) Kind() Kind    { return KindLongPress }
func (PinchStart) Kind() Kind   { return KindPinchStart }
func (PinchMove) Kind() Kind    { return KindPinchMove }
func (PinchEnd) Kind() Kind     { return KindPinchEnd }
func (Fling) Kind() Kind        { return KindFling }

func (TouchDown) isEvent()    {}
func (TouchUp) isEvent()      {}
func (TouchMove) isEvent()    {}
func (Tap) isEvent()          {}
func (TapConfirmed) isEvent() {}
func (DoubleTap) isEvent()    {}
func (LongPress) isEvent()    {}
func (PinchStart) isEvent()   {}
func (PinchMove) isEvent()    {}
func (PinchEnd) isEvent()     {}
func (Fling) isEvent()        {}

// EventRecord is the flat, serialisable form of an Event used by the
// MQTT, OSC and WebSocket outputs. Only the fields the variant carries
// are set.
type EventRecord struct {
	DeviceID int        `json:"device_id"`
	Kind     Kind       `json:"kind"`
	Slot     *int       `json:"slot,omitempty"`
	Position *geom.Vec2 `json:"position,omitempty"`
	Delta    *geom.Vec2 `json:"delta,omitempty"`
	Velocity *geom.Vec2 `json:"velocity,omitempty"`
	Span     *float64   `json:"span,omitempty"`
	Count    *int       `json:"count,omitempty"`
}

// Flatten converts e to its EventRecord.
func Flatten(e Event) EventRecord {
	r := EventRecord{DeviceID: e.DeviceID(), Kind: e.Kind()}
	switch e := e.(type) {
	case TouchDown:
		r.Slot, r.Position = &e.Slot, &e.Position
	case TouchUp:
		r.Slot, r.Position = &e.Slot, &e.Position
	case TouchMove:
		r.Slot, r.Delta = &e.Slot, &e.Delta
	case Tap:
		r.Slot, r.Position, r.Count = &e.Slot, &e.Position, &e.Count
	case TapConfirmed:
		r.Slot, r.Position, r.Count = &e.Slot, &e.Position, &e.Count
	case DoubleTap:
		r.Slot, r.Position, r.Count = &e.Slot, &e.Position, &e.Count
	case LongPress:
		r.Slot, r.Position = &e.Slot, &e.Position
	case PinchStart:
		r.Span = &e.Span
	case PinchMove:
		r.Span = &e.Span
	case PinchEnd:
		r.Span = &e.Span
	case Fling:
		r.Velocity = &e.Velocity
	}
	return r
}
