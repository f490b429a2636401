package protocol

import (
	"fmt"
	"strconv"

	"github.com/google/xdtk/internal/geom"
)

// Device→controller headers.
const (
	HeaderTouchDown    = "TOUCH_DOWN"
	HeaderTouchUp      = "TOUCH_UP"
	HeaderTouchMove    = "TOUCH_MOVE"
	HeaderTap          = "TAP"
	HeaderTapConfirmed = "TAPCONFIRMED"
	HeaderDoubleTap    = "DOUBLETAP"
	HeaderLongPress    = "LONGPRESS"
	HeaderFling        = "FLING"
	HeaderPinchStart   = "PINCH_START"
	HeaderPinchMove    = "PINCH_MOVE"
	HeaderPinchEnd     = "PINCH_END"

	HeaderARPose             = "ARPOSE"
	HeaderAccelerometer      = "ACCELEROMETER"
	HeaderLinearAcceleration = "LINEAR_ACCELERATION"
	HeaderGravity            = "GRAVITY"
	HeaderMagneticField      = "MAGNETIC_FIELD"
	HeaderGyroscope          = "GYROSCOPE"
	HeaderGameRotation       = "GAME_ROTATION_VECTOR"
	HeaderRotation           = "ROTATION_VECTOR"
	HeaderProximity          = "PROXIMITY"
	HeaderAmbientTemperature = "AMBIENT_TEMPERATURE"
	HeaderLight              = "LIGHT"

	HeaderDeviceOrientation = "DEVICE_ORIENTATION"
	HeaderDeviceInfo        = "DEVICE_INFO"
)

// MetersPerInch converts the physical screen size sent in DEVICE_INFO.
const MetersPerInch = 0.0254

// Wire values of the touch tool field.
const (
	ToolCodeTouch = 1
	ToolCodePen   = 2
)

// Record is a parsed device→controller message.
type Record interface {
	// Header returns the wire header this record was parsed from.
	Header() string
	// Fields returns the record's fields in wire order.
	Fields() []string
}

// Touch is a raw contact update (TOUCH_DOWN, TOUCH_UP, TOUCH_MOVE).
type Touch struct {
	Kind     string
	Slot     int
	Position geom.Vec2
	Size     float64
	Pressure float64
	Delta    geom.Vec2
	ToolCode int
}

// Tap is a TAP, TAPCONFIRMED or DOUBLETAP gesture.
type Tap struct {
	Kind  string
	Slot  int
	Count int
}

// LongPress is a LONGPRESS gesture.
type LongPress struct {
	Slot int
}

// Fling is a FLING gesture. Velocity is device-relative and unconverted.
type Fling struct {
	Velocity geom.Vec2
}

// Pinch is a PINCH_START, PINCH_MOVE or PINCH_END gesture.
type Pinch struct {
	Kind string
	Span float64
}

// ARPose is a position and orientation in the sender's right-handed frame.
type ARPose struct {
	Position geom.Vec3
	Rotation geom.Quat
}

// Vector is a three-axis sensor reading.
type Vector struct {
	Sensor string
	Value  geom.Vec3
}

// Rotation is a rotation-vector sensor reading in the sender's frame.
type Rotation struct {
	Sensor string
	Value  geom.Quat
}

// Scalar is a single-value sensor reading.
type Scalar struct {
	Sensor string
	Value  float64
}

// DeviceOrientation carries the orientation token unparsed; unknown
// tokens are not a decode error.
type DeviceOrientation struct {
	Token string
}

// DeviceInfo identifies a device and its screen.
type DeviceInfo struct {
	Name   string
	SizePx geom.Vec2
	SizeIn geom.Vec2
}

// SizeMeters returns the physical screen size in meters.
func (d DeviceInfo) SizeMeters() geom.Vec2 {
	return d.SizeIn.Scale(MetersPerInch)
}

func (t Touch) Header() string { return t.Kind }
func (t Tap) Header() string { return t.Kind }
func (LongPress) Header() string { return HeaderLongPress }
func (Fling) Header() string { return HeaderFling }
func (p Pinch) Header() string { return p.Kind }
func (ARPose) Header() string { return HeaderARPose }
func (v Vector) Header() string { return v.Sensor }
func (r Rotation) Header() string { return r.Sensor }
func (s Scalar) Header() string { return s.Sensor }
func (DeviceOrientation) Header() string { return HeaderDeviceOrientation }
func (DeviceInfo) Header() string { return HeaderDeviceInfo }

func (t Touch) Fields() []string {
	return []string{
		strconv.Itoa(t.Slot),
		formatFloat(t.Position.X), formatFloat(t.Position.Y),
		formatFloat(t.Size), formatFloat(t.Pressure),
		formatFloat(t.Delta.X), formatFloat(t.Delta.Y),
		strconv.Itoa(t.ToolCode),
	}
}

func (t Tap) Fields() []string {
	return []string{strconv.Itoa(t.Slot), strconv.Itoa(t.Count)}
}

func (l LongPress) Fields() []string { return []string{strconv.Itoa(l.Slot)} }

func (f Fling) Fields() []string {
	return []string{formatFloat(f.Velocity.X), formatFloat(f.Velocity.Y)}
}

func (p Pinch) Fields() []string { return []string{formatFloat(p.Span)} }

func (a ARPose) Fields() []string {
	return append(vec3Fields(a.Position), quatFields(a.Rotation)...)
}

func (v Vector) Fields() []string { return vec3Fields(v.Value) }
func (r Rotation) Fields() []string { return quatFields(r.Value) }
func (s Scalar) Fields() []string { return []string{formatFloat(s.Value)} }

func (o DeviceOrientation) Fields() []string { return []string{o.Token} }

func (d DeviceInfo) Fields() []string {
	return []string{
		d.Name,
		formatFloat(d.SizePx.X), formatFloat(d.SizePx.Y),
		formatFloat(d.SizeIn.X), formatFloat(d.SizeIn.Y),
	}
}

func vec3Fields(v geom.Vec3) []string {
	return []string{formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z)}
}

func quatFields(q geom.Quat) []string {
	return []string{formatFloat(q.X), formatFloat(q.Y), formatFloat(q.Z), formatFloat(q.W)}
}

// Encode renders r as a device→controller line stamped with ts.
func Encode(ts int64, r Record) string {
	return Message{Timestamp: ts, Header: r.Header(), Fields: r.Fields()}.Encode()
}

// Parse converts a decoded message into its typed record.
//
// Extra trailing fields are ignored. Missing fields return ErrMalformed,
// unparseable ones ErrInvalidField, and unknown headers ErrUnknownHeader.
// Slot bounds are not checked here; the touch capacity belongs to the
// device.
func Parse(m Message) (Record, error) {
	switch m.Header {
	case HeaderTouchDown, HeaderTouchUp, HeaderTouchMove:
		return parseTouch(m)
	case HeaderTap, HeaderTapConfirmed, HeaderDoubleTap:
		r, err := newFieldReader(m, 2)
		if err != nil {
			return nil, err
		}
		t := Tap{Kind: m.Header, Slot: r.intAt(0), Count: r.intAt(1)}
		return done(t, r.err)
	case HeaderLongPress:
		r, err := newFieldReader(m, 1)
		if err != nil {
			return nil, err
		}
		l := LongPress{Slot: r.intAt(0)}
		return done(l, r.err)
	case HeaderFling:
		r, err := newFieldReader(m, 2)
		if err != nil {
			return nil, err
		}
		f := Fling{Velocity: geom.Vec2{X: r.floatAt(0), Y: r.floatAt(1)}}
		return done(f, r.err)
	case HeaderPinchStart, HeaderPinchMove, HeaderPinchEnd:
		r, err := newFieldReader(m, 1)
		if err != nil {
			return nil, err
		}
		p := Pinch{Kind: m.Header, Span: r.floatAt(0)}
		return done(p, r.err)
	case HeaderARPose:
		r, err := newFieldReader(m, 7)
		if err != nil {
			return nil, err
		}
		a := ARPose{Position: r.vec3At(0), Rotation: r.quatAt(3)}
		return done(a, r.err)
	case HeaderAccelerometer, HeaderLinearAcceleration, HeaderGravity, HeaderMagneticField, HeaderGyroscope:
		r, err := newFieldReader(m, 3)
		if err != nil {
			return nil, err
		}
		v := Vector{Sensor: m.Header, Value: r.vec3At(0)}
		return done(v, r.err)
	case HeaderGameRotation, HeaderRotation:
		r, err := newFieldReader(m, 4)
		if err != nil {
			return nil, err
		}
		q := Rotation{Sensor: m.Header, Value: r.quatAt(0)}
		return done(q, r.err)
	case HeaderProximity, HeaderAmbientTemperature, HeaderLight:
		r, err := newFieldReader(m, 1)
		if err != nil {
			return nil, err
		}
		s := Scalar{Sensor: m.Header, Value: r.floatAt(0)}
		return done(s, r.err)
	case HeaderDeviceOrientation:
		r, err := newFieldReader(m, 1)
		if err != nil {
			return nil, err
		}
		return DeviceOrientation{Token: r.stringAt(0)}, nil
	case HeaderDeviceInfo:
		r, err := newFieldReader(m, 5)
		if err != nil {
			return nil, err
		}
		d := DeviceInfo{
			Name:   r.stringAt(0),
			SizePx: geom.Vec2{X: r.floatAt(1), Y: r.floatAt(2)},
			SizeIn: geom.Vec2{X: r.floatAt(3), Y: r.floatAt(4)},
		}
		return done(d, r.err)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHeader, m.Header)
	}
}

func parseTouch(m Message) (Record, error) {
	r, err := newFieldReader(m, 8)
	if err != nil {
		return nil, err
	}
	t := Touch{
		Kind:     m.Header,
		Slot:     r.intAt(0),
		Position: geom.Vec2{X: r.floatAt(1), Y: r.floatAt(2)},
		Size:     r.floatAt(3),
		Pressure: r.floatAt(4),
		Delta:    geom.Vec2{X: r.floatAt(5), Y: r.floatAt(6)},
		ToolCode: r.intAt(7),
	}
	if r.err == nil && t.ToolCode != ToolCodeTouch && t.ToolCode != ToolCodePen {
		r.fail(7, "a tool code")
	}
	return done(t, r.err)
}

func done(rec Record, err error) (Record, error) {
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ParseLine is Decode followed by Parse.
func ParseLine(line string) (Message, Record, error) {
	m, err := Decode(line)
	if err != nil {
		return Message{}, nil, err
	}
	rec, err := Parse(m)
	return m, rec, err
}
