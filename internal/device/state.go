package device

import (
	"time"

	"github.com/google/xdtk/internal/geom"
)

// TouchSlots is the number of simultaneous contacts tracked per device.
const TouchSlots = 4

// NoID marks a device that has not been assigned an id yet.
const NoID = -1

// Tool is the instrument touching the screen.
type Tool int

const (
	ToolTouch Tool = iota
	ToolPen
)

func (t Tool) String() string {
	switch t {
	case ToolTouch:
		return "touch"
	case ToolPen:
		return "pen"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tool) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Orientation is the coarse physical orientation reported by the device.
type Orientation int

const (
	OrientationUnknown Orientation = iota
	OrientationPortrait
	OrientationLandscapeLeft
	OrientationLandscapeRight
	OrientationPortraitUpsideDown
	OrientationFaceUp
	OrientationFaceDown
)

var orientationTokens = map[string]Orientation{
	"PORTRAIT":             OrientationPortrait,
	"LANDSCAPE_LEFT":       OrientationLandscapeLeft,
	"LANDSCAPE_RIGHT":      OrientationLandscapeRight,
	"PORTRAIT_UPSIDE_DOWN": OrientationPortraitUpsideDown,
	"FACE_UP":              OrientationFaceUp,
	"FACE_DOWN":            OrientationFaceDown,
}

var orientationNames = [...]string{
	OrientationUnknown:            "UNKNOWN",
	OrientationPortrait:           "PORTRAIT",
	OrientationLandscapeLeft:      "LANDSCAPE_LEFT",
	OrientationLandscapeRight:     "LANDSCAPE_RIGHT",
	OrientationPortraitUpsideDown: "PORTRAIT_UPSIDE_DOWN",
	OrientationFaceUp:             "FACE_UP",
	OrientationFaceDown:           "FACE_DOWN",
}

// ParseOrientation maps a DEVICE_ORIENTATION token. ok is false for
// tokens outside the known set.
func ParseOrientation(token string) (o Orientation, ok bool) {
	o, ok = orientationTokens[token]
	return o, ok
}

func (o Orientation) String() string {
	if o < 0 || int(o) >= len(orientationNames) {
		return orientationNames[OrientationUnknown]
	}
	return orientationNames[o]
}

// MarshalText implements encoding.TextMarshaler.
func (o Orientation) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// TouchPoint is the last known record for one touch slot.
type TouchPoint struct {
	Position geom.Vec2 `json:"position"`
	Delta    geom.Vec2 `json:"delta"`
	Size     float64   `json:"size"`
	Touched  bool      `json:"touched"`
}

// State is everything known about one device. It is a plain value;
// copying it yields an independent snapshot.
type State struct {
	ID      int    `json:"id"`
	Address string `json:"address,omitempty"`
	Name    string `json:"name"`

	SizePx geom.Vec2 `json:"size_px"`
	SizeM  geom.Vec2 `json:"size_m"`

	Touches   [TouchSlots]TouchPoint `json:"touches"`
	Pressure  float64                `json:"pressure"`
	TapCount  int                    `json:"tap_count"`
	PinchSpan float64                `json:"pinch_span"`
	Tool      Tool                   `json:"tool"`

	Accelerometer      geom.Vec3 `json:"accelerometer"`
	LinearAcceleration geom.Vec3 `json:"linear_acceleration"`
	Gravity            geom.Vec3 `json:"gravity"`
	Gyroscope          geom.Vec3 `json:"gyroscope"`
	MagneticField      geom.Vec3 `json:"magnetic_field"`

	GameRotation geom.Quat `json:"game_rotation"`
	Rotation     geom.Quat `json:"rotation"`
	ARPosition   geom.Vec3 `json:"ar_position"`
	ARRotation   geom.Quat `json:"ar_rotation"`

	Proximity          float64     `json:"proximity"`
	AmbientTemperature float64     `json:"ambient_temperature"`
	Light              float64     `json:"light"`
	Orientation        Orientation `json:"orientation"`

	ReceivedInfo bool      `json:"received_info"`
	LastSeen     time.Time `json:"last_seen,omitzero"`
	Stale        bool      `json:"stale"`
}

// NewState returns the state of a device nothing has been heard from.
func NewState(name, address string, id int) State {
	if id < 0 {
		id = NoID
	}
	return State{
		ID:           id,
		Address:      address,
		Name:         name,
		GameRotation: geom.Identity,
		Rotation:     geom.Identity,
		ARRotation:   geom.Identity,
	}
}

// HasID reports whether an id has been assigned.
func (s State) HasID() bool {
	return s.ID >= 0
}
