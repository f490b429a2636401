package device

import (
	"fmt"

	"github.com/google/xdtk/internal/geom"
	"github.com/google/xdtk/internal/protocol"
)

// Apply folds one parsed record into s. It returns the new state and the
// event the record produces, or nil for sensor and identity records.
//
// On error the returned state is s unchanged and the event is nil.
func Apply(s State, rec protocol.Record) (State, Event, error) {
	switch r := rec.(type) {
	case protocol.Touch:
		return applyTouch(s, r)

	case protocol.Tap:
		if !validSlot(r.Slot) {
			return s, nil, slotError(r.Slot)
		}
		s.TapCount = r.Count
		pos := s.Touches[r.Slot].Position
		switch r.Kind {
		case protocol.HeaderTapConfirmed:
			return s, TapConfirmed{Device: s.ID, Slot: r.Slot, Position: pos, Count: r.Count}, nil
		case protocol.HeaderDoubleTap:
			return s, DoubleTap{Device: s.ID, Slot: r.Slot, Position: pos, Count: r.Count}, nil
		default:
			return s, Tap{Device: s.ID, Slot: r.Slot, Position: pos, Count: r.Count}, nil
		}

	case protocol.LongPress:
		if !validSlot(r.Slot) {
			return s, nil, slotError(r.Slot)
		}
		return s, LongPress{Device: s.ID, Slot: r.Slot, Position: s.Touches[r.Slot].Position}, nil

	case protocol.Fling:
		return s, Fling{Device: s.ID, Velocity: r.Velocity}, nil

	case protocol.Pinch:
		s.PinchSpan = r.Span
		switch r.Kind {
		case protocol.HeaderPinchStart:
			return s, PinchStart{Device: s.ID, Span: r.Span}, nil
		case protocol.HeaderPinchEnd:
			return s, PinchEnd{Device: s.ID, Span: r.Span}, nil
		default:
			return s, PinchMove{Device: s.ID, Span: r.Span}, nil
		}

	case protocol.ARPose:
		s.ARPosition = geom.ToLeftHanded(r.Position)
		s.ARRotation = geom.ToLeftHandedQuat(r.Rotation)
		return s, nil, nil

	case protocol.Vector:
		switch r.Sensor {
		case protocol.HeaderAccelerometer:
			s.Accelerometer = r.Value
		case protocol.HeaderLinearAcceleration:
			s.LinearAcceleration = r.Value
		case protocol.HeaderGravity:
			s.Gravity = r.Value
		case protocol.HeaderMagneticField:
			s.MagneticField = r.Value
		case protocol.HeaderGyroscope:
			s.Gyroscope = r.Value
		default:
			return s, nil, unsupported(rec)
		}
		return s, nil, nil

	case protocol.Rotation:
		q := geom.SensorToLeftHanded(r.Value)
		switch r.Sensor {
		case protocol.HeaderGameRotation:
			s.GameRotation = q
		case protocol.HeaderRotation:
			s.Rotation = q
		default:
			return s, nil, unsupported(rec)
		}
		return s, nil, nil

	case protocol.Scalar:
		switch r.Sensor {
		case protocol.HeaderProximity:
			s.Proximity = r.Value
		case protocol.HeaderAmbientTemperature:
			s.AmbientTemperature = r.Value
		case protocol.HeaderLight:
			s.Light = r.Value
		default:
			return s, nil, unsupported(rec)
		}
		return s, nil, nil

	case protocol.DeviceOrientation:
		if o, ok := ParseOrientation(r.Token); ok {
			s.Orientation = o
		}
		return s, nil, nil

	case protocol.DeviceInfo:
		s.Name = r.Name
		s.SizePx = r.SizePx
		s.SizeM = r.SizeMeters()
		s.ReceivedInfo = true
		return s, nil, nil

	default:
		return s, nil, unsupported(rec)
	}
}

func applyTouch(s State, r protocol.Touch) (State, Event, error) {
	if !validSlot(r.Slot) {
		return s, nil, slotError(r.Slot)
	}

	var ev Event
	touched := true
	switch r.Kind {
	case protocol.HeaderTouchDown:
		ev = TouchDown{Device: s.ID, Slot: r.Slot, Position: r.Position}
	case protocol.HeaderTouchUp:
		touched = false
		ev = TouchUp{Device: s.ID, Slot: r.Slot, Position: r.Position}
	case protocol.HeaderTouchMove:
		ev = TouchMove{Device: s.ID, Slot: r.Slot, Delta: r.Delta}
	default:
		return s, nil, unsupported(r)
	}

	s.Touches[r.Slot] = TouchPoint{
		Position: r.Position,
		Delta:    r.Delta,
		Size:     r.Size,
		Touched:  touched,
	}
	s.Pressure = r.Pressure
	s.Tool = Tool(r.ToolCode - protocol.ToolCodeTouch)
	return s, ev, nil
}

func validSlot(slot int) bool {
	return slot >= 0 && slot < TouchSlots
}

func slotError(slot int) error {
	return fmt.Errorf("%w: %d", ErrSlotOutOfRange, slot)
}

func unsupported(rec protocol.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrUnsupportedRecord)
	}
	return fmt.Errorf("%w: %T %s", ErrUnsupportedRecord, rec, rec.Header())
}
