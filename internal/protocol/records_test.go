package protocol

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/xdtk/internal/geom"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Record
	}{
		{
			line: "1,TOUCH_DOWN,0,10,20,0.5,0.8,1,2,1",
			want: Touch{Kind: HeaderTouchDown, Slot: 0, Position: geom.Vec2{X: 10, Y: 20}, Size: 0.5, Pressure: 0.8, Delta: geom.Vec2{X: 1, Y: 2}, ToolCode: ToolCodeTouch},
		},
		{
			line: "1,TOUCH_MOVE,3,1,1,0,0,-4,5,2",
			want: Touch{Kind: HeaderTouchMove, Slot: 3, Position: geom.Vec2{X: 1, Y: 1}, Delta: geom.Vec2{X: -4, Y: 5}, ToolCode: ToolCodePen},
		},
		{line: "1,TAP,1,1", want: Tap{Kind: HeaderTap, Slot: 1, Count: 1}},
		{line: "1,DOUBLETAP,0,2", want: Tap{Kind: HeaderDoubleTap, Slot: 0, Count: 2}},
		{line: "1,TAPCONFIRMED,0,1", want: Tap{Kind: HeaderTapConfirmed, Slot: 0, Count: 1}},
		{line: "1,LONGPRESS,2", want: LongPress{Slot: 2}},
		{line: "1,FLING,300.5,-12", want: Fling{Velocity: geom.Vec2{X: 300.5, Y: -12}}},
		{line: "1,PINCH_MOVE,1.25", want: Pinch{Kind: HeaderPinchMove, Span: 1.25}},
		{
			line: "1,ARPOSE,1,2,3,0,0,0,1",
			want: ARPose{Position: geom.Vec3{X: 1, Y: 2, Z: 3}, Rotation: geom.Identity},
		},
		{line: "1,GYROSCOPE,0.1,0.2,0.3", want: Vector{Sensor: HeaderGyroscope, Value: geom.Vec3{X: 0.1, Y: 0.2, Z: 0.3}}},
		{line: "1,ROTATION_VECTOR,0,0,0,1", want: Rotation{Sensor: HeaderRotation, Value: geom.Identity}},
		{line: "1,AMBIENT_TEMPERATURE,21.5", want: Scalar{Sensor: HeaderAmbientTemperature, Value: 21.5}},
		{line: "1,DEVICE_ORIENTATION,SIDEWAYS", want: DeviceOrientation{Token: "SIDEWAYS"}},
		{
			line: "100,DEVICE_INFO,Pixel7,1080,2400,3.0,6.7",
			want: DeviceInfo{Name: "Pixel7", SizePx: geom.Vec2{X: 1080, Y: 2400}, SizeIn: geom.Vec2{X: 3.0, Y: 6.7}},
		},
		{line: "1,LIGHT,40,extra,fields", want: Scalar{Sensor: HeaderLight, Value: 40}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, got, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseLine() = %#v, want %#v", got, tt.want)
			}
			if got.Header() != tt.want.Header() {
				t.Errorf("Header() = %q, want %q", got.Header(), tt.want.Header())
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
	}{
		{name: "unknown header", line: "1,SHAKE,1", wantErr: ErrUnknownHeader},
		{name: "short touch", line: "1,TOUCH_DOWN,0,1,2", wantErr: ErrMalformed},
		{name: "non-numeric slot", line: "1,TOUCH_UP,x,1,2,0,0,0,0,1", wantErr: ErrInvalidField},
		{name: "non-numeric last field", line: "1,TOUCH_UP,0,1,2,0,0,0,oops,1", wantErr: ErrInvalidField},
		{name: "tool zero", line: "1,TOUCH_DOWN,0,1,2,0,0,0,0,0", wantErr: ErrInvalidField},
		{name: "tool three", line: "1,TOUCH_DOWN,0,1,2,0,0,0,0,3", wantErr: ErrInvalidField},
		{name: "fractional tap count", line: "1,TAP,0,1.5", wantErr: ErrInvalidField},
		{name: "bad quaternion", line: "1,GAME_ROTATION_VECTOR,0,0,w,1", wantErr: ErrInvalidField},
		{name: "bad inches", line: "1,DEVICE_INFO,Pixel,1080,2400,three,6.7", wantErr: ErrInvalidField},
		{name: "short device info", line: "1,DEVICE_INFO,Pixel,1080", wantErr: ErrMalformed},
		{name: "orientation without token", line: "1,DEVICE_ORIENTATION", wantErr: ErrMalformed},
		{name: "NaN scalar", line: "1,LIGHT,NaN", wantErr: ErrInvalidField},
		{name: "infinite vector component", line: "1,ACCELEROMETER,0,Inf,0", wantErr: ErrInvalidField},
		{name: "negative infinite span", line: "1,PINCH_MOVE,-Inf", wantErr: ErrInvalidField},
		{name: "NaN touch position", line: "1,TOUCH_MOVE,0,nan,2,0,0,0,0,1", wantErr: ErrInvalidField},
		{name: "infinite arpose orientation", line: "1,ARPOSE,0,0,0,0,0,0,+Inf", wantErr: ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rec, err := ParseLine(tt.line)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseLine(%q) error = %v, want %v", tt.line, err, tt.wantErr)
			}
			if rec != nil {
				t.Errorf("ParseLine(%q) returned record %#v alongside error", tt.line, rec)
			}
		})
	}
}

func TestDeviceInfo_RoundTrip(t *testing.T) {
	infos := []DeviceInfo{
		{Name: "Pixel7", SizePx: geom.Vec2{X: 1080, Y: 2400}, SizeIn: geom.Vec2{X: 3.0, Y: 6.7}},
		{Name: "Tab S9", SizePx: geom.Vec2{X: 1600, Y: 2560}, SizeIn: geom.Vec2{X: 5.93, Y: 9.49}},
		{Name: "watch", SizePx: geom.Vec2{X: 450, Y: 450}, SizeIn: geom.Vec2{X: 1.0 / 3, Y: 1.0 / 3}},
	}

	for _, info := range infos {
		t.Run(info.Name, func(t *testing.T) {
			_, rec, err := ParseLine(Encode(99, info))
			if err != nil {
				t.Fatalf("ParseLine() error = %v", err)
			}
			got, ok := rec.(DeviceInfo)
			if !ok {
				t.Fatalf("record type = %T, want DeviceInfo", rec)
			}
			if got != info {
				t.Errorf("round trip = %+v, want %+v", got, info)
			}
			if got.SizeMeters() != info.SizeMeters() {
				t.Errorf("SizeMeters() = %+v, want %+v", got.SizeMeters(), info.SizeMeters())
			}
		})
	}
}

func TestDeviceInfo_SizeMeters(t *testing.T) {
	w, h := 3.0, 6.7
	got := DeviceInfo{SizeIn: geom.Vec2{X: w, Y: h}}.SizeMeters()
	if got.X != w*MetersPerInch || got.Y != h*MetersPerInch {
		t.Errorf("SizeMeters() = %+v", got)
	}
}
