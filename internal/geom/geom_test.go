package geom

import (
	"math"
	"testing"
)

const eps = 1e-12

func TestToLeftHandedQuat_Identity(t *testing.T) {
	if got := ToLeftHandedQuat(Identity); got != Identity {
		t.Errorf("ToLeftHandedQuat(identity) = %+v, want identity", got)
	}
}

func TestSensorToLeftHanded(t *testing.T) {
	h := math.Sqrt2 / 2
	tests := []struct {
		name string
		in   Quat
		want Quat
	}{
		{name: "identity", in: Identity, want: Quat{X: -h, W: h}},
		{
			name: "negates y and z before rotating",
			in:   Quat{Z: 1},
			// (-h,0,0,h) * (0,0,-1,0)
			want: Quat{Y: -h, Z: -h},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SensorToLeftHanded(tt.in)
			if !got.ApproxEqual(tt.want, eps) {
				t.Errorf("SensorToLeftHanded(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAngleAxis(t *testing.T) {
	h := math.Sqrt2 / 2
	tests := []struct {
		name string
		deg  float64
		axis Vec3
		want Quat
	}{
		{name: "zero angle", deg: 0, axis: Right, want: Identity},
		{name: "minus ninety about x", deg: -90, axis: Right, want: Quat{X: -h, W: h}},
		{name: "unnormalised axis", deg: 180, axis: Vec3{Y: 2}, want: Quat{Y: 1}},
		{name: "zero axis", deg: 45, axis: Vec3{}, want: Identity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AngleAxis(tt.deg, tt.axis)
			if !got.ApproxEqual(tt.want, eps) {
				t.Errorf("AngleAxis(%v, %+v) = %+v, want %+v", tt.deg, tt.axis, got, tt.want)
			}
		})
	}
}

func TestQuatMul_ComposesRotations(t *testing.T) {
	q := AngleAxis(-90, Right)
	got := q.Mul(q)
	want := AngleAxis(-180, Right)
	if !got.ApproxEqual(want, eps) {
		t.Errorf("q*q = %+v, want %+v", got, want)
	}
	if got := Identity.Mul(q); got != q {
		t.Errorf("identity*q = %+v, want %+v", got, q)
	}
}

func TestToLeftHanded(t *testing.T) {
	got := ToLeftHanded(Vec3{X: 1, Y: 2, Z: 3})
	if want := (Vec3{X: 1, Y: 2, Z: -3}); got != want {
		t.Errorf("ToLeftHanded = %+v, want %+v", got, want)
	}
}

func TestVec2Scale(t *testing.T) {
	x, y, f := 3.0, 6.7, 0.0254
	got := Vec2{X: x, Y: y}.Scale(f)
	if got.X != x*f || got.Y != y*f {
		t.Errorf("Scale = %+v", got)
	}
}
