// Package geom holds the small vector and quaternion types carried in
// device snapshots, plus the conversion from a device's right-handed
// sensor frame (z toward the viewer) to the controller's left-handed
// frame (z away from the viewer).
package geom

import "math"

// Vec2 is a 2D vector: touch positions, deltas, screen sizes, fling velocities.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scale returns v multiplied by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Vec3 is a 3D vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a rotation quaternion stored as (x, y, z, w).
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the zero rotation.
var Identity = Quat{W: 1}

// Right is the device's right axis in the controller frame.
var Right = Vec3{X: 1}

// Mul returns the Hamilton product q*r, which applies r first and then q.
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		X: q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		Y: q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		Z: q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		W: q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// AngleAxis returns the rotation of deg degrees about axis.
// A zero axis yields Identity.
func AngleAxis(deg float64, axis Vec3) Quat {
	n := math.Sqrt(axis.X*axis.X + axis.Y*axis.Y + axis.Z*axis.Z)
	if n == 0 {
		return Identity
	}
	half := deg * math.Pi / 360
	s := math.Sin(half) / n
	return Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: math.Cos(half)}
}

// ToLeftHanded mirrors a position across the xy plane.
func ToLeftHanded(v Vec3) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: -v.Z}
}

// ToLeftHandedQuat converts an orientation between the same frames as
// ToLeftHanded. Identity maps to Identity.
func ToLeftHandedQuat(q Quat) Quat {
	return Quat{X: q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

// sensorAlignment rotates the Android sensor frame (z up when flat)
// onto the AR pose frame (y up).
var sensorAlignment = AngleAxis(-90, Right)

// SensorToLeftHanded converts a rotation-vector sensor reading. It is
// ToLeftHandedQuat followed by a fixed -90° turn about the right axis.
func SensorToLeftHanded(q Quat) Quat {
	return sensorAlignment.Mul(ToLeftHandedQuat(q))
}

// ApproxEqual reports whether every component of q and r differs by at most eps.
func (q Quat) ApproxEqual(r Quat, eps float64) bool {
	return math.Abs(q.X-r.X) <= eps && math.Abs(q.Y-r.Y) <= eps &&
		math.Abs(q.Z-r.Z) <= eps && math.Abs(q.W-r.W) <= eps
}
