package math

import (
	"math"
	"testing"
)

const quatEpsilon = 1e-5

func vecNear(a, b Vec3, eps float32) bool {
	return a.Distance(b) <= eps
}

// axisAngle builds a rotation of angle radians about the unit axis.
func axisAngle(axis Vec3, angle float32) Quat {
	s, c := float32(math.Sin(float64(angle)/2)), float32(math.Cos(float64(angle)/2))
	return Quat{X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s, W: c}
}

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := float32(math.Sqrt(float64(n.Dot(n))))
	if math.Abs(float64(length-1.0)) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatRotate(t *testing.T) {
	q := axisAngle(UnitZ, float32(math.Pi/2))
	got := q.Rotate(UnitX)
	if !vecNear(got, UnitY, quatEpsilon) {
		t.Errorf("Rotate X by 90 about Z: got %v, want %v", got, UnitY)
	}
}

func TestQuatInverse(t *testing.T) {
	q := axisAngle(Vec3{0, 1, 1}.Normalize(), 1.3)
	p := q.Mul(q.Inverse())
	if math.Abs(float64(p.W-1)) > quatEpsilon || p.X*p.X+p.Y*p.Y+p.Z*p.Z > quatEpsilon {
		t.Errorf("q * q^-1 should be identity, got %+v", p)
	}
}

func TestQuatRotationDifference(t *testing.T) {
	a := axisAngle(UnitX, 0.4)
	b := axisAngle(UnitY, -1.1)

	d := a.RotationDifference(b)
	v := Vec3{1, 2, 3}
	if got, want := a.Mul(d).Rotate(v), b.Rotate(v); !vecNear(got, want, 1e-4) {
		t.Errorf("a * diff should act like b: got %v, want %v", got, want)
	}

	self := a.RotationDifference(a)
	if !vecNear(self.Rotate(v), v, 1e-5) {
		t.Errorf("difference with itself should be identity, got %+v", self)
	}
}

func TestQuatFromBasisIdentity(t *testing.T) {
	q := QuatFromBasis(UnitX, UnitY, UnitZ)
	if math.Abs(float64(q.W-1)) > quatEpsilon {
		t.Errorf("standard basis should give identity, got %+v", q)
	}
}

func TestTrackQuat(t *testing.T) {
	dirs := []Vec3{
		{0, 0, 1},
		{1, 0, 0},
		{0, 0, -1},
		{0.3, -0.2, 0.9},
		{0, 1, 0}, // parallel to up
		{0, -1, 0},
	}

	for _, dir := range dirs {
		q := TrackQuat(dir, UnitY)
		got := q.Rotate(UnitZ)
		if !vecNear(got, dir.Normalize(), 1e-5) {
			t.Errorf("TrackQuat(%v) maps +Z to %v", dir, got)
		}
	}
}

func TestTrackQuatKeepsRollUp(t *testing.T) {
	// Facing +X, local +Y should stay on world +Y.
	q := TrackQuat(UnitX, UnitY)
	if got := q.Rotate(UnitY); !vecNear(got, UnitY, 1e-5) {
		t.Errorf("local up = %v, want %v", got, UnitY)
	}
}

func TestTrackQuatZeroDirection(t *testing.T) {
	if q := TrackQuat(Vec3{}, UnitY); q != QuatIdentity() {
		t.Errorf("zero direction should give identity, got %+v", q)
	}
}
