package math

import (
	"math"
	"testing"
)

func TestIdentity(t *testing.T) {
	m := Identity()
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[15] != 1 {
		t.Error("Identity diagonal should be 1")
	}
	if m[1] != 0 || m[4] != 0 {
		t.Error("Identity off-diagonal should be 0")
	}
}

func TestMulIdentity(t *testing.T) {
	m := Translate(1, 2, 3)
	result := m.Mul(Identity())

	for i := 0; i < 16; i++ {
		if result[i] != m[i] {
			t.Errorf("M * I should equal M, element %d: got %f, want %f", i, result[i], m[i])
		}
	}
}

func TestTransformPoint(t *testing.T) {
	m := Translate(10, 20, 30)
	result := m.TransformPoint(Vec3{1, 2, 3})

	expected := Vec3{11, 22, 33}
	if result != expected {
		t.Errorf("TransformPoint: got %v, want %v", result, expected)
	}
}

func TestTransformPointScale(t *testing.T) {
	m := Scale(2, 2, 2)
	result := m.TransformPoint(Vec3{1, 2, 3})

	expected := Vec3{2, 4, 6}
	if result != expected {
		t.Errorf("TransformPoint with scale: got %v, want %v", result, expected)
	}
}

func TestRotateY90(t *testing.T) {
	m := RotateY(float32(math.Pi / 2))
	result := m.TransformPoint(Vec3{1, 0, 0})

	// (1,0,0) rotates onto (0,0,-1)
	if abs(result.X) > 0.001 || abs(result.Y) > 0.001 || abs(result.Z+1) > 0.001 {
		t.Errorf("RotateY 90: got %v, want (0, 0, -1)", result)
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := Compose(Vec3{1, -2, 3}, Vec3{0.3, 1.1, -0.4}, Vec3{2, 2, 2})
	p := Vec3{0.5, 0.25, -1}

	back := m.Inverse().TransformPoint(m.TransformPoint(p))
	if back.Distance(p) > 1e-4 {
		t.Errorf("Inverse round trip: got %v, want %v", back, p)
	}
}

func TestCompose(t *testing.T) {
	m := Compose(Vec3{0, 0, 1}, Vec3{0, float32(math.Pi / 2), 0}, Vec3{2, 2, 2})
	result := m.TransformPoint(Vec3{1, 0, 0})

	// scale to (2,0,0), rotate onto (0,0,-2), translate to (0,0,-1)
	if result.Distance(Vec3{0, 0, -1}) > 1e-5 {
		t.Errorf("Compose: got %v, want (0, 0, -1)", result)
	}
}

func abs(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
