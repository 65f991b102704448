package math

import "github.com/chewxy/math32"

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// QuatFromBasis builds the rotation whose columns are the orthonormal axes
// x, y and z.
func QuatFromBasis(x, y, z Vec3) Quat {
	// Shepperd's method, picking the largest diagonal term for stability.
	m00, m11, m22 := x.X, y.Y, z.Z
	trace := m00 + m11 + m22

	var q Quat
	switch {
	case trace > 0:
		s := math32.Sqrt(trace+1) * 2
		q = Quat{
			W: s / 4,
			X: (y.Z - z.Y) / s,
			Y: (z.X - x.Z) / s,
			Z: (x.Y - y.X) / s,
		}
	case m00 > m11 && m00 > m22:
		s := math32.Sqrt(1+m00-m11-m22) * 2
		q = Quat{
			W: (y.Z - z.Y) / s,
			X: s / 4,
			Y: (y.X + x.Y) / s,
			Z: (z.X + x.Z) / s,
		}
	case m11 > m22:
		s := math32.Sqrt(1+m11-m00-m22) * 2
		q = Quat{
			W: (z.X - x.Z) / s,
			X: (y.X + x.Y) / s,
			Y: s / 4,
			Z: (z.Y + y.Z) / s,
		}
	default:
		s := math32.Sqrt(1+m22-m00-m11) * 2
		q = Quat{
			W: (x.Y - y.X) / s,
			X: (z.X + x.Z) / s,
			Y: (z.Y + y.Z) / s,
			Z: s / 4,
		}
	}
	return q.Normalize()
}

// TrackQuat returns the rotation that points the local +Z axis along dir,
// using up to fix the roll. When dir is parallel to up, the world X axis is
// used instead so the result stays defined.
func TrackQuat(dir, up Vec3) Quat {
	z := dir.Normalize()
	if z == (Vec3{}) {
		return QuatIdentity()
	}

	x := up.Cross(z)
	if x.Length() < 1e-6 {
		x = UnitX.Cross(z)
		if x.Length() < 1e-6 {
			x = UnitZ.Cross(z)
		}
	}
	x = x.Normalize()
	y := z.Cross(x)

	return QuatFromBasis(x, y, z)
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := math32.Sqrt(q.Dot(q))
	if length < 0.0001 {
		return QuatIdentity()
	}
	invLen := 1.0 / length
	return Quat{
		X: q.X * invLen,
		Y: q.Y * invLen,
		Z: q.Z * invLen,
		W: q.W * invLen,
	}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Conjugate returns the quaternion with the vector part negated.
func (q Quat) Conjugate() Quat {
	return Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: q.W}
}

// Inverse returns the multiplicative inverse.
func (q Quat) Inverse() Quat {
	n := q.Dot(q)
	if n == 0 {
		return QuatIdentity()
	}
	c := q.Conjugate()
	return Quat{X: c.X / n, Y: c.Y / n, Z: c.Z / n, W: c.W / n}
}

// RotationDifference returns the rotation d such that q * d == other.
func (q Quat) RotationDifference(other Quat) Quat {
	return q.Inverse().Mul(other)
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	// v' = v + 2w(u x v) + 2u x (u x v)
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Mul multiplies two quaternions (combines rotations).
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}
