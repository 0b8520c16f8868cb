package scene

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// RotationOrder names the axis sequence used to compose an Euler rotation.
// OrderXYZ means the rotation matrix is Rx * Ry * Rz.
type RotationOrder uint8

const (
	OrderXYZ RotationOrder = iota
	OrderYXZ
	OrderZXY
	OrderZYX
	OrderYZX
	OrderXZY
)

var orderNames = [...]string{"XYZ", "YXZ", "ZXY", "ZYX", "YZX", "XZY"}

func (o RotationOrder) String() string {
	if int(o) < len(orderNames) {
		return orderNames[o]
	}
	return fmt.Sprintf("RotationOrder(%d)", uint8(o))
}

// ParseRotationOrder accepts "XYZ", "yxz" and so on.
func ParseRotationOrder(s string) (RotationOrder, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range orderNames {
		if name == up {
			return RotationOrder(i), nil
		}
	}
	return OrderXYZ, fmt.Errorf("unknown rotation order %q", s)
}

// Euler is an intrinsic rotation in radians.
type Euler struct {
	X, Y, Z float64
	Order   RotationOrder
}

func NewEuler(x, y, z float64, order RotationOrder) Euler {
	return Euler{X: x, Y: y, Z: z, Order: order}
}

func (e Euler) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{e.X, e.Y, e.Z}
}

// Quat converts the Euler rotation into a unit quaternion.
func (e Euler) Quat() mgl64.Quat {
	c1, s1 := math.Cos(e.X/2), math.Sin(e.X/2)
	c2, s2 := math.Cos(e.Y/2), math.Sin(e.Y/2)
	c3, s3 := math.Cos(e.Z/2), math.Sin(e.Z/2)

	var x, y, z, w float64
	switch e.Order {
	case OrderYXZ:
		x = s1*c2*c3 + c1*s2*s3
		y = c1*s2*c3 - s1*c2*s3
		z = c1*c2*s3 - s1*s2*c3
		w = c1*c2*c3 + s1*s2*s3
	case OrderZXY:
		x = s1*c2*c3 - c1*s2*s3
		y = c1*s2*c3 + s1*c2*s3
		z = c1*c2*s3 + s1*s2*c3
		w = c1*c2*c3 - s1*s2*s3
	case OrderZYX:
		x = s1*c2*c3 - c1*s2*s3
		y = c1*s2*c3 + s1*c2*s3
		z = c1*c2*s3 - s1*s2*c3
		w = c1*c2*c3 + s1*s2*s3
	case OrderYZX:
		x = s1*c2*c3 + c1*s2*s3
		y = c1*s2*c3 + s1*c2*s3
		z = c1*c2*s3 - s1*s2*c3
		w = c1*c2*c3 - s1*s2*s3
	case OrderXZY:
		x = s1*c2*c3 - c1*s2*s3
		y = c1*s2*c3 - s1*c2*s3
		z = c1*c2*s3 + s1*s2*c3
		w = c1*c2*c3 + s1*s2*s3
	default:
		x = s1*c2*c3 + c1*s2*s3
		y = c1*s2*c3 - s1*c2*s3
		z = c1*c2*s3 + s1*s2*c3
		w = c1*c2*c3 - s1*s2*s3
	}
	return mgl64.Quat{W: w, V: mgl64.Vec3{x, y, z}}
}

// EulerFromQuat decomposes q in the given order. The middle angle is returned
// in [-π/2, π/2]; the outer angles in (-π, π].
func EulerFromQuat(q mgl64.Quat, order RotationOrder) Euler {
	return EulerFromMatrix(q.Normalize().Mat4(), order)
}

// EulerFromMatrix decomposes the rotation part of an unscaled matrix.
func EulerFromMatrix(m mgl64.Mat4, order RotationOrder) Euler {
	m11, m12, m13 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m21, m22, m23 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m31, m32, m33 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	const gimbal = 0.9999999
	e := Euler{Order: order}
	switch order {
	case OrderYXZ:
		e.X = math.Asin(-mgl64.Clamp(m23, -1, 1))
		if math.Abs(m23) < gimbal {
			e.Y = math.Atan2(m13, m33)
			e.Z = math.Atan2(m21, m22)
		} else {
			e.Y = math.Atan2(-m31, m11)
		}
	case OrderZXY:
		e.X = math.Asin(mgl64.Clamp(m32, -1, 1))
		if math.Abs(m32) < gimbal {
			e.Y = math.Atan2(-m31, m33)
			e.Z = math.Atan2(-m12, m22)
		} else {
			e.Z = math.Atan2(m21, m11)
		}
	case OrderZYX:
		e.Y = math.Asin(-mgl64.Clamp(m31, -1, 1))
		if math.Abs(m31) < gimbal {
			e.X = math.Atan2(m32, m33)
			e.Z = math.Atan2(m21, m11)
		} else {
			e.Z = math.Atan2(-m12, m22)
		}
	case OrderYZX:
		e.Z = math.Asin(mgl64.Clamp(m21, -1, 1))
		if math.Abs(m21) < gimbal {
			e.X = math.Atan2(-m23, m22)
			e.Y = math.Atan2(-m31, m11)
		} else {
			e.Y = math.Atan2(m13, m33)
		}
	case OrderXZY:
		e.Z = math.Asin(-mgl64.Clamp(m12, -1, 1))
		if math.Abs(m12) < gimbal {
			e.X = math.Atan2(m32, m22)
			e.Y = math.Atan2(m13, m11)
		} else {
			e.X = math.Atan2(-m23, m33)
		}
	default:
		e.Y = math.Asin(mgl64.Clamp(m13, -1, 1))
		if math.Abs(m13) < gimbal {
			e.X = math.Atan2(-m23, m33)
			e.Z = math.Atan2(-m12, m11)
		} else {
			e.X = math.Atan2(m32, m22)
		}
	}
	return e
}

// Clamp limits each component to [min, max].
func (e Euler) Clamp(min, max mgl64.Vec3) Euler {
	e.X = mgl64.Clamp(e.X, min[0], max[0])
	e.Y = mgl64.Clamp(e.Y, min[1], max[1])
	e.Z = mgl64.Clamp(e.Z, min[2], max[2])
	return e
}
