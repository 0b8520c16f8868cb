package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	Up      = mgl64.Vec3{0, 1, 0}
	Forward = mgl64.Vec3{0, 0, 1}
)

// WrapAngle maps a radian angle into (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// RotateY rotates v about the world up axis.
func RotateY(v mgl64.Vec3, angle float64) mgl64.Vec3 {
	return mgl64.QuatRotate(angle, Up).Rotate(v)
}

// Compose builds a TRS matrix.
func Compose(position mgl64.Vec3, rotation mgl64.Quat, scale mgl64.Vec3) mgl64.Mat4 {
	return mgl64.Translate3D(position[0], position[1], position[2]).
		Mul4(rotation.Mat4()).
		Mul4(mgl64.Scale3D(scale[0], scale[1], scale[2]))
}

// Decompose splits an affine TRS matrix back into its parts.
func Decompose(m mgl64.Mat4) (position mgl64.Vec3, rotation mgl64.Quat, scale mgl64.Vec3) {
	sx := m.Col(0).Vec3().Len()
	sy := m.Col(1).Vec3().Len()
	sz := m.Col(2).Vec3().Len()
	if m.Det() < 0 {
		sx = -sx
	}
	position = m.Col(3).Vec3()
	scale = mgl64.Vec3{sx, sy, sz}

	r := mgl64.Ident4()
	for i, s := range []float64{sx, sy, sz} {
		if s == 0 {
			continue
		}
		c := m.Col(i).Vec3().Mul(1 / s)
		r.SetCol(i, c.Vec4(0))
	}
	rotation = mgl64.Mat4ToQuat(r).Normalize()
	return position, rotation, scale
}

// SafeNormalize returns the unit vector of v, or false when v has no length.
func SafeNormalize(v mgl64.Vec3) (mgl64.Vec3, bool) {
	l := v.Len()
	if l < 1e-12 || math.IsNaN(l) {
		return mgl64.Vec3{}, false
	}
	return v.Mul(1 / l), true
}
