package rig

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Up is the world up axis. Yaw is a rotation about it; positive yaw turns
// left when seen from above.
var Up = mgl64.Vec3{0, 1, 0}

const gimbalLimit = 0.9999999

// Transform is a position and orientation pair. The rig transform is in
// world space, the head transform is local to the rig.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

func Identity() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// Compose returns child expressed in the space t lives in.
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Position: t.Position.Add(t.Rotation.Rotate(child.Position)),
		Rotation: t.Rotation.Mul(child.Rotation).Normalize(),
	}
}

// HeadWorld recomposes the head's world transform from the rig and the
// rig-local head transform. It is computed on every call.
func HeadWorld(rigT, head Transform) Transform {
	return rigT.Compose(head)
}

func YawQuat(yaw float64) mgl64.Quat {
	return mgl64.QuatRotate(yaw, Up)
}

// Euler holds intrinsic Y-X-Z angles in radians.
type Euler struct {
	Yaw   float64
	Pitch float64
	Roll  float64
}

// EulerYXZ decomposes q into yaw (Y), pitch (X) and roll (Z) such that
// q = Ry(yaw) * Rx(pitch) * Rz(roll).
func EulerYXZ(q mgl64.Quat) Euler {
	m := q.Normalize().Mat4()
	m23 := mgl64.Clamp(m.At(1, 2), -1, 1)

	e := Euler{Pitch: math.Asin(-m23)}
	if math.Abs(m23) < gimbalLimit {
		e.Yaw = math.Atan2(m.At(0, 2), m.At(2, 2))
		e.Roll = math.Atan2(m.At(1, 0), m.At(1, 1))
	} else {
		e.Yaw = math.Atan2(-m.At(2, 0), m.At(0, 0))
	}
	return e
}

func (e Euler) Quat() mgl64.Quat {
	return YawQuat(e.Yaw).
		Mul(mgl64.QuatRotate(e.Pitch, mgl64.Vec3{1, 0, 0})).
		Mul(mgl64.QuatRotate(e.Roll, mgl64.Vec3{0, 0, 1})).
		Normalize()
}

// Yaw returns the heading component of q.
func Yaw(q mgl64.Quat) float64 {
	return EulerYXZ(q).Yaw
}

// WrapAngle maps v into (-pi, pi].
func WrapAngle(v float64) float64 {
	for v <= -math.Pi {
		v += 2 * math.Pi
	}
	for v > math.Pi {
		v -= 2 * math.Pi
	}
	return v
}
