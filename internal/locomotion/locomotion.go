// Package locomotion converts the movement stick into a world-space
// position delta for the rig.
package locomotion

import (
	"github.com/Versifine/locomotion/internal/axis"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/go-gl/mathgl/mgl64"
)

type Config struct {
	Enabled bool
	Fly     bool
	Speed   float64 // units per second
}

// Engine owns the latest movement sample and turns it into a delta each
// frame.
type Engine struct {
	cfg  Config
	axis axis.Normalized
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// SetAxis stores the latest normalized movement sample. Only the most
// recent sample matters, so earlier ones are overwritten.
func (e *Engine) SetAxis(n axis.Normalized) {
	e.axis = n
}

func (e *Engine) Axis() axis.Normalized {
	return e.axis
}

// Tick returns the delta for dt seconds of movement. moved is false when the
// engine is disabled or the stick is centered, in which case the caller can
// skip the rest of its frame work.
func (e *Engine) Tick(dt float64, head, rigRot mgl64.Quat) (delta mgl64.Vec3, moved bool) {
	if !e.cfg.Enabled || e.axis.IsZero() {
		return mgl64.Vec3{}, false
	}
	return ComputeDelta(e.axis, dt, head, rigRot, e.cfg.Fly, e.cfg.Speed), true
}

// ComputeDelta returns the world-space displacement for one frame. The stick
// maps onto the head's planar frame as (X, 0, Y). Without fly only the head's
// yaw steers, so the result never has a vertical component while the rig
// stays upright.
func ComputeDelta(n axis.Normalized, dt float64, head, rigRot mgl64.Quat, fly bool, speed float64) mgl64.Vec3 {
	if n.IsZero() {
		return mgl64.Vec3{}
	}

	dir := mgl64.Vec3{n.X, 0, n.Y}
	if l := dir.Len(); l > 0 {
		dir = dir.Mul(1 / l)
	} else {
		return mgl64.Vec3{}
	}

	steer := head.Normalize()
	if !fly {
		steer = rig.YawQuat(rig.Yaw(head))
	}

	scaled := dir.Mul(speed * dt)
	return rigRot.Rotate(steer.Rotate(scaled))
}
