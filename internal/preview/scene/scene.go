// Package scene holds the window-independent state of the desktop preview:
// the simulated rig, the head the player steers with the keyboard and the
// snap indicator.
package scene

import (
	"math"
	"time"

	"github.com/Versifine/locomotion/internal/controller"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/Versifine/locomotion/internal/turn"
	"github.com/go-gl/mathgl/mgl64"
)

// LookSpeed is how fast the look keys rotate the simulated head, in radians
// per second.
const LookSpeed = math.Pi / 2

// Keys is the keyboard state the preview falls back to without a gamepad.
type Keys struct {
	Forward, Back, Left, Right bool
	TurnLeft, TurnRight        bool
	LookLeft, LookRight        bool
}

// Axes converts the keyboard state into stick readings laid out like a
// standard gamepad stick.
func (k Keys) Axes() (move, turnAxes []float64) {
	move = []float64{keyAxis(k.Left, k.Right), keyAxis(k.Forward, k.Back)}
	turnAxes = []float64{keyAxis(k.TurnLeft, k.TurnRight), 0}
	return move, turnAxes
}

// Look returns -1, 0 or 1 for the look keys; positive turns the head left.
func (k Keys) Look() float64 {
	return -keyAxis(k.LookLeft, k.LookRight)
}

func keyAxis(neg, pos bool) float64 {
	switch {
	case neg && !pos:
		return -1
	case pos && !neg:
		return 1
	}
	return 0
}

// Indicator is the visible part of a snap event.
type Indicator struct {
	Direction turn.Direction
	Until     time.Time
	Duration  time.Duration
}

// Remaining is the fraction of the indicator's lifetime left at now, zero
// once it has expired.
func (i Indicator) Remaining(now time.Time) float64 {
	if i.Duration <= 0 || !now.Before(i.Until) {
		return 0
	}
	return float64(i.Until.Sub(now)) / float64(i.Duration)
}

type Scene struct {
	ctrl      *controller.Controller
	rig       *rig.Rig
	headYaw   float64
	indicator Indicator
	last      controller.Delta
}

func New(ctrl *controller.Controller, r *rig.Rig) *Scene {
	return &Scene{ctrl: ctrl, rig: r}
}

// Step feeds one frame of input through the controller and applies the
// result to the rig. look is the head's yaw rate in [-1, 1].
func (s *Scene) Step(dt time.Duration, move, turnAxes []float64, look float64) controller.Delta {
	if look != 0 {
		s.headYaw = rig.WrapAngle(s.headYaw + look*LookSpeed*dt.Seconds())
		head := s.rig.HeadTransform()
		head.Rotation = rig.YawQuat(s.headYaw)
		s.rig.SetHead(head)
	}

	s.ctrl.OnMoveInput(move)
	s.ctrl.OnTurnInput(turnAxes)
	d := s.ctrl.Tick(dt)
	s.rig.Apply(d.Position, d.Yaw)

	if d.Snap != nil {
		s.indicator = Indicator{
			Direction: d.Snap.Direction,
			Until:     d.Snap.At.Add(d.Snap.IndicatorDuration),
			Duration:  d.Snap.IndicatorDuration,
		}
	}
	s.last = d
	return d
}

func (s *Scene) Indicator() Indicator { return s.indicator }

func (s *Scene) Rig() *rig.Rig { return s.rig }

func (s *Scene) TurnMode() turn.Mode { return s.ctrl.TurnMode() }

func (s *Scene) LastDelta() controller.Delta { return s.last }

// View maps the horizontal plane onto the screen from above, centred on a
// world point. Forward (-Z) points up the screen.
type View struct {
	CenterX, CenterY float64
	Scale            float64 // pixels per metre
	Origin           mgl64.Vec3
}

func (v View) Project(p mgl64.Vec3) (x, y float32) {
	d := p.Sub(v.Origin)
	return float32(v.CenterX + d.X()*v.Scale), float32(v.CenterY + d.Z()*v.Scale)
}

// Heading returns the screen-space unit direction a rotation faces.
func Heading(q mgl64.Quat) (dx, dy float32) {
	f := q.Rotate(mgl64.Vec3{0, 0, -1})
	f[1] = 0
	if f.Len() == 0 {
		return 0, -1
	}
	f = f.Normalize()
	return float32(f.X()), float32(f.Z())
}
