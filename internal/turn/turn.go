// Package turn rotates the rig from the turn stick, either in discrete
// snaps or continuously, while keeping the head where it is.
package turn

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Versifine/locomotion/internal/axis"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultSnapThreshold     = 0.8
	DefaultIndicatorDuration = 200 * time.Millisecond
	DefaultHapticIntensity   = 0.5
	DefaultHapticDuration    = 50 * time.Millisecond
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Haptic is a vibration request for the turning controller.
type Haptic struct {
	Intensity float64
	Duration  time.Duration
}

// SnapEvent describes one executed snap turn. The host shows the indicator
// for IndicatorDuration and plays Haptic; both are optional.
type SnapEvent struct {
	Direction         Direction
	Yaw               float64
	At                time.Time
	IndicatorDuration time.Duration
	Haptic            Haptic
}

type Config struct {
	Mode          Mode
	SnapDegrees   float64
	SnapThreshold float64
	Cooldown      time.Duration
	SmoothSpeed   float64 // radians per second at full deflection

	IndicatorDuration time.Duration
	Haptic            Haptic
}

// Result is what one tick asks the host to do to the rig: rotate by Yaw
// about world up, then add Correction to its position.
type Result struct {
	Yaw        float64
	Correction mgl64.Vec3
	Snap       *SnapEvent
}

func (r Result) Turned() bool {
	return r.Yaw != 0
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

type Engine struct {
	cfg   Config
	clock Clock
	axis  float64

	lastSnapAt time.Time
	snapped    bool
	lastEvent  SnapEvent
}

// NewEngine validates cfg and builds an engine. The mode cannot change
// afterwards; build a new engine to switch modes.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, clock: systemClock{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (c Config) Validate() error {
	if !c.Mode.valid() {
		return fmt.Errorf("%w: %v", ErrUnknownMode, c.Mode)
	}
	var errs []error
	if c.Mode == Snap {
		if !(c.SnapThreshold > 0 && c.SnapThreshold <= 1) {
			errs = append(errs, fmt.Errorf("snap threshold %v outside (0, 1]", c.SnapThreshold))
		}
		if !finite(c.SnapDegrees) || c.SnapDegrees <= 0 {
			errs = append(errs, fmt.Errorf("snap degrees %v must be positive", c.SnapDegrees))
		}
		if c.Cooldown < 0 {
			errs = append(errs, fmt.Errorf("snap cooldown %v must not be negative", c.Cooldown))
		}
	}
	if c.Mode == Smooth && (!finite(c.SmoothSpeed) || c.SmoothSpeed < 0) {
		errs = append(errs, fmt.Errorf("smooth turn speed %v must be a finite non-negative number", c.SmoothSpeed))
	}
	if !finite(c.Haptic.Intensity) || c.Haptic.Intensity < 0 || c.Haptic.Intensity > 1 {
		errs = append(errs, fmt.Errorf("haptic intensity %v outside [0, 1]", c.Haptic.Intensity))
	}
	return errors.Join(errs...)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (e *Engine) Mode() Mode {
	return e.cfg.Mode
}

// SetAxis stores the latest normalized turn sample. Only X is used.
func (e *Engine) SetAxis(n axis.Normalized) {
	e.axis = n.X
}

// LastSnap returns the most recent snap, if any happened yet.
func (e *Engine) LastSnap() (SnapEvent, bool) {
	return e.lastEvent, e.snapped
}

// Tick advances the engine by dt seconds against the current rig and
// rig-local head transforms.
func (e *Engine) Tick(dt float64, rigT, head rig.Transform) Result {
	switch e.cfg.Mode {
	case Snap:
		return e.snapTurn(rigT, head)
	case Smooth:
		return e.smoothTurn(dt, rigT, head)
	default:
		return Result{}
	}
}

func (e *Engine) snapTurn(rigT, head rig.Transform) Result {
	if math.Abs(e.axis) <= e.cfg.SnapThreshold {
		return Result{}
	}
	now := e.clock.Now()
	if e.snapped && now.Sub(e.lastSnapAt) <= e.cfg.Cooldown {
		return Result{}
	}

	sign := -math.Copysign(1, e.axis)
	yaw := sign * mgl64.DegToRad(e.cfg.SnapDegrees)

	dir := Right
	if sign > 0 {
		dir = Left
	}
	e.lastSnapAt = now
	e.snapped = true
	e.lastEvent = SnapEvent{
		Direction:         dir,
		Yaw:               yaw,
		At:                now,
		IndicatorDuration: e.cfg.IndicatorDuration,
		Haptic:            e.cfg.Haptic,
	}
	evt := e.lastEvent

	return Result{
		Yaw:        yaw,
		Correction: Compensate(rigT, head, yaw),
		Snap:       &evt,
	}
}

func (e *Engine) smoothTurn(dt float64, rigT, head rig.Transform) Result {
	if e.axis == 0 || !finite(dt) || dt <= 0 {
		return Result{}
	}
	yaw := -e.axis * dt * e.cfg.SmoothSpeed
	if yaw == 0 {
		return Result{}
	}
	return Result{
		Yaw:        yaw,
		Correction: Compensate(rigT, head, yaw),
	}
}

// Compensate returns the position correction that keeps the head's world
// position fixed when the rig is rotated by yaw about world up. The head's
// world position is recomposed from the rotated rig, never reused.
func Compensate(rigT, head rig.Transform, yaw float64) mgl64.Vec3 {
	before := rig.HeadWorld(rigT, head).Position

	turned := rigT
	turned.Rotation = rig.YawQuat(yaw).Mul(rigT.Rotation).Normalize()
	after := rig.HeadWorld(turned, head).Position

	return before.Sub(after)
}
