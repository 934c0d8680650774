// Package controller drives locomotion and turning once per frame against
// a host-supplied rig and head.
package controller

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Versifine/locomotion/internal/axis"
	"github.com/Versifine/locomotion/internal/config"
	"github.com/Versifine/locomotion/internal/event"
	"github.com/Versifine/locomotion/internal/locomotion"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/Versifine/locomotion/internal/turn"
	"github.com/go-gl/mathgl/mgl64"
)

// PoseSource exposes the host's current transforms. RigTransform is in
// world space; HeadTransform is local to the rig.
type PoseSource interface {
	RigTransform() rig.Transform
	HeadTransform() rig.Transform
}

// Delta is one frame's worth of rig changes. Apply Yaw (about world up)
// first, then add Position.
type Delta struct {
	Position mgl64.Vec3
	Yaw      float64
	Snap     *turn.SnapEvent
}

func (d Delta) IsZero() bool {
	return d.Position == (mgl64.Vec3{}) && d.Yaw == 0
}

type Controller struct {
	mu      sync.Mutex
	source  string
	poses   PoseSource
	move    *locomotion.Engine
	turn    *turn.Engine
	bus     *event.Bus
	log     *slog.Logger
	moveDZ  float64
	turnDZ  float64
	moveMap axis.Layout
	turnMap axis.Layout
	moving  bool

	turnOpts []turn.Option
}

type Option func(*Controller)

func WithBus(bus *event.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

// WithSource tags published events, e.g. with a session id.
func WithSource(source string) Option {
	return func(c *Controller) { c.source = source }
}

func WithTurnOptions(opts ...turn.Option) Option {
	return func(c *Controller) { c.turnOpts = append(c.turnOpts, opts...) }
}

// New builds a controller from a validated configuration. It fails when the
// configuration names an unknown turn mode.
func New(cfg *config.Config, poses PoseSource, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("controller config is nil")
	}
	if poses == nil {
		return nil, fmt.Errorf("controller pose source is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		poses:   poses,
		log:     slog.Default(),
		moveDZ:  cfg.Movement.Deadzone,
		turnDZ:  cfg.Turn.Deadzone,
		moveMap: cfg.Axes.Move,
		turnMap: cfg.Axes.Turn,
	}
	for _, opt := range opts {
		opt(c)
	}

	tc, err := cfg.TurnEngineConfig()
	if err != nil {
		return nil, fmt.Errorf("turn engine: %w", err)
	}
	c.turn, err = turn.NewEngine(tc, c.turnOpts...)
	if err != nil {
		return nil, fmt.Errorf("turn engine: %w", err)
	}
	c.move = locomotion.NewEngine(cfg.LocomotionConfig())
	c.turnOpts = nil

	c.log.Debug("Controller ready",
		"move_enabled", cfg.Movement.Enabled,
		"fly", cfg.Movement.Fly,
		"turn_mode", c.turn.Mode().String(),
	)
	return c, nil
}

func (c *Controller) TurnMode() turn.Mode {
	return c.turn.Mode()
}

// OnMoveInput stores the latest movement stick reading. It never touches
// the rig.
func (c *Controller) OnMoveInput(axes []float64) {
	n := axis.NormalizeSample(c.moveMap.Sample(axes), c.moveDZ)
	c.mu.Lock()
	c.move.SetAxis(n)
	c.mu.Unlock()
}

// OnTurnInput stores the latest turn stick reading.
func (c *Controller) OnTurnInput(axes []float64) {
	n := axis.NormalizeSample(c.turnMap.Sample(axes), c.turnDZ)
	c.mu.Lock()
	c.turn.SetAxis(n)
	c.mu.Unlock()
}

// Tick computes the rig delta for a frame that took dt. The pose source is
// read once; the turn correction is computed against the same rig pose as
// the movement, which is exact because a yaw correction only depends on the
// rig's orientation and the head's local offset.
func (c *Controller) Tick(dt time.Duration) Delta {
	seconds := dt.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	rigT := c.poses.RigTransform()
	head := c.poses.HeadTransform()

	c.mu.Lock()
	movement, moved := c.move.Tick(seconds, head.Rotation, rigT.Rotation)
	turned := c.turn.Tick(seconds, rigT, head)
	moveChanged := moved != c.moving
	c.moving = moved
	c.mu.Unlock()

	d := Delta{
		Position: movement.Add(turned.Correction),
		Yaw:      turned.Yaw,
		Snap:     turned.Snap,
	}

	if moveChanged {
		name := event.EventMoveStop
		if moved {
			name = event.EventMoveStart
		}
		c.publish(name, event.MoveEvent{Source: c.source})
	}
	if d.Snap != nil {
		c.log.Debug("Snap turn", "source", c.source, "direction", d.Snap.Direction.String(), "yaw", d.Snap.Yaw)
		c.publish(event.EventSnapTurn, event.SnapTurnEvent{Source: c.source, SnapEvent: *d.Snap})
	}
	return d
}

// LastSnap returns the most recent snap turn, if any.
func (c *Controller) LastSnap() (turn.SnapEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turn.LastSnap()
}

func (c *Controller) publish(name string, evt any) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(name, evt)
}
