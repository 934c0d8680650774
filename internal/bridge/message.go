package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Versifine/locomotion/internal/controller"
	"github.com/Versifine/locomotion/internal/rig"
	"github.com/Versifine/locomotion/internal/turn"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	TypeHello = "hello"
	TypeAxis  = "axis"
	TypeFrame = "frame"
	TypeDelta = "delta"
	TypeSnap  = "snap"
	TypeError = "error"

	HandMove = "move"
	HandTurn = "turn"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrUnknownHand = errors.New("unknown hand")
	ErrBadPose     = errors.New("bad pose")
)

type envelope struct {
	Type string `json:"type"`
}

type AxisMessage struct {
	Type string    `json:"type"`
	Hand string    `json:"hand"`
	Axes []float64 `json:"axes"`
}

// Pose is a transform on the wire. Rotation is ordered x, y, z, w like
// WebXR's DOMPointReadOnly.
type Pose struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
}

type FrameMessage struct {
	Type string  `json:"type"`
	DtMS float64 `json:"dt_ms"`
	Rig  Pose    `json:"rig"`
	Head Pose    `json:"head"`
}

type HelloMessage struct {
	Type     string `json:"type"`
	Session  string `json:"session"`
	TurnMode string `json:"turn_mode"`
}

type DeltaMessage struct {
	Type     string     `json:"type"`
	Position [3]float64 `json:"position"`
	Yaw      float64    `json:"yaw"`
}

type HapticMessage struct {
	Intensity  float64 `json:"intensity"`
	DurationMS int64   `json:"duration_ms"`
}

type SnapMessage struct {
	Type        string        `json:"type"`
	Direction   string        `json:"direction"`
	Yaw         float64       `json:"yaw"`
	IndicatorMS int64         `json:"indicator_ms"`
	Haptic      HapticMessage `json:"haptic"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// decode parses one client message into *AxisMessage or *FrameMessage.
func decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	switch env.Type {
	case TypeAxis:
		var msg AxisMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode axis: %w", err)
		}
		if msg.Hand != HandMove && msg.Hand != HandTurn {
			return nil, fmt.Errorf("%w: %q", ErrUnknownHand, msg.Hand)
		}
		return &msg, nil
	case TypeFrame:
		var msg FrameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		return &msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Transform converts p to a rig transform. A zero rotation reads as the
// identity; anything else is normalized.
func (p Pose) Transform() (rig.Transform, error) {
	for _, v := range p.Position {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return rig.Transform{}, fmt.Errorf("%w: position %v", ErrBadPose, p.Position)
		}
	}
	q := mgl64.Quat{W: p.Rotation[3], V: mgl64.Vec3{p.Rotation[0], p.Rotation[1], p.Rotation[2]}}
	if q == (mgl64.Quat{}) {
		q = mgl64.QuatIdent()
	}
	l := q.Len()
	if math.IsNaN(l) || math.IsInf(l, 0) {
		return rig.Transform{}, fmt.Errorf("%w: rotation %v", ErrBadPose, p.Rotation)
	}
	return rig.Transform{
		Position: mgl64.Vec3(p.Position),
		Rotation: q.Normalize(),
	}, nil
}

func (m FrameMessage) dt() time.Duration {
	if m.DtMS <= 0 || math.IsNaN(m.DtMS) || math.IsInf(m.DtMS, 0) {
		return 0
	}
	return time.Duration(m.DtMS * float64(time.Millisecond))
}

func newDeltaMessage(d controller.Delta) DeltaMessage {
	return DeltaMessage{
		Type:     TypeDelta,
		Position: [3]float64(d.Position),
		Yaw:      d.Yaw,
	}
}

func newSnapMessage(evt turn.SnapEvent) SnapMessage {
	return SnapMessage{
		Type:        TypeSnap,
		Direction:   evt.Direction.String(),
		Yaw:         evt.Yaw,
		IndicatorMS: evt.IndicatorDuration.Milliseconds(),
		Haptic: HapticMessage{
			Intensity:  evt.Haptic.Intensity,
			DurationMS: evt.Haptic.Duration.Milliseconds(),
		},
	}
}
