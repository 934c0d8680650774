package event

import "github.com/Versifine/locomotion/internal/turn"

const (
	EventSnapTurn  = "turn.snap"
	EventMoveStart = "move.start"
	EventMoveStop  = "move.stop"
)

// SnapTurnEvent is published once per executed snap turn so feedback
// consumers (indicator ring, haptics) can react.
type SnapTurnEvent struct {
	Source string
	turn.SnapEvent
}

// MoveEvent marks the transition between an idle and an active movement
// stick.
type MoveEvent struct {
	Source string
}
