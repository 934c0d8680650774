package turn

import (
	"errors"
	"fmt"
	"strings"
)

type Mode int

const (
	Disabled Mode = iota
	Snap
	Smooth
)

var ErrUnknownMode = errors.New("unknown turn mode")

// ParseMode accepts the configuration spellings of a turn mode. "none" is
// kept as an alias of "disabled".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "disabled", "off":
		return Disabled, nil
	case "snap":
		return Snap, nil
	case "smooth":
		return Smooth, nil
	default:
		return Disabled, fmt.Errorf("%w: %q (want none, snap or smooth)", ErrUnknownMode, s)
	}
}

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "none"
	case Snap:
		return "snap"
	case Smooth:
		return "smooth"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func (m Mode) valid() bool {
	return m == Disabled || m == Snap || m == Smooth
}

// Direction is the side a snap turn went to.
type Direction int

const (
	Left Direction = iota + 1
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}
