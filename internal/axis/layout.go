package axis

import (
	"errors"

	"github.com/samber/lo"
)

// Layout maps a controller's raw axis array onto a Sample. Each component
// lists candidate indices in order of preference: the first index that is
// present and non-zero wins. Some runtimes report the thumbstick on axes
// 2/3 and others on 0/1, so the default tries both.
type Layout struct {
	X []int `yaml:"x"`
	Y []int `yaml:"y"`
}

func DefaultLayout() Layout {
	return Layout{
		X: []int{2, 0},
		Y: []int{3, 1},
	}
}

func (l Layout) Validate() error {
	if len(l.X) == 0 || len(l.Y) == 0 {
		return errors.New("axis layout needs at least one index per component")
	}
	for _, idx := range append(append([]int{}, l.X...), l.Y...) {
		if idx < 0 {
			return errors.New("axis layout index must not be negative")
		}
	}
	return nil
}

// Sample picks the raw values for this layout out of axes.
func (l Layout) Sample(axes []float64) Sample {
	return Sample{
		X: pick(axes, l.X),
		Y: pick(axes, l.Y),
	}
}

func pick(axes []float64, candidates []int) float64 {
	idx, ok := lo.Find(candidates, func(i int) bool {
		return i >= 0 && i < len(axes) && axes[i] != 0
	})
	if !ok {
		return 0
	}
	return axes[idx]
}
