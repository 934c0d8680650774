// Package axis turns raw thumbstick readings into deadzone-corrected values.
package axis

import (
	"fmt"
	"math"

	"github.com/samber/lo"
)

// Sample is a raw thumbstick reading. Components are nominally in [-1, 1].
type Sample struct {
	X float64
	Y float64
}

// Normalized is a deadzone-corrected sample. Components inside the deadzone
// are exactly zero and the remainder is rescaled to fill [-1, 1].
type Normalized struct {
	X float64
	Y float64
}

func (n Normalized) IsZero() bool {
	return n.X == 0 && n.Y == 0
}

// Normalize applies deadzone d to a single raw component. Out-of-range
// input is clamped and NaN reads as zero; d must already satisfy
// ValidateDeadzone.
func Normalize(r, d float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	r = lo.Clamp(r, -1, 1)
	if math.Abs(r) <= d {
		return 0
	}
	sign := 1.0
	if r < 0 {
		sign = -1
	}
	return (r - sign*d) / (1 - d)
}

func NormalizeSample(s Sample, d float64) Normalized {
	return Normalized{
		X: Normalize(s.X, d),
		Y: Normalize(s.Y, d),
	}
}

func ValidateDeadzone(d float64) error {
	if math.IsNaN(d) || d < 0 || d >= 1 {
		return fmt.Errorf("deadzone %v outside [0, 1)", d)
	}
	return nil
}
