package game

import (
	"errors"
	"math"
)

const (
	MinBalloonSize   = 1.0
	MaxBalloonSize   = 10.0
	DefaultTargetMin = 6.0
	DefaultTargetMax = 10.0

	// sizes are kept on a micro-unit grid so repeated small inflations
	// compare exactly against submitted values.
	sizePrecision = 1e6
)

var (
	ErrInvalidDelta = errors.New("invalid_delta")
	ErrInvalidSize  = errors.New("invalid_size")
	ErrInvalidRange = errors.New("invalid_target_range")
)

func roundSize(v float64) float64 {
	return math.Round(v*sizePrecision) / sizePrecision
}

// Inflate grows size by delta, capped at MaxBalloonSize.
func Inflate(size, delta, maxDelta float64) (float64, error) {
	if math.IsNaN(delta) || delta <= 0 || (maxDelta > 0 && delta > maxDelta) {
		return size, ErrInvalidDelta
	}
	return roundSize(math.Min(size+delta, MaxBalloonSize)), nil
}

// FreezeSize validates a submitted final size. Balloons only grow, so the
// submitted value may not be below the current size; values above the cap
// are clamped.
func FreezeSize(current, final float64) (float64, error) {
	if math.IsNaN(final) || math.IsInf(final, 0) {
		return current, ErrInvalidSize
	}
	final = roundSize(math.Min(final, MaxBalloonSize))
	if final < current {
		return current, ErrInvalidSize
	}
	return final, nil
}

func ValidateTargetRange(min, max float64) error {
	if math.IsNaN(min) || math.IsNaN(max) {
		return ErrInvalidRange
	}
	if min < MinBalloonSize || max > MaxBalloonSize || min > max {
		return ErrInvalidRange
	}
	return nil
}
