package game

import (
	"crypto/rand"
	"encoding/binary"
	"math"
)

// TargetSource draws the hidden target for a round.
type TargetSource interface {
	Draw(min, max float64) (float64, error)
}

// CryptoTarget draws targets from the operating system CSPRNG so neither
// client can predict them from earlier rounds.
type CryptoTarget struct{}

func (CryptoTarget) Draw(min, max float64) (float64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	// 53 random bits -> uniform float in [0, 1]
	u := float64(binary.BigEndian.Uint64(b[:])>>11) / float64(uint64(1)<<53-1)
	v := min + u*(max-min)
	return math.Max(min, math.Min(max, v)), nil
}

// FixedTarget always returns the same value clamped into the range.
type FixedTarget float64

func (f FixedTarget) Draw(min, max float64) (float64, error) {
	return math.Max(min, math.Min(max, float64(f))), nil
}
