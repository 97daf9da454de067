package game

import "math"

const distancePrecision = 1e9

// Outcome is the result of one round. Winner is empty on a tie.
type Outcome struct {
	Winner           string
	Tie              bool
	CreatorDistance  float64
	OpponentDistance float64
}

func distance(size, target float64) float64 {
	return math.Round(math.Abs(size-target)*distancePrecision) / distancePrecision
}

// Resolve picks the seat whose size lies closest to target. Equal distances
// are a tie.
func Resolve(creator string, creatorSize float64, opponent string, opponentSize float64, target float64) Outcome {
	dc := distance(creatorSize, target)
	do := distance(opponentSize, target)
	out := Outcome{CreatorDistance: dc, OpponentDistance: do}
	switch {
	case dc < do:
		out.Winner = creator
	case do < dc:
		out.Winner = opponent
	default:
		out.Tie = true
	}
	return out
}

// ResolveRoom applies Resolve to the seated players of r.
func ResolveRoom(r *Room) (Outcome, bool) {
	if r.Opponent == nil || r.TargetValue == nil {
		return Outcome{}, false
	}
	return Resolve(r.Creator.Address, r.Creator.BalloonSize, r.Opponent.Address, r.Opponent.BalloonSize, *r.TargetValue), true
}
