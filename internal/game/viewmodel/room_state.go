package viewmodel

import (
	"time"

	"balloon-duel/internal/game"
)

type PlayerView struct {
	Address           string     `json:"address"`
	BalloonSize       float64    `json:"balloon_size"`
	HasConfirmedStart bool       `json:"has_confirmed_start"`
	HasSubmitted      bool       `json:"has_submitted"`
	AutoSubmitted     bool       `json:"auto_submitted"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
}

type SettlementView struct {
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	TxRef     string `json:"tx_ref,omitempty"`
}

// RoomState is what clients see. TargetValue stays nil until the round is
// resolved, even though the server fixed it when play began.
type RoomState struct {
	RoomID      string          `json:"room_id"`
	Status      string          `json:"status"`
	StakeAmount float64         `json:"stake_amount"`
	Creator     PlayerView      `json:"creator"`
	Opponent    *PlayerView     `json:"opponent"`
	TargetMin   float64         `json:"target_min"`
	TargetMax   float64         `json:"target_max"`
	TargetValue *float64        `json:"target_value"`
	Winner      *string         `json:"winner"`
	Tie         bool            `json:"tie"`
	Settlement  *SettlementView `json:"settlement,omitempty"`
	RemainingMS int64           `json:"remaining_ms"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

func BuildRoomState(r *game.Room, now time.Time) RoomState {
	out := RoomState{
		RoomID:      r.RoomID,
		Status:      string(r.Status),
		StakeAmount: r.StakeAmount,
		Creator:     playerView(r.Creator),
		TargetMin:   r.TargetMin,
		TargetMax:   r.TargetMax,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
	if r.Opponent != nil {
		pv := playerView(*r.Opponent)
		out.Opponent = &pv
	}
	if r.Resolved() && r.TargetValue != nil {
		v := *r.TargetValue
		out.TargetValue = &v
		if r.Winner != nil {
			w := *r.Winner
			out.Winner = &w
		} else {
			out.Tie = true
		}
	}
	if r.Settlement != nil {
		out.Settlement = &SettlementView{
			Kind:      string(r.Settlement.Kind),
			Status:    string(r.Settlement.Status),
			Attempts:  r.Settlement.Attempts,
			LastError: r.Settlement.LastError,
			TxRef:     r.Settlement.TxRef,
		}
	}
	if r.Status == game.StatusWaitingForSubmissions && !r.Resolved() {
		if left := r.ExpiresAt.Sub(now); left > 0 {
			out.RemainingMS = left.Milliseconds()
		}
	}
	return out
}

func BuildRoomStates(rooms []*game.Room, now time.Time) []RoomState {
	out := make([]RoomState, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, BuildRoomState(r, now))
	}
	return out
}

func playerView(p game.Player) PlayerView {
	return PlayerView{
		Address:           p.Address,
		BalloonSize:       p.BalloonSize,
		HasConfirmedStart: p.HasConfirmedStart,
		HasSubmitted:      p.HasSubmitted,
		AutoSubmitted:     p.AutoSubmitted,
		ConfirmedAt:       p.ConfirmedAt,
		SubmittedAt:       p.SubmittedAt,
	}
}
