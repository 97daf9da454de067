package duel

import "balloon-duel/internal/game/viewmodel"

type CreateRoomRequest struct {
	Stake     float64 `json:"stake"`
	TargetMin float64 `json:"target_min,omitempty"`
	TargetMax float64 `json:"target_max,omitempty"`
	// StakeTx is set when the client already locked its stake itself.
	StakeTx string `json:"stake_tx,omitempty"`
}

type JoinRoomRequest struct {
	StakeTx string `json:"stake_tx,omitempty"`
}

type InflateRequest struct {
	Delta float64 `json:"delta"`
}

type SubmitRequest struct {
	FinalSize float64 `json:"final_size"`
}

type RoomsResponse struct {
	Items  []viewmodel.RoomState `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}
