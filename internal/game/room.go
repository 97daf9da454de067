package game

import "time"

type Status string

const (
	StatusWaiting               Status = "waiting"
	StatusReadyToStart          Status = "readyToStart"
	StatusWaitingForSubmissions Status = "waitingForSubmissions"
	StatusFinished              Status = "finished"
	StatusCancelled             Status = "cancelled"
)

// Terminal reports whether the room only accepts reads.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusReadyToStart, StatusWaitingForSubmissions, StatusFinished, StatusCancelled:
		return true
	default:
		return false
	}
}

type Player struct {
	Address           string     `json:"address"`
	BalloonSize       float64    `json:"balloon_size"`
	HasConfirmedStart bool       `json:"has_confirmed_start"`
	HasSubmitted      bool       `json:"has_submitted"`
	AutoSubmitted     bool       `json:"auto_submitted,omitempty"`
	StakeTx           string     `json:"stake_tx,omitempty"`
	JoinedAt          time.Time  `json:"joined_at"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	SubmittedAt       *time.Time `json:"submitted_at,omitempty"`
}

func NewPlayer(address, stakeTx string, now time.Time) Player {
	return Player{
		Address:     address,
		BalloonSize: MinBalloonSize,
		StakeTx:     stakeTx,
		JoinedAt:    now,
	}
}

type SettlementKind string

const (
	SettlementPayout SettlementKind = "settle"
	SettlementRefund SettlementKind = "refund"
)

type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementConfirmed SettlementStatus = "confirmed"
)

// Settlement tracks the single escrow call that moves a room into its
// terminal status. Key is stable across retries.
type Settlement struct {
	Key         string           `json:"key"`
	Kind        SettlementKind   `json:"kind"`
	Status      SettlementStatus `json:"status"`
	Outcome     Status           `json:"outcome"`
	Winner      string           `json:"winner,omitempty"`
	Addresses   []string         `json:"addresses"`
	FeePercent  float64          `json:"fee_percent"`
	Attempts    int              `json:"attempts"`
	LastError   string           `json:"last_error,omitempty"`
	TxRef       string           `json:"tx_ref,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	ConfirmedAt *time.Time       `json:"confirmed_at,omitempty"`
}

func (s *Settlement) Pending() bool {
	return s != nil && s.Status == SettlementPending
}

type Room struct {
	RoomID      string      `json:"room_id"`
	Creator     Player      `json:"creator"`
	Opponent    *Player     `json:"opponent,omitempty"`
	Status      Status      `json:"status"`
	StakeAmount float64     `json:"stake_amount"`
	TargetMin   float64     `json:"target_min"`
	TargetMax   float64     `json:"target_max"`
	TargetValue *float64    `json:"target_value,omitempty"`
	Winner      *string     `json:"winner,omitempty"`
	Settlement  *Settlement `json:"settlement,omitempty"`
	Version     int64       `json:"version"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	RoundStartedAt *time.Time `json:"round_started_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// Seat returns the seated player with the given address, or nil.
func (r *Room) Seat(address string) *Player {
	if r.Creator.Address == address {
		return &r.Creator
	}
	if r.Opponent != nil && r.Opponent.Address == address {
		return r.Opponent
	}
	return nil
}

func (r *Room) Players() []*Player {
	if r.Opponent == nil {
		return []*Player{&r.Creator}
	}
	return []*Player{&r.Creator, r.Opponent}
}

func (r *Room) Addresses() []string {
	out := make([]string, 0, 2)
	for _, p := range r.Players() {
		out = append(out, p.Address)
	}
	return out
}

func (r *Room) Full() bool {
	return r.Opponent != nil
}

func (r *Room) AllConfirmed() bool {
	return r.Full() && r.Creator.HasConfirmedStart && r.Opponent.HasConfirmedStart
}

func (r *Room) AllSubmitted() bool {
	return r.Full() && r.Creator.HasSubmitted && r.Opponent.HasSubmitted
}

// Resolved reports whether the round outcome has been fixed.
func (r *Room) Resolved() bool {
	return r.ResolvedAt != nil
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	out := *r
	out.Creator = r.Creator.clone()
	if r.Opponent != nil {
		p := r.Opponent.clone()
		out.Opponent = &p
	}
	out.TargetValue = cloneFloat(r.TargetValue)
	if r.Winner != nil {
		w := *r.Winner
		out.Winner = &w
	}
	if r.Settlement != nil {
		s := *r.Settlement
		s.Addresses = append([]string(nil), r.Settlement.Addresses...)
		s.ConfirmedAt = cloneTime(r.Settlement.ConfirmedAt)
		out.Settlement = &s
	}
	out.RoundStartedAt = cloneTime(r.RoundStartedAt)
	out.ResolvedAt = cloneTime(r.ResolvedAt)
	return &out
}

func (p Player) clone() Player {
	out := p
	out.ConfirmedAt = cloneTime(p.ConfirmedAt)
	out.SubmittedAt = cloneTime(p.SubmittedAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
