package coordinator

import (
	"errors"
	"fmt"
	"time"

	"balloon-duel/internal/game"
	"balloon-duel/internal/settlement"
)

// The functions below are the only code that changes a Room. Each runs
// inside RoomStore.Update, so it sees the latest committed room and either
// returns nil with a valid next state or an error with no effect.

func guardSettlement(r *game.Room) error {
	if r.Settlement.Pending() {
		return reject(ErrInvalidTransition, "settlement pending")
	}
	return nil
}

func applyJoin(r *game.Room, address, stakeTx string, now time.Time, idleTTL time.Duration) error {
	if err := guardSettlement(r); err != nil {
		return err
	}
	if r.Full() {
		return reject(ErrConflict, "room is full")
	}
	if r.Status != game.StatusWaiting {
		return reject(ErrInvalidTransition, "room is "+string(r.Status))
	}
	if r.Creator.Address == address {
		return reject(ErrConflict, "creator cannot join own room")
	}
	p := game.NewPlayer(address, stakeTx, now)
	r.Opponent = &p
	r.Status = game.StatusReadyToStart
	r.UpdatedAt = now
	r.ExpiresAt = now.Add(idleTTL)
	return nil
}

// applyConfirm reports whether this confirmation started the round.
func applyConfirm(r *game.Room, address string, now time.Time, play time.Duration, targets game.TargetSource) (bool, error) {
	if err := guardSettlement(r); err != nil {
		return false, err
	}
	if r.Status != game.StatusReadyToStart {
		return false, reject(ErrInvalidTransition, "room is "+string(r.Status))
	}
	seat := r.Seat(address)
	if seat == nil {
		return false, reject(ErrUnauthorized, "not seated")
	}
	if seat.HasConfirmedStart {
		return false, reject(ErrConflict, "already confirmed")
	}
	seat.HasConfirmedStart = true
	seat.ConfirmedAt = &now
	r.UpdatedAt = now
	if !r.AllConfirmed() {
		return false, nil
	}
	target, err := targets.Draw(r.TargetMin, r.TargetMax)
	if err != nil {
		return false, fmt.Errorf("draw target: %w", err)
	}
	r.TargetValue = &target
	r.Status = game.StatusWaitingForSubmissions
	r.RoundStartedAt = &now
	r.ExpiresAt = now.Add(play)
	return true, nil
}

func playable(r *game.Room, address string, now time.Time) (*game.Player, error) {
	switch r.Status {
	case game.StatusWaitingForSubmissions, game.StatusFinished:
	default:
		return nil, reject(ErrInvalidTransition, "room is "+string(r.Status))
	}
	seat := r.Seat(address)
	if seat == nil {
		return nil, reject(ErrUnauthorized, "not seated")
	}
	if seat.HasSubmitted {
		return nil, reject(ErrConflict, "already submitted")
	}
	if !now.Before(r.ExpiresAt) {
		return nil, reject(ErrInvalidTransition, "round expired")
	}
	return seat, nil
}

func applyInflate(r *game.Room, address string, delta, maxDelta float64, now time.Time) error {
	if r.Resolved() {
		return reject(ErrInvalidTransition, "round already resolved")
	}
	seat, err := playable(r, address, now)
	if err != nil {
		return err
	}
	size, err := game.Inflate(seat.BalloonSize, delta, maxDelta)
	if err != nil {
		return reject(ErrInvalidRequest, fmt.Sprintf("delta must be in (0, %v]", maxDelta))
	}
	seat.BalloonSize = size
	r.UpdatedAt = now
	return nil
}

// applySubmit reports whether this submission resolved the round.
func applySubmit(r *game.Room, address string, finalSize float64, now time.Time, feePercent float64) (bool, error) {
	seat, err := playable(r, address, now)
	if err != nil {
		return false, err
	}
	size, err := game.FreezeSize(seat.BalloonSize, finalSize)
	if err != nil {
		if errors.Is(err, game.ErrInvalidSize) {
			return false, reject(ErrInvalidRequest, fmt.Sprintf("final size must be in [%v, %v]", seat.BalloonSize, game.MaxBalloonSize))
		}
		return false, err
	}
	seat.BalloonSize = size
	seat.HasSubmitted = true
	seat.SubmittedAt = &now
	r.UpdatedAt = now
	return resolveIfComplete(r, now, feePercent), nil
}

// applyExpire auto-submits every seat that has not submitted yet. It reports
// false when the round was already resolved or never started.
func applyExpire(r *game.Room, now time.Time, feePercent float64) bool {
	if r.Status != game.StatusWaitingForSubmissions || r.Resolved() {
		return false
	}
	for _, p := range r.Players() {
		if p.HasSubmitted {
			continue
		}
		p.HasSubmitted = true
		p.AutoSubmitted = true
		p.SubmittedAt = &now
	}
	r.UpdatedAt = now
	return resolveIfComplete(r, now, feePercent)
}

// resolveIfComplete fixes the winner and queues the settlement once every
// seat has submitted. Guarded by Resolved so it runs at most once per room.
func resolveIfComplete(r *game.Room, now time.Time, feePercent float64) bool {
	if !r.AllSubmitted() || r.Resolved() {
		return false
	}
	outcome, ok := game.ResolveRoom(r)
	if !ok {
		return false
	}
	if !outcome.Tie {
		w := outcome.Winner
		r.Winner = &w
	}
	r.ResolvedAt = &now
	r.Settlement = &game.Settlement{
		Key:         settlement.SettleKey(r.RoomID, outcome.Winner),
		Kind:        game.SettlementPayout,
		Status:      game.SettlementPending,
		Outcome:     game.StatusFinished,
		Winner:      outcome.Winner,
		Addresses:   r.Addresses(),
		FeePercent:  feePercent,
		RequestedAt: now,
	}
	return true
}

func applyCancel(r *game.Room, address string, now time.Time) error {
	if err := guardSettlement(r); err != nil {
		return err
	}
	if r.Status != game.StatusWaiting {
		return reject(ErrInvalidTransition, "room is "+string(r.Status))
	}
	if r.Creator.Address != address {
		return reject(ErrUnauthorized, "only the creator may cancel")
	}
	queueRefund(r, now)
	return nil
}

// applyIdleCancel abandons a room nobody has started playing. It reports
// false when the room is not idle.
func applyIdleCancel(r *game.Room, now time.Time) bool {
	if r.Settlement != nil || now.Before(r.ExpiresAt) {
		return false
	}
	if r.Status != game.StatusWaiting && r.Status != game.StatusReadyToStart {
		return false
	}
	queueRefund(r, now)
	return true
}

func queueRefund(r *game.Room, now time.Time) {
	r.UpdatedAt = now
	r.Settlement = &game.Settlement{
		Key:         settlement.RefundKey(r.RoomID),
		Kind:        game.SettlementRefund,
		Status:      game.SettlementPending,
		Outcome:     game.StatusCancelled,
		Addresses:   r.Addresses(),
		RequestedAt: now,
	}
}

// applySettled moves the room into its terminal status once the escrow has
// confirmed key.
func applySettled(r *game.Room, key string, rec settlement.Receipt, now time.Time, retention time.Duration) bool {
	if !r.Settlement.Pending() || r.Settlement.Key != key {
		return false
	}
	r.Settlement.Status = game.SettlementConfirmed
	r.Settlement.TxRef = rec.TxRef
	r.Settlement.Attempts += max(rec.Attempts, 1)
	r.Settlement.LastError = ""
	r.Settlement.ConfirmedAt = &now
	r.Status = r.Settlement.Outcome
	r.UpdatedAt = now
	r.ExpiresAt = now.Add(retention)
	return true
}

func applySettleFailed(r *game.Room, key string, attempts int, cause error, now time.Time) bool {
	if !r.Settlement.Pending() || r.Settlement.Key != key {
		return false
	}
	r.Settlement.Attempts += max(attempts, 1)
	r.Settlement.LastError = cause.Error()
	r.UpdatedAt = now
	return true
}
