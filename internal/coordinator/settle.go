package coordinator

import (
	"context"
	"errors"
	"fmt"

	"balloon-duel/internal/game"
	"balloon-duel/internal/settlement"
	"balloon-duel/internal/store"

	"github.com/rs/zerolog/log"
)

// driveSettlement calls the gateway for the room's pending settlement and
// commits the outcome. Only one call per key runs at a time inside this
// process; the gateway's idempotency covers everything else.
func (c *Coordinator) driveSettlement(ctx context.Context, room *game.Room) (*game.Room, error) {
	s := room.Settlement
	if !s.Pending() {
		return room, nil
	}
	if !c.claim(s.Key) {
		return room, nil
	}
	defer c.release(s.Key)

	var (
		rec settlement.Receipt
		err error
	)
	switch s.Kind {
	case game.SettlementPayout:
		rec, err = c.gateway.Settle(ctx, settlement.SettleRequest{
			Key:         s.Key,
			RoomID:      room.RoomID,
			Winner:      s.Winner,
			Addresses:   s.Addresses,
			StakeAmount: room.StakeAmount,
			FeePercent:  s.FeePercent,
		})
	case game.SettlementRefund:
		rec, err = c.gateway.Refund(ctx, settlement.RefundRequest{
			Key:         s.Key,
			RoomID:      room.RoomID,
			Addresses:   s.Addresses,
			StakeAmount: room.StakeAmount,
		})
	default:
		return room, fmt.Errorf("room %s: unknown settlement kind %q", room.RoomID, s.Kind)
	}

	now := c.clock()
	prev := room.Status
	if err != nil {
		attempts := 1
		var fe *settlement.FailureError
		if errors.As(err, &fe) {
			attempts = fe.Attempts
		}
		updated, uerr := c.store.Update(ctx, room.RoomID, func(r *game.Room) error {
			if !applySettleFailed(r, s.Key, attempts, err, now) {
				return store.ErrNoChange
			}
			return nil
		})
		log.Error().
			Err(err).
			Str("room_id", room.RoomID).
			Str("settlement_key", s.Key).
			Msg("settlement not confirmed; will retry")
		if uerr != nil {
			return room, errors.Join(err, uerr)
		}
		c.publish(prev, updated)
		if !errors.Is(err, ErrSettlementFailure) {
			err = fmt.Errorf("%w: %v", ErrSettlementFailure, err)
		}
		return updated, err
	}

	updated, err := c.store.Update(ctx, room.RoomID, func(r *game.Room) error {
		if !applySettled(r, s.Key, rec, now, c.cfg.ResultRetention()) {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return room, err
	}
	log.Info().
		Str("room_id", updated.RoomID).
		Str("status", string(updated.Status)).
		Str("settlement_key", s.Key).
		Str("tx_ref", rec.TxRef).
		Msg("room settled")
	c.publish(prev, updated)
	return updated, nil
}

// settleAsync drives the room's pending settlement off the caller's path.
// Clients learn the outcome from the event stream or a later read.
func (c *Coordinator) settleAsync(room *game.Room) {
	if !room.Settlement.Pending() {
		return
	}
	c.settling.Add(1)
	go func() {
		defer c.settling.Done()
		ctx, cancel := context.WithTimeout(c.ctx, settleTimeout)
		defer cancel()
		_, _ = c.driveSettlement(ctx, room)
	}()
}

// WaitSettlements blocks until every background settlement started so far
// has returned.
func (c *Coordinator) WaitSettlements() {
	c.settling.Wait()
}

func (c *Coordinator) claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, key)
}

// RetrySettlement re-drives a room's pending settlement immediately.
func (c *Coordinator) RetrySettlement(ctx context.Context, roomID string) (*game.Room, error) {
	room, err := c.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Settlement.Pending() {
		return nil, reject(ErrInvalidTransition, "no pending settlement")
	}
	return c.driveSettlement(ctx, room)
}
