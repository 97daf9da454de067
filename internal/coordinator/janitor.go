package coordinator

import (
	"context"
	"errors"
	"time"

	"balloon-duel/internal/game"
	"balloon-duel/internal/store"

	"github.com/rs/zerolog/log"
)

const sweepBatch = 200

// Recover re-arms round timers and resumes settlements left over from a
// previous process. Rounds whose deadline already passed expire right away.
func (c *Coordinator) Recover(ctx context.Context) error {
	playing, err := c.store.List(ctx, store.Filter{Statuses: []game.Status{game.StatusWaitingForSubmissions}})
	if err != nil {
		return err
	}
	armed := 0
	for _, r := range playing {
		if r.Resolved() {
			continue
		}
		if d, ok := c.timers.Deadline(r.RoomID); ok && d.Equal(r.ExpiresAt) {
			continue
		}
		c.timers.Arm(r.RoomID, r.ExpiresAt)
		armed++
	}
	pending, err := c.store.List(ctx, store.Filter{SettlementPending: true})
	if err != nil {
		return err
	}
	for _, r := range pending {
		c.settleAsync(r)
	}
	log.Info().Int("timers", armed).Int("settlements", len(pending)).Msg("coordinator recovered")
	return nil
}

func (c *Coordinator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep(ctx)
			}
		}
	}()
}

// Sweep runs one janitor pass: it expires overdue rounds whose timer was
// lost, cancels idle rooms, retries pending settlements and deletes
// terminal rooms past their retention.
func (c *Coordinator) Sweep(ctx context.Context) {
	now := c.clock()
	due, err := c.store.List(ctx, store.Filter{ExpiresBefore: now, Limit: sweepBatch})
	if err != nil {
		log.Error().Err(err).Msg("janitor list failed")
		return
	}
	for _, r := range due {
		if ctx.Err() != nil {
			return
		}
		switch {
		case r.Settlement.Pending():
			// handled below
		case r.Status == game.StatusWaitingForSubmissions:
			if _, err := c.expire(ctx, r.RoomID); err != nil && !errors.Is(err, ErrNotFound) {
				log.Warn().Err(err).Str("room_id", r.RoomID).Msg("janitor expiry failed")
			}
		case r.Status == game.StatusWaiting || r.Status == game.StatusReadyToStart:
			c.cancelIdle(ctx, r.RoomID)
		case r.Status.Terminal():
			if err := c.store.Delete(ctx, r.RoomID); err != nil && !errors.Is(err, store.ErrNotFound) {
				log.Warn().Err(err).Str("room_id", r.RoomID).Msg("janitor delete failed")
				continue
			}
			c.dropBuffer(r.RoomID)
			log.Debug().Str("room_id", r.RoomID).Msg("room retired")
		}
	}

	pending, err := c.store.List(ctx, store.Filter{SettlementPending: true, Limit: sweepBatch})
	if err != nil {
		log.Error().Err(err).Msg("janitor pending list failed")
		return
	}
	for _, r := range pending {
		if ctx.Err() != nil {
			return
		}
		_, _ = c.driveSettlement(ctx, r)
	}
}

func (c *Coordinator) cancelIdle(ctx context.Context, roomID string) {
	now := c.clock()
	var (
		prev      game.Status
		cancelled bool
	)
	room, err := c.store.Update(ctx, roomID, func(r *game.Room) error {
		prev = r.Status
		cancelled = applyIdleCancel(r, now)
		if !cancelled {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("room_id", roomID).Msg("idle cancel failed")
		}
		return
	}
	if !cancelled {
		return
	}
	log.Info().Str("room_id", roomID).Str("status", string(prev)).Msg("idle room cancelled")
	c.publish(prev, room)
	if _, err := c.driveSettlement(ctx, room); err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("idle refund pending")
	}
}
