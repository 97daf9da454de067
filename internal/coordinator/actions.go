package coordinator

import (
	"context"
	"errors"
	"math"
	"strings"

	"balloon-duel/internal/game"
	"balloon-duel/internal/store"

	"github.com/rs/zerolog/log"
)

type CreateParams struct {
	// RoomID is optional; callers that lock stakes before creating the room
	// pass the id the stake was locked for.
	RoomID    string
	Creator   string
	Stake     float64
	TargetMin float64
	TargetMax float64
	StakeTx   string
}

func (c *Coordinator) CreateRoom(ctx context.Context, p CreateParams) (*game.Room, error) {
	creator := strings.TrimSpace(p.Creator)
	if creator == "" {
		return nil, reject(ErrInvalidRequest, "creator address required")
	}
	if p.Stake <= 0 || math.IsNaN(p.Stake) || math.IsInf(p.Stake, 0) {
		return nil, reject(ErrInvalidRequest, "stake must be positive")
	}
	tmin, tmax := p.TargetMin, p.TargetMax
	if tmin == 0 && tmax == 0 {
		tmin, tmax = c.cfg.TargetMin, c.cfg.TargetMax
	}
	if err := game.ValidateTargetRange(tmin, tmax); err != nil {
		return nil, reject(ErrInvalidRequest, "target range must lie within [1, 10]")
	}
	roomID := p.RoomID
	if roomID == "" {
		roomID = store.NewRoomID()
	}
	now := c.clock()
	room := &game.Room{
		RoomID:      roomID,
		Creator:     game.NewPlayer(creator, p.StakeTx, now),
		Status:      game.StatusWaiting,
		StakeAmount: p.Stake,
		TargetMin:   tmin,
		TargetMax:   tmax,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(c.cfg.RoomIdleTTL()),
	}
	created, err := c.store.Create(ctx, room)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, reject(ErrConflict, "room id already exists")
		}
		return nil, err
	}
	log.Info().
		Str("room_id", created.RoomID).
		Str("player", creator).
		Float64("stake", created.StakeAmount).
		Msg("room created")
	c.publish("", created)
	return created, nil
}

func (c *Coordinator) JoinRoom(ctx context.Context, roomID, address, stakeTx string) (*game.Room, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, reject(ErrInvalidRequest, "player address required")
	}
	now := c.clock()
	room, err := c.store.Update(ctx, roomID, func(r *game.Room) error {
		return applyJoin(r, address, stakeTx, now, c.cfg.RoomIdleTTL())
	})
	if err != nil {
		return nil, err
	}
	c.logTransition(room, address, "player joined")
	c.publish(game.StatusWaiting, room)
	return room, nil
}

func (c *Coordinator) ConfirmStart(ctx context.Context, roomID, address string) (*game.Room, error) {
	now := c.clock()
	var started bool
	room, err := c.store.Update(ctx, roomID, func(r *game.Room) error {
		var err error
		started, err = applyConfirm(r, address, now, c.cfg.PlayDuration(), c.targets)
		return err
	})
	if err != nil {
		return nil, err
	}
	prev := game.StatusReadyToStart
	if started {
		c.timers.Arm(room.RoomID, room.ExpiresAt)
		c.logTransition(room, address, "round started")
	} else {
		c.logTransition(room, address, "start confirmed")
	}
	c.publish(prev, room)
	return room, nil
}

func (c *Coordinator) Inflate(ctx context.Context, roomID, address string, delta float64) (*game.Room, error) {
	now := c.clock()
	room, err := c.store.Update(ctx, roomID, func(r *game.Room) error {
		return applyInflate(r, address, delta, c.cfg.MaxInflateDelta, now)
	})
	if err != nil {
		return nil, err
	}
	c.publish(room.Status, room)
	return room, nil
}

// Submit freezes the caller's balloon. When it completes the round the
// resolved room is returned with its settlement pending; the escrow call
// runs in the background.
func (c *Coordinator) Submit(ctx context.Context, roomID, address string, finalSize float64) (*game.Room, error) {
	now := c.clock()
	var resolved bool
	room, err := c.store.Update(ctx, roomID, func(r *game.Room) error {
		var err error
		resolved, err = applySubmit(r, address, finalSize, now, c.cfg.FeePercent)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logTransition(room, address, "balloon submitted")
	c.publish(game.StatusWaitingForSubmissions, room)
	if !resolved {
		return room, nil
	}
	c.timers.Disarm(room.RoomID)
	c.logResolution(room)
	c.settleAsync(room)
	return room, nil
}

func (c *Coordinator) CancelRoom(ctx context.Context, roomID, address string) (*game.Room, error) {
	now := c.clock()
	room, err := c.store.Update(ctx, roomID, func(r *game.Room) error {
		return applyCancel(r, address, now)
	})
	if err != nil {
		return nil, err
	}
	c.logTransition(room, address, "cancel requested")
	c.publish(game.StatusWaiting, room)
	c.settleAsync(room)
	return room, nil
}

func (c *Coordinator) GetRoom(ctx context.Context, roomID string) (*game.Room, error) {
	return c.store.Get(ctx, roomID)
}

func (c *Coordinator) ListWaitingRooms(ctx context.Context, limit, offset int) ([]*game.Room, error) {
	return c.store.List(ctx, store.Filter{
		Statuses:                 []game.Status{game.StatusWaiting},
		ExcludeSettlementPending: true,
		Limit:                    limit,
		Offset:                   offset,
	})
}

func (c *Coordinator) onTimerFired(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
	defer cancel()
	if _, err := c.expire(ctx, roomID); err != nil && !errors.Is(err, ErrNotFound) {
		log.Error().Err(err).Str("room_id", roomID).Msg("round expiry failed")
	}
}

// expire auto-submits the seats still playing and resolves the round. It is
// a no-op for rooms that are already resolved.
func (c *Coordinator) expire(ctx context.Context, roomID string) (*game.Room, error) {
	now := c.clock()
	var resolved bool
	room, err := c.store.Update(ctx, roomID, func(r *game.Room) error {
		resolved = applyExpire(r, now, c.cfg.FeePercent)
		if !resolved {
			return store.ErrNoChange
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !resolved {
		return room, nil
	}
	log.Info().Str("room_id", roomID).Msg("round timer expired")
	c.publish(game.StatusWaitingForSubmissions, room)
	c.logResolution(room)
	return c.driveSettlement(ctx, room)
}

func (c *Coordinator) logTransition(room *game.Room, player, msg string) {
	log.Info().
		Str("room_id", room.RoomID).
		Str("player", player).
		Str("status", string(room.Status)).
		Int64("version", room.Version).
		Msg(msg)
}

func (c *Coordinator) logResolution(room *game.Room) {
	ev := log.Info().Str("room_id", room.RoomID)
	if room.TargetValue != nil {
		ev = ev.Float64("target", *room.TargetValue)
	}
	if room.Winner != nil {
		ev = ev.Str("winner", *room.Winner)
	} else {
		ev = ev.Bool("tie", true)
	}
	if room.Settlement != nil {
		ev = ev.Str("settlement_key", room.Settlement.Key)
	}
	ev.Msg("round resolved")
}
