// Package coordinator runs the duel state machine. Every transition goes
// through RoomStore.Update, so actions on one room are serialised by the
// store while different rooms proceed independently.
package coordinator

import (
	"context"
	"sync"
	"time"

	"balloon-duel/internal/config"
	"balloon-duel/internal/game"
	"balloon-duel/internal/game/viewmodel"
	"balloon-duel/internal/roomtimer"
	"balloon-duel/internal/settlement"
	"balloon-duel/internal/store"
	"balloon-duel/internal/stream"
)

const (
	EventRoomUpdated = "room_updated"
	eventBufferSize  = 64
	expireTimeout    = 30 * time.Second
	settleTimeout    = 2 * time.Minute
)

// Observer is told about every committed room change.
type Observer interface {
	OnRoomChanged(prev game.Status, room *game.Room)
}

type Coordinator struct {
	store   store.RoomStore
	gateway settlement.Gateway
	cfg     config.GameConfig
	targets game.TargetSource
	timers  *roomtimer.Registry
	now     func() time.Time

	// ctx scopes background settlements; Stop cancels it.
	ctx      context.Context
	cancel   context.CancelFunc
	settling sync.WaitGroup

	mu        sync.Mutex
	buffers   map[string]*stream.EventBuffer
	published map[string]int64
	inflight  map[string]struct{}
	observers []Observer
}

type Option func(*Coordinator)

func WithTargetSource(src game.TargetSource) Option {
	return func(c *Coordinator) { c.targets = src }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithObserver(obs Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, obs) }
}

func New(st store.RoomStore, gw settlement.Gateway, cfg config.GameConfig, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     st,
		gateway:   gw,
		cfg:       cfg,
		targets:   game.CryptoTarget{},
		now:       time.Now,
		buffers:   map[string]*stream.EventBuffer{},
		published: map[string]int64{},
		inflight:  map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.timers = roomtimer.New(c.onTimerFired)
	return c
}

// Stop cancels pending round timers and background settlements, then closes
// every event stream. Settlements cut short stay pending for Recover.
func (c *Coordinator) Stop() {
	c.timers.Stop()
	c.cancel()
	c.settling.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, buf := range c.buffers {
		buf.Close()
		delete(c.buffers, id)
		delete(c.published, id)
	}
}

func (c *Coordinator) clock() time.Time {
	return c.now().UTC()
}

// Events returns the event buffer of an existing room.
func (c *Coordinator) Events(ctx context.Context, roomID string) (*stream.EventBuffer, error) {
	room, err := c.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := c.buffers[roomID]
	if buf == nil {
		buf = stream.NewEventBuffer(roomID, eventBufferSize)
		buf.Append(EventRoomUpdated, viewmodel.BuildRoomState(room, c.clock()))
		c.buffers[roomID] = buf
		c.published[roomID] = room.Version
	}
	return buf, nil
}

// publish records a committed change. prev is the status before the change.
// Snapshots older than one already streamed are not appended.
func (c *Coordinator) publish(prev game.Status, room *game.Room) {
	c.mu.Lock()
	if buf := c.buffers[room.RoomID]; buf != nil && room.Version > c.published[room.RoomID] {
		c.published[room.RoomID] = room.Version
		buf.Append(EventRoomUpdated, viewmodel.BuildRoomState(room, c.clock()))
	}
	observers := c.observers
	c.mu.Unlock()
	for _, obs := range observers {
		obs.OnRoomChanged(prev, room)
	}
}

func (c *Coordinator) dropBuffer(roomID string) {
	c.mu.Lock()
	buf := c.buffers[roomID]
	delete(c.buffers, roomID)
	delete(c.published, roomID)
	c.mu.Unlock()
	if buf != nil {
		buf.Close()
	}
}

// PendingTimers is the number of armed round deadlines.
func (c *Coordinator) PendingTimers() int {
	return c.timers.Pending()
}
