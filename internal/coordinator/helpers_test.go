package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"balloon-duel/internal/config"
	"balloon-duel/internal/game"
	"balloon-duel/internal/ledger"
	"balloon-duel/internal/settlement"
	"balloon-duel/internal/store"
)

const (
	alice = "0xa11ce"
	bob   = "0xb0b"
	carol = "0xca401"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now().UTC()}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

type transition struct {
	from, to game.Status
}

type recordingObserver struct {
	mu    sync.Mutex
	moves []transition
}

func (o *recordingObserver) OnRoomChanged(prev game.Status, room *game.Room) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.moves = append(o.moves, transition{from: prev, to: room.Status})
}

func (o *recordingObserver) transitions() []transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]transition(nil), o.moves...)
}

type harness struct {
	coord  *Coordinator
	store  *store.MemoryStore
	escrow *settlement.MemoryEscrow
	clock  *fakeClock
	obs    *recordingObserver
}

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		PlayDurationMS:         60000,
		TargetMin:              6,
		TargetMax:              10,
		FeePercent:             5,
		MaxInflateDelta:        1,
		RoomIdleTTLMinutes:     30,
		ResultRetentionMinutes: 60,
		JanitorIntervalMS:      1000,
	}
}

func newHarness(t *testing.T, cfg config.GameConfig, opts ...Option) *harness {
	t.Helper()
	st := store.NewMemoryStore()
	escrow := settlement.NewMemoryEscrow()
	gw := settlement.NewRetrying(escrow, ledger.New(st), settlement.RetryConfig{RetryMax: 0})
	clock := newFakeClock()
	obs := &recordingObserver{}
	all := append([]Option{WithTargetSource(game.FixedTarget(8)), WithClock(clock.Now), WithObserver(obs)}, opts...)
	c := New(st, gw, cfg, all...)
	t.Cleanup(c.Stop)
	return &harness{coord: c, store: st, escrow: escrow, clock: clock, obs: obs}
}

// startRound creates a room with alice, seats bob and confirms both seats.
func (h *harness) startRound(t *testing.T) *game.Room {
	t.Helper()
	ctx := context.Background()
	room, err := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 0.1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.coord.JoinRoom(ctx, room.RoomID, bob, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := h.coord.ConfirmStart(ctx, room.RoomID, alice); err != nil {
		t.Fatalf("confirm alice: %v", err)
	}
	room, err = h.coord.ConfirmStart(ctx, room.RoomID, bob)
	if err != nil {
		t.Fatalf("confirm bob: %v", err)
	}
	if room.Status != game.StatusWaitingForSubmissions {
		t.Fatalf("expected round started, got %s", room.Status)
	}
	return room
}

func mustStatus(t *testing.T, room *game.Room, want game.Status) {
	t.Helper()
	if room.Status != want {
		t.Fatalf("expected status %s, got %s", want, room.Status)
	}
}
