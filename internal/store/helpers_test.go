package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"balloon-duel/internal/game"
)

func newTestRoom(id, creator string, createdAt time.Time) *game.Room {
	return &game.Room{
		RoomID:      id,
		Creator:     game.NewPlayer(creator, "", createdAt),
		Status:      game.StatusWaiting,
		StakeAmount: 10,
		TargetMin:   game.DefaultTargetMin,
		TargetMax:   game.DefaultTargetMax,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(30 * time.Minute),
	}
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for i := 0; i < 6; i++ {
		p := filepath.Join(dir, "migrations")
		if st, err := os.Stat(p); err == nil && st.IsDir() {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	t.Fatalf("migrations dir not found")
	return ""
}

// runBackendSuite checks the RoomStore contract shared by every backend.
func runBackendSuite(t *testing.T, st Backend) {
	t.Helper()
	ctx := t.Context()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r1 := newTestRoom("room_a", "0xaaa", base)
	r2 := newTestRoom("room_b", "0xbbb", base.Add(time.Second))
	if _, err := st.Create(ctx, r1); err != nil {
		t.Fatalf("create r1: %v", err)
	}
	if _, err := st.Create(ctx, r2); err != nil {
		t.Fatalf("create r2: %v", err)
	}
	if _, err := st.Create(ctx, r1); err != ErrConflict {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}

	got, err := st.Get(ctx, "room_a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Creator.Address != "0xaaa" || got.Status != game.StatusWaiting {
		t.Fatalf("unexpected room: %+v", got)
	}
	if _, err := st.Get(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	updated, err := st.Update(ctx, "room_a", func(r *game.Room) error {
		p := game.NewPlayer("0xccc", "", base)
		r.Opponent = &p
		r.Status = game.StatusReadyToStart
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 1 || updated.Opponent == nil {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	rejected := errTest("nope")
	if _, err := st.Update(ctx, "room_a", func(r *game.Room) error {
		r.Status = game.StatusCancelled
		return rejected
	}); err != rejected {
		t.Fatalf("expected mutator error, got %v", err)
	}
	same, err := st.Update(ctx, "room_a", func(r *game.Room) error { return ErrNoChange })
	if err != nil {
		t.Fatalf("no-change update: %v", err)
	}
	if same.Status != game.StatusReadyToStart || same.Version != 1 {
		t.Fatalf("rejected mutator leaked state: %+v", same)
	}

	waiting, err := st.List(ctx, Filter{Statuses: []game.Status{game.StatusWaiting}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(waiting) != 1 || waiting[0].RoomID != "room_b" {
		t.Fatalf("unexpected waiting list: %+v", waiting)
	}
	all, err := st.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || all[0].RoomID != "room_b" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	expired, err := st.List(ctx, Filter{ExpiresBefore: base.Add(30*time.Minute + time.Millisecond)})
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].RoomID != "room_a" {
		t.Fatalf("unexpected expired list: %+v", expired)
	}

	if _, err := st.Update(ctx, "room_b", func(r *game.Room) error {
		r.Settlement = &game.Settlement{Key: "room_b:refund", Kind: game.SettlementRefund, Status: game.SettlementPending}
		return nil
	}); err != nil {
		t.Fatalf("set settlement: %v", err)
	}
	pending, err := st.List(ctx, Filter{SettlementPending: true})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].RoomID != "room_b" {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
	lobby, err := st.List(ctx, Filter{Statuses: []game.Status{game.StatusWaiting}, ExcludeSettlementPending: true})
	if err != nil {
		t.Fatalf("list lobby: %v", err)
	}
	if len(lobby) != 0 {
		t.Fatalf("room with pending refund listed in lobby: %+v", lobby)
	}
	settled, err := st.List(ctx, Filter{ExcludeSettlementPending: true})
	if err != nil {
		t.Fatalf("list settled: %v", err)
	}
	if len(settled) != 1 || settled[0].RoomID != "room_a" {
		t.Fatalf("unexpected list without pending settlements: %+v", settled)
	}

	rec := SettlementRecord{Key: "room_b:refund", RoomID: "room_b", Kind: "refund", TxRef: "tx1", CreatedAt: base}
	inserted, err := st.PutSettlement(ctx, rec)
	if err != nil || !inserted {
		t.Fatalf("put settlement: inserted=%v err=%v", inserted, err)
	}
	rec.TxRef = "tx2"
	inserted, err = st.PutSettlement(ctx, rec)
	if err != nil || inserted {
		t.Fatalf("duplicate settlement: inserted=%v err=%v", inserted, err)
	}
	stored, err := st.GetSettlement(ctx, "room_b:refund")
	if err != nil {
		t.Fatalf("get settlement: %v", err)
	}
	if stored.TxRef != "tx1" {
		t.Fatalf("expected first tx ref kept, got %s", stored.TxRef)
	}
	if _, err := st.GetSettlement(ctx, "other"); err != ErrNotFound {
		t.Fatalf("expected not found settlement, got %v", err)
	}

	if err := st.Delete(ctx, "room_a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, "room_a"); err != ErrNotFound {
		t.Fatalf("expected deleted room gone, got %v", err)
	}
	if err := st.Delete(ctx, "room_a"); err != ErrNotFound {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
