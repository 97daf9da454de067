package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"balloon-duel/internal/game"
	"balloon-duel/internal/ledger"
	"balloon-duel/internal/settlement"
	"balloon-duel/internal/store"
)

func TestScenarioCreatorCloserWins(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room := h.startRound(t)
	if room.TargetValue == nil || *room.TargetValue != 8 {
		t.Fatalf("expected target 8 fixed at round start, got %v", room.TargetValue)
	}
	if h.coord.PendingTimers() != 1 {
		t.Fatalf("expected armed timer, got %d", h.coord.PendingTimers())
	}

	if _, err := h.coord.Submit(ctx, room.RoomID, alice, 7.5); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	room, err := h.coord.Submit(ctx, room.RoomID, bob, 9.0)
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	mustStatus(t, room, game.StatusWaitingForSubmissions)
	if room.Winner == nil || *room.Winner != alice || !room.Settlement.Pending() {
		t.Fatalf("expected alice to win with payout pending, got %v %+v", room.Winner, room.Settlement)
	}
	h.coord.WaitSettlements()
	room, _ = h.coord.GetRoom(ctx, room.RoomID)
	mustStatus(t, room, game.StatusFinished)
	if room.Settlement == nil || room.Settlement.Status != game.SettlementConfirmed {
		t.Fatalf("expected confirmed settlement, got %+v", room.Settlement)
	}
	if !h.escrow.HasKey(settlement.SettleKey(room.RoomID, alice)) || h.escrow.Applied() != 1 {
		t.Fatalf("expected one payout to alice")
	}
	if h.coord.PendingTimers() != 0 {
		t.Fatalf("timer should be disarmed after resolution")
	}
}

func TestScenarioTimerAutoSubmitsIdlePlayer(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room := h.startRound(t)

	if _, err := h.coord.Submit(ctx, room.RoomID, alice, 8.0); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	h.clock.Advance(61 * time.Second)
	room, err := h.coord.expire(ctx, room.RoomID)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	mustStatus(t, room, game.StatusFinished)
	if room.Opponent.BalloonSize != 1.0 || !room.Opponent.AutoSubmitted {
		t.Fatalf("expected bob auto-submitted at 1.0, got %+v", room.Opponent)
	}
	if room.Creator.AutoSubmitted {
		t.Fatalf("alice submitted herself")
	}
	if room.Winner == nil || *room.Winner != alice {
		t.Fatalf("expected alice to win, got %v", room.Winner)
	}
}

func TestScenarioTieRefundsBoth(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room := h.startRound(t)

	if _, err := h.coord.Submit(ctx, room.RoomID, alice, 6.0); err != nil {
		t.Fatalf("alice submit: %v", err)
	}
	if _, err := h.coord.Submit(ctx, room.RoomID, bob, 6.0); err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	h.coord.WaitSettlements()
	room, _ = h.coord.GetRoom(ctx, room.RoomID)
	mustStatus(t, room, game.StatusFinished)
	if room.Winner != nil {
		t.Fatalf("expected tie, got winner %s", *room.Winner)
	}
	if !h.escrow.HasKey(settlement.SettleKey(room.RoomID, "")) {
		t.Fatalf("expected tie settlement key")
	}
}

func TestScenarioThirdJoinConflicts(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	joined, err := h.coord.JoinRoom(ctx, room.RoomID, bob, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	_, err = h.coord.JoinRoom(ctx, room.RoomID, carol, "")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	after, _ := h.coord.GetRoom(ctx, room.RoomID)
	if after.Version != joined.Version || after.Opponent.Address != bob {
		t.Fatalf("rejected join changed the room: %+v", after)
	}
}

func TestJoinRules(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})

	if _, err := h.coord.JoinRoom(ctx, room.RoomID, alice, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on self join, got %v", err)
	}
	if _, err := h.coord.JoinRoom(ctx, "room_missing", bob, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.coord.JoinRoom(ctx, room.RoomID, "  ", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if _, err := h.coord.CancelRoom(ctx, room.RoomID, alice); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.coord.JoinRoom(ctx, room.RoomID, bob, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition on cancelled room, got %v", err)
	}
}

func TestCreateRoomValidation(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	cases := []CreateParams{
		{Creator: "", Stake: 1},
		{Creator: alice, Stake: 0},
		{Creator: alice, Stake: 1, TargetMin: 9, TargetMax: 7},
		{Creator: alice, Stake: 1, TargetMin: 0.5, TargetMax: 7},
	}
	for _, p := range cases {
		if _, err := h.coord.CreateRoom(ctx, p); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected invalid request for %+v, got %v", p, err)
		}
	}
	room, err := h.coord.CreateRoom(ctx, CreateParams{RoomID: "room_fixed", Creator: alice, Stake: 1, TargetMin: 2, TargetMax: 3})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.TargetMin != 2 || room.TargetMax != 3 || room.Status != game.StatusWaiting {
		t.Fatalf("unexpected room: %+v", room)
	}
	if _, err := h.coord.CreateRoom(ctx, CreateParams{RoomID: "room_fixed", Creator: bob, Stake: 1}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on duplicate id, got %v", err)
	}
}

func TestConfirmRules(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	if _, err := h.coord.ConfirmStart(ctx, room.RoomID, alice); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition before join, got %v", err)
	}
	_, _ = h.coord.JoinRoom(ctx, room.RoomID, bob, "")
	if _, err := h.coord.ConfirmStart(ctx, room.RoomID, carol); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	room, err := h.coord.ConfirmStart(ctx, room.RoomID, alice)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	mustStatus(t, room, game.StatusReadyToStart)
	if room.TargetValue != nil {
		t.Fatalf("target drawn before both confirmed")
	}
	if _, err := h.coord.ConfirmStart(ctx, room.RoomID, alice); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on double confirm, got %v", err)
	}
}

func TestConcurrentConfirmStartsOnce(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	_, _ = h.coord.JoinRoom(ctx, room.RoomID, bob, "")

	var wg sync.WaitGroup
	results := make([]*game.Room, 2)
	for i, addr := range []string{alice, bob} {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			r, err := h.coord.ConfirmStart(ctx, room.RoomID, addr)
			if err != nil {
				t.Errorf("confirm %s: %v", addr, err)
				return
			}
			results[i] = r
		}(i, addr)
	}
	wg.Wait()

	started := 0
	for _, r := range results {
		if r != nil && r.Status == game.StatusWaitingForSubmissions {
			started++
		}
	}
	if started != 1 {
		t.Fatalf("expected exactly one caller to start the round, got %d", started)
	}
	if h.coord.PendingTimers() != 1 {
		t.Fatalf("expected one timer, got %d", h.coord.PendingTimers())
	}
}

func TestInflateRules(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room := h.startRound(t)

	r, err := h.coord.Inflate(ctx, room.RoomID, alice, 0.5)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	if r.Creator.BalloonSize != 1.5 {
		t.Fatalf("expected 1.5, got %v", r.Creator.BalloonSize)
	}
	for _, bad := range []float64{0, -1, 1.5} {
		if _, err := h.coord.Inflate(ctx, room.RoomID, alice, bad); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("expected invalid request for delta %v, got %v", bad, err)
		}
	}
	for i := 0; i < 20; i++ {
		r, err = h.coord.Inflate(ctx, room.RoomID, bob, 1)
		if err != nil {
			t.Fatalf("inflate bob: %v", err)
		}
	}
	if r.Opponent.BalloonSize != game.MaxBalloonSize {
		t.Fatalf("expected cap at 10, got %v", r.Opponent.BalloonSize)
	}
	if _, err := h.coord.Inflate(ctx, room.RoomID, carol, 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	if _, err := h.coord.Submit(ctx, room.RoomID, alice, 2); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := h.coord.Inflate(ctx, room.RoomID, alice, 0.1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict after submit, got %v", err)
	}

	h.clock.Advance(time.Minute)
	if _, err := h.coord.Inflate(ctx, room.RoomID, bob, 0.1); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition after deadline, got %v", err)
	}
}

func TestSubmitRules(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room := h.startRound(t)

	_, _ = h.coord.Inflate(ctx, room.RoomID, alice, 1)
	if _, err := h.coord.Submit(ctx, room.RoomID, alice, 1.5); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected shrinking submit rejected, got %v", err)
	}
	r, err := h.coord.Submit(ctx, room.RoomID, alice, 42)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if r.Creator.BalloonSize != game.MaxBalloonSize || !r.Creator.HasSubmitted {
		t.Fatalf("expected clamped frozen size, got %+v", r.Creator)
	}
	if _, err := h.coord.Submit(ctx, room.RoomID, alice, 5); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on double submit, got %v", err)
	}
	_, _ = h.coord.Submit(ctx, room.RoomID, bob, 9)
	h.coord.WaitSettlements()
	r, _ = h.coord.GetRoom(ctx, room.RoomID)
	mustStatus(t, r, game.StatusFinished)
	if _, err := h.coord.Submit(ctx, room.RoomID, bob, 9); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict after finish, got %v", err)
	}
	if _, err := h.coord.Inflate(ctx, room.RoomID, bob, 0.1); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition inflating a finished room, got %v", err)
	}
	if _, err := h.coord.CancelRoom(ctx, room.RoomID, alice); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected finished room immutable, got %v", err)
	}
}

func TestSubmitBeforeStartIsInvalid(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	if _, err := h.coord.Submit(ctx, room.RoomID, alice, 5); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestTimerAndSubmitRaceResolvesOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		h := newHarness(t, testGameConfig())
		ctx := context.Background()
		room := h.startRound(t)
		if _, err := h.coord.Submit(ctx, room.RoomID, alice, 7); err != nil {
			t.Fatalf("alice submit: %v", err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.coord.Submit(ctx, room.RoomID, bob, 9)
			if err != nil && !errors.Is(err, ErrConflict) {
				t.Errorf("bob submit: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := h.coord.expire(ctx, room.RoomID); err != nil {
				t.Errorf("expire: %v", err)
			}
		}()
		wg.Wait()
		h.coord.WaitSettlements()

		final, _ := h.coord.GetRoom(ctx, room.RoomID)
		mustStatus(t, final, game.StatusFinished)
		if h.escrow.Calls() != 1 || h.escrow.Applied() != 1 {
			t.Fatalf("expected exactly one settlement call, got calls=%d applied=%d", h.escrow.Calls(), h.escrow.Applied())
		}
	}
}

func TestRoundTimerFiresServerSide(t *testing.T) {
	cfg := testGameConfig()
	cfg.PlayDurationMS = 30
	h := newHarness(t, cfg, WithClock(func() time.Time { return time.Now().UTC() }))
	room := h.startRound(t)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r, _ := h.coord.GetRoom(context.Background(), room.RoomID)
		if r.Status == game.StatusFinished {
			if !r.Creator.AutoSubmitted || !r.Opponent.AutoSubmitted {
				t.Fatalf("expected both auto-submitted: %+v %+v", r.Creator, r.Opponent)
			}
			if r.Winner != nil {
				t.Fatalf("both at 1.0 should tie")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("round did not expire")
}

func TestCancelRules(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	if _, err := h.coord.CancelRoom(ctx, room.RoomID, bob); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := h.coord.CancelRoom(ctx, room.RoomID, alice); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	h.coord.WaitSettlements()
	r, _ := h.coord.GetRoom(ctx, room.RoomID)
	mustStatus(t, r, game.StatusCancelled)
	if !h.escrow.HasKey(settlement.RefundKey(room.RoomID)) {
		t.Fatalf("expected creator refund")
	}

	other, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	_, _ = h.coord.JoinRoom(ctx, other.RoomID, bob, "")
	if _, err := h.coord.CancelRoom(ctx, other.RoomID, alice); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected cancel after join rejected, got %v", err)
	}
}

func TestSettlementFailureKeepsRoomPending(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room := h.startRound(t)
	_, _ = h.coord.Submit(ctx, room.RoomID, alice, 7)

	h.escrow.FailNext(1)
	if _, err := h.coord.Submit(ctx, room.RoomID, bob, 9); err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	h.coord.WaitSettlements()
	r, _ := h.coord.GetRoom(ctx, room.RoomID)
	if r == nil || r.Status != game.StatusWaitingForSubmissions || !r.Settlement.Pending() {
		t.Fatalf("expected pending settlement, got %+v", r)
	}
	if r.Settlement.Attempts != 1 || r.Settlement.LastError == "" {
		t.Fatalf("expected recorded attempt, got %+v", r.Settlement)
	}
	if r.Winner == nil || *r.Winner != alice {
		t.Fatalf("winner must be fixed before settlement")
	}

	r, err := h.coord.RetrySettlement(ctx, room.RoomID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	mustStatus(t, r, game.StatusFinished)
	if r.Settlement.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", r.Settlement.Attempts)
	}
	if _, err := h.coord.RetrySettlement(ctx, room.RoomID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected nothing to retry, got %v", err)
	}
	if h.escrow.Applied() != 1 {
		t.Fatalf("expected a single payout, got %d", h.escrow.Applied())
	}
}

func TestSubmitDoesNotWaitForEscrow(t *testing.T) {
	st := store.NewMemoryStore()
	escrow := settlement.NewMemoryEscrow()
	gw := settlement.NewRetrying(escrow, ledger.New(st), settlement.RetryConfig{RetryMax: 5, RetryBase: 250 * time.Millisecond})
	c := New(st, gw, testGameConfig(), WithTargetSource(game.FixedTarget(8)))
	t.Cleanup(c.Stop)
	h := &harness{coord: c, store: st, escrow: escrow, clock: newFakeClock()}
	ctx := context.Background()
	room := h.startRound(t)
	if _, err := c.Submit(ctx, room.RoomID, alice, 7.5); err != nil {
		t.Fatalf("alice submit: %v", err)
	}

	escrow.FailNext(100)
	start := time.Now()
	r, err := c.Submit(ctx, room.RoomID, bob, 9.0)
	if err != nil {
		t.Fatalf("bob submit: %v", err)
	}
	if took := time.Since(start); took > 200*time.Millisecond {
		t.Fatalf("submit waited %v for the escrow", took)
	}
	if r.Winner == nil || *r.Winner != alice || !r.Settlement.Pending() {
		t.Fatalf("expected resolved room with payout pending, got %+v", r)
	}

	lobby, _ := c.CreateRoom(ctx, CreateParams{Creator: carol, Stake: 1})
	start = time.Now()
	if _, err := c.CancelRoom(ctx, lobby.RoomID, carol); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if took := time.Since(start); took > 200*time.Millisecond {
		t.Fatalf("cancel waited %v for the escrow", took)
	}
}

func TestLobbySkipsRoomsWithPendingRefund(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	h.escrow.FailNext(1)
	if _, err := h.coord.CancelRoom(ctx, room.RoomID, alice); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	h.coord.WaitSettlements()
	r, _ := h.coord.GetRoom(ctx, room.RoomID)
	if r.Status != game.StatusWaiting || !r.Settlement.Pending() {
		t.Fatalf("expected waiting room with refund pending, got %s %+v", r.Status, r.Settlement)
	}

	rooms, err := h.coord.ListWaitingRooms(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 0 {
		t.Fatalf("lobby lists a room nobody can join: %+v", rooms)
	}

	open, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: carol, Stake: 1})
	rooms, _ = h.coord.ListWaitingRooms(ctx, 10, 0)
	if len(rooms) != 1 || rooms[0].RoomID != open.RoomID {
		t.Fatalf("unexpected lobby: %+v", rooms)
	}
}

func TestSweepRetriesPendingSettlement(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	h.escrow.FailNext(1)
	if _, err := h.coord.CancelRoom(ctx, room.RoomID, alice); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	h.coord.WaitSettlements()
	if _, err := h.coord.JoinRoom(ctx, room.RoomID, bob, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected actions blocked while settlement pending, got %v", err)
	}
	h.coord.Sweep(ctx)
	r, _ := h.coord.GetRoom(ctx, room.RoomID)
	mustStatus(t, r, game.StatusCancelled)
}

func TestSweepCancelsIdleAndRetiresFinished(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	waiting, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	ready, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: carol, Stake: 1})
	_, _ = h.coord.JoinRoom(ctx, ready.RoomID, bob, "")

	h.clock.Advance(31 * time.Minute)
	h.coord.Sweep(ctx)
	for _, id := range []string{waiting.RoomID, ready.RoomID} {
		r, err := h.coord.GetRoom(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		mustStatus(t, r, game.StatusCancelled)
	}
	r, _ := h.coord.GetRoom(ctx, ready.RoomID)
	if len(r.Settlement.Addresses) != 2 {
		t.Fatalf("expected both seats refunded, got %v", r.Settlement.Addresses)
	}

	h.clock.Advance(61 * time.Minute)
	h.coord.Sweep(ctx)
	if _, err := h.coord.GetRoom(ctx, waiting.RoomID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected retired room gone, got %v", err)
	}
}

func TestRecoverRearmsTimersAndResumesSettlement(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	playing := h.startRound(t)

	pending, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: carol, Stake: 1})
	h.escrow.FailNext(1)
	_, _ = h.coord.CancelRoom(ctx, pending.RoomID, carol)
	h.coord.WaitSettlements()
	h.coord.Stop()

	escrow := settlement.NewMemoryEscrow()
	restarted := New(h.store, settlement.NewRetrying(escrow, nil, settlement.RetryConfig{}), testGameConfig(), WithClock(h.clock.Now))
	defer restarted.Stop()
	if err := restarted.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if restarted.PendingTimers() != 1 {
		t.Fatalf("expected timer re-armed for %s", playing.RoomID)
	}
	if d, ok := restarted.timers.Deadline(playing.RoomID); !ok || !d.Equal(playing.ExpiresAt) {
		t.Fatalf("re-armed deadline %v ok=%v, want %v", d, ok, playing.ExpiresAt)
	}
	if err := restarted.Recover(ctx); err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if d, _ := restarted.timers.Deadline(playing.RoomID); !d.Equal(playing.ExpiresAt) {
		t.Fatalf("second recover moved the deadline to %v", d)
	}
	restarted.WaitSettlements()
	r, _ := restarted.GetRoom(ctx, pending.RoomID)
	mustStatus(t, r, game.StatusCancelled)
}

func TestStatusOnlyMovesForward(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room := h.startRound(t)
	_, _ = h.coord.Inflate(ctx, room.RoomID, alice, 1)
	_, _ = h.coord.Submit(ctx, room.RoomID, alice, 3)
	_, _ = h.coord.Submit(ctx, room.RoomID, bob, 4)
	other, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: carol, Stake: 1})
	_, _ = h.coord.CancelRoom(ctx, other.RoomID, carol)
	h.coord.WaitSettlements()

	rank := map[game.Status]int{
		"":                               0,
		game.StatusWaiting:               1,
		game.StatusReadyToStart:          2,
		game.StatusWaitingForSubmissions: 3,
		game.StatusFinished:              4,
	}
	for _, tr := range h.obs.transitions() {
		if tr.to == game.StatusCancelled {
			if tr.from != game.StatusWaiting && tr.from != game.StatusReadyToStart && tr.from != game.StatusCancelled {
				t.Fatalf("cancelled reached from %s", tr.from)
			}
			continue
		}
		if rank[tr.to] < rank[tr.from] || rank[tr.to]-rank[tr.from] > 1 {
			t.Fatalf("illegal transition %s -> %s", tr.from, tr.to)
		}
	}
}

func TestGetRoomDoesNotMutate(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room := h.startRound(t)
	for i := 0; i < 5; i++ {
		r, err := h.coord.GetRoom(ctx, room.RoomID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if r.Version != room.Version {
			t.Fatalf("read changed version %d -> %d", room.Version, r.Version)
		}
	}
}

func TestEventsFollowRoom(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	room, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	buf, err := h.coord.Events(ctx, room.RoomID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	ch := buf.Subscribe()
	defer buf.Unsubscribe(ch)
	if _, err := h.coord.JoinRoom(ctx, room.RoomID, bob, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	select {
	case ev := <-ch:
		if ev.Event != EventRoomUpdated || ev.RoomID != room.RoomID {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event after join")
	}
	if got := buf.ReplayAfter(""); len(got) != 2 {
		t.Fatalf("expected initial snapshot plus join, got %d", len(got))
	}
	if _, err := h.coord.Events(ctx, "room_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListWaitingRooms(t *testing.T) {
	h := newHarness(t, testGameConfig())
	ctx := context.Background()
	a, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: alice, Stake: 1})
	h.clock.Advance(time.Second)
	b, _ := h.coord.CreateRoom(ctx, CreateParams{Creator: carol, Stake: 1})
	_, _ = h.coord.JoinRoom(ctx, a.RoomID, bob, "")

	rooms, err := h.coord.ListWaitingRooms(ctx, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 1 || rooms[0].RoomID != b.RoomID {
		t.Fatalf("unexpected lobby: %+v", rooms)
	}
}
