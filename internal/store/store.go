package store

import (
	"context"
	"errors"
	"time"

	"balloon-duel/internal/game"
)

var (
	ErrNotFound = errors.New("room_not_found")
	ErrConflict = errors.New("room_conflict")
	// ErrNoChange may be returned by a Mutator to leave the room untouched
	// without failing the Update call.
	ErrNoChange = errors.New("no_change")
)

// Mutator edits a private copy of a room. Returning an error discards every
// edit made to the copy.
type Mutator func(room *game.Room) error

type Filter struct {
	Statuses                 []game.Status
	SettlementPending        bool
	// ExcludeSettlementPending drops rooms waiting on an escrow call.
	ExcludeSettlementPending bool
	ExpiresBefore            time.Time
	Limit                    int
	Offset                   int
}

// RoomStore owns Room records. Update calls on the same room id are
// serialised; calls on different rooms do not wait for each other.
type RoomStore interface {
	Get(ctx context.Context, roomID string) (*game.Room, error)
	Create(ctx context.Context, room *game.Room) (*game.Room, error)
	Update(ctx context.Context, roomID string, fn Mutator) (*game.Room, error)
	List(ctx context.Context, f Filter) ([]*game.Room, error)
	Delete(ctx context.Context, roomID string) error
}

// SettlementRecords persists confirmed escrow calls by settlement key.
type SettlementRecords interface {
	GetSettlement(ctx context.Context, key string) (*SettlementRecord, error)
	// PutSettlement stores rec unless the key already exists; it reports
	// whether rec was inserted.
	PutSettlement(ctx context.Context, rec SettlementRecord) (bool, error)
}

type Backend interface {
	RoomStore
	SettlementRecords
	Ping(ctx context.Context) error
	Close()
}

func (f Filter) matches(r *game.Room) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.SettlementPending && !r.Settlement.Pending() {
		return false
	}
	if f.ExcludeSettlementPending && r.Settlement.Pending() {
		return false
	}
	if !f.ExpiresBefore.IsZero() && !r.ExpiresAt.Before(f.ExpiresBefore) {
		return false
	}
	return true
}

func statusStrings(in []game.Status) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, string(s))
	}
	return out
}

func settlementStatus(r *game.Room) string {
	if r.Settlement == nil {
		return ""
	}
	return string(r.Settlement.Status)
}
