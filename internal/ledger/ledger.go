// Package ledger records which settlement keys the escrow has confirmed, so a
// retried settlement never pays out twice.
package ledger

import (
	"context"
	"errors"
	"time"

	"balloon-duel/internal/settlement"
	"balloon-duel/internal/store"
)

type Ledger struct {
	Store store.SettlementRecords
	now   func() time.Time
}

func New(s store.SettlementRecords) *Ledger {
	return &Ledger{Store: s, now: time.Now}
}

func (l *Ledger) Lookup(ctx context.Context, key string) (string, bool, error) {
	rec, err := l.Store.GetSettlement(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.TxRef, true, nil
}

// Record is a no-op for keys already recorded; the first tx ref wins.
func (l *Ledger) Record(ctx context.Context, key, roomID string, kind settlement.Kind, txRef string) error {
	_, err := l.Store.PutSettlement(ctx, store.SettlementRecord{
		Key:       key,
		RoomID:    roomID,
		Kind:      string(kind),
		TxRef:     txRef,
		CreatedAt: l.now().UTC(),
	})
	return err
}
