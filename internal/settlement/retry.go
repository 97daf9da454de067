package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Ledger remembers confirmed settlement keys.
type Ledger interface {
	Lookup(ctx context.Context, key string) (txRef string, ok bool, err error)
	Record(ctx context.Context, key, roomID string, kind Kind, txRef string) error
}

type RetryConfig struct {
	RetryMax  int
	RetryBase time.Duration
}

// Retrying wraps a Gateway with the ledger check and exponential backoff.
// A key already in the ledger is answered without calling the escrow.
type Retrying struct {
	inner  Gateway
	ledger Ledger
	cfg    RetryConfig
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetrying(inner Gateway, ledger Ledger, cfg RetryConfig) *Retrying {
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	return &Retrying{inner: inner, ledger: ledger, cfg: cfg, sleep: sleepCtx}
}

func (r *Retrying) Settle(ctx context.Context, req SettleRequest) (Receipt, error) {
	return r.do(ctx, req.Key, req.RoomID, KindSettle, func(ctx context.Context) (Receipt, error) {
		return r.inner.Settle(ctx, req)
	})
}

func (r *Retrying) Refund(ctx context.Context, req RefundRequest) (Receipt, error) {
	return r.do(ctx, req.Key, req.RoomID, KindRefund, func(ctx context.Context) (Receipt, error) {
		return r.inner.Refund(ctx, req)
	})
}

func (r *Retrying) do(ctx context.Context, key, roomID string, kind Kind, call func(context.Context) (Receipt, error)) (Receipt, error) {
	if r.ledger != nil {
		txRef, ok, err := r.ledger.Lookup(ctx, key)
		if err != nil {
			return Receipt{}, &FailureError{Key: key, Err: err}
		}
		if ok {
			metricSettleReplayTotal.Add(1)
			return Receipt{Key: key, TxRef: txRef, Replayed: true}, nil
		}
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		metricSettleAttemptTotal.Add(1)
		rec, err := call(ctx)
		if err == nil {
			rec.Key = key
			rec.Attempts = attempt
			if r.ledger != nil {
				if err := r.ledger.Record(ctx, key, roomID, kind, rec.TxRef); err != nil {
					// The escrow applied the key; a later retry is answered by
					// the escrow's own idempotency.
					log.Error().Err(err).Str("settlement_key", key).Msg("ledger record failed")
				}
			}
			metricSettleSuccessTotal.Add(1)
			log.Info().
				Str("room_id", roomID).
				Str("settlement_key", key).
				Str("kind", string(kind)).
				Str("tx_ref", rec.TxRef).
				Int("attempt", attempt).
				Msg("settlement confirmed")
			return rec, nil
		}
		lastErr = err
		log.Warn().
			Err(err).
			Str("room_id", roomID).
			Str("settlement_key", key).
			Int("attempt", attempt).
			Msg("settlement attempt failed")
		if attempt > r.cfg.RetryMax {
			metricSettleFailedTotal.Add(1)
			return Receipt{}, &FailureError{Key: key, Attempts: attempt, Err: lastErr}
		}
		metricSettleRetryTotal.Add(1)
		delay := r.cfg.RetryBase * time.Duration(1<<(attempt-1))
		if err := r.sleep(ctx, delay); err != nil {
			metricSettleFailedTotal.Add(1)
			return Receipt{}, &FailureError{Key: key, Attempts: attempt, Err: err}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
