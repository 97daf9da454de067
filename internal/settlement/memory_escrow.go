package settlement

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

var errInjected = errors.New("escrow unavailable")

// MemoryEscrow is an in-process escrow. It applies each key once and can be
// told to fail upcoming calls.
type MemoryEscrow struct {
	mu       sync.Mutex
	applied  map[string]Receipt
	payouts  map[string]float64
	locked   map[string]float64
	calls    int
	failNext int
}

func NewMemoryEscrow() *MemoryEscrow {
	return &MemoryEscrow{
		applied: map[string]Receipt{},
		payouts: map[string]float64{},
		locked:  map[string]float64{},
	}
}

// FailNext makes the next n Settle/Refund calls return an error.
func (m *MemoryEscrow) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

func (m *MemoryEscrow) LockStake(_ context.Context, req LockRequest) (string, error) {
	metricStakeLockTotal.Add(1)
	if strings.TrimSpace(req.Address) == "" || req.Amount <= 0 {
		return "", errors.New("invalid stake lock")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked[req.Address] += req.Amount
	return "lock_" + strings.ToLower(ulid.Make().String()), nil
}

func (m *MemoryEscrow) Settle(_ context.Context, req SettleRequest) (Receipt, error) {
	return m.apply(req.Key, func() {
		if req.Winner == "" {
			for _, a := range req.Addresses {
				m.release(a, req.StakeAmount, req.StakeAmount)
			}
			return
		}
		pot := req.StakeAmount * float64(len(req.Addresses))
		for _, a := range req.Addresses {
			m.release(a, req.StakeAmount, 0)
		}
		m.payouts[req.Winner] += pot * (1 - req.FeePercent/100)
	})
}

func (m *MemoryEscrow) Refund(_ context.Context, req RefundRequest) (Receipt, error) {
	return m.apply(req.Key, func() {
		for _, a := range req.Addresses {
			m.release(a, req.StakeAmount, req.StakeAmount)
		}
	})
}

func (m *MemoryEscrow) release(addr string, stake, payout float64) {
	m.locked[addr] -= stake
	if payout > 0 {
		m.payouts[addr] += payout
	}
}

func (m *MemoryEscrow) apply(key string, effect func()) (Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failNext > 0 {
		m.failNext--
		return Receipt{}, errInjected
	}
	if rec, ok := m.applied[key]; ok {
		rec.Replayed = true
		return rec, nil
	}
	effect()
	rec := Receipt{Key: key, TxRef: "tx_" + strings.ToLower(ulid.Make().String())}
	m.applied[key] = rec
	return rec, nil
}

// Applied returns how many distinct keys have taken effect.
func (m *MemoryEscrow) Applied() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

func (m *MemoryEscrow) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MemoryEscrow) Payout(address string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payouts[address]
}

func (m *MemoryEscrow) Locked(address string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked[address]
}

func (m *MemoryEscrow) HasKey(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.applied[key]
	return ok
}
