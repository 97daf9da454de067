// Package settlement talks to the stake escrow. Every call carries a
// settlement key; the escrow must treat repeated keys as the same operation.
package settlement

import (
	"context"
	"errors"
	"fmt"
)

var ErrSettlementFailure = errors.New("settlement_failure")

type Kind string

const (
	KindLock   Kind = "lock"
	KindSettle Kind = "settle"
	KindRefund Kind = "refund"
)

// SettleRequest pays the pot to Winner. An empty Winner is a tie and
// returns each stake to its owner.
type SettleRequest struct {
	Key         string   `json:"key"`
	RoomID      string   `json:"room_id"`
	Winner      string   `json:"winner,omitempty"`
	Addresses   []string `json:"addresses"`
	StakeAmount float64  `json:"stake_amount"`
	FeePercent  float64  `json:"fee_percent"`
}

type RefundRequest struct {
	Key         string   `json:"key"`
	RoomID      string   `json:"room_id"`
	Addresses   []string `json:"addresses"`
	StakeAmount float64  `json:"stake_amount"`
}

type LockRequest struct {
	RoomID  string  `json:"room_id"`
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

type Receipt struct {
	Key      string `json:"key"`
	TxRef    string `json:"tx_ref"`
	Attempts int    `json:"attempts,omitempty"`
	// Replayed is set when the key was already confirmed earlier.
	Replayed bool `json:"replayed,omitempty"`
}

type Gateway interface {
	Settle(ctx context.Context, req SettleRequest) (Receipt, error)
	Refund(ctx context.Context, req RefundRequest) (Receipt, error)
}

// Escrow is the full stake lifecycle: lock on seat, then settle or refund.
type Escrow interface {
	Gateway
	LockStake(ctx context.Context, req LockRequest) (string, error)
}

// FailureError reports a settlement that is still unconfirmed after the
// retry budget. It matches ErrSettlementFailure.
type FailureError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("settlement %s failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *FailureError) Unwrap() []error {
	return []error{ErrSettlementFailure, e.Err}
}

func SettleKey(roomID, winner string) string {
	if winner == "" {
		winner = "tie"
	}
	return roomID + ":settle:" + winner
}

func RefundKey(roomID string) string {
	return roomID + ":refund"
}

// RejectKey refunds a stake locked for a seat the room then refused. The
// lock reference keeps repeated refusals of one address distinct.
func RejectKey(roomID, address, lockRef string) string {
	return roomID + ":reject:" + address + ":" + lockRef
}
