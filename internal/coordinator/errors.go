package coordinator

import (
	"errors"

	"balloon-duel/internal/settlement"
	"balloon-duel/internal/store"
)

var (
	ErrNotFound          = store.ErrNotFound
	ErrConflict          = store.ErrConflict
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidRequest    = errors.New("invalid_request")
	ErrSettlementFailure = settlement.ErrSettlementFailure
)

// RejectError is a refused action. The room is unchanged.
type RejectError struct {
	Code   error
	Reason string
}

func (e *RejectError) Error() string {
	if e.Reason == "" {
		return e.Code.Error()
	}
	return e.Code.Error() + ": " + e.Reason
}

func (e *RejectError) Unwrap() error { return e.Code }

func reject(code error, reason string) error {
	return &RejectError{Code: code, Reason: reason}
}
