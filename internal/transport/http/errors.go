package httptransport

import (
	"errors"
	"net/http"

	"balloon-duel/internal/app/duel"
	"balloon-duel/internal/coordinator"
	"balloon-duel/internal/game/viewmodel"
)

// MapError turns a coordinator or service error into a status and code.
func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, coordinator.ErrNotFound):
		return http.StatusNotFound, "room_not_found"
	case errors.Is(err, coordinator.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, coordinator.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, coordinator.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, coordinator.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, coordinator.ErrSettlementFailure):
		return http.StatusBadGateway, "settlement_failure"
	case errors.Is(err, duel.ErrStakeLockFailed):
		return http.StatusBadGateway, "stake_lock_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func errorReason(err error) string {
	var rej *coordinator.RejectError
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}

func writeServiceError(w http.ResponseWriter, err error, room *viewmodel.RoomState) {
	status, code := MapError(err)
	metricRequestErrorsTotal.Add(1)
	body := map[string]any{"error": code}
	if reason := errorReason(err); reason != "" {
		body["reason"] = reason
	}
	if room != nil {
		body["room"] = room
	}
	writeJSON(w, status, body)
}
