package mcpserver

import (
	"errors"
	"fmt"

	"balloon-duel/internal/app/duel"
	"balloon-duel/internal/coordinator"
	"balloon-duel/internal/game/viewmodel"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	return toolErrorWith(code, message, nil)
}

func toolErrorWith(code, message string, room *viewmodel.RoomState) *mcp.CallToolResult {
	payload := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if room != nil {
		payload["room"] = room
	}
	result := mcp.NewToolResultStructured(payload, fmt.Sprintf("%s: %s", code, message))
	result.IsError = true
	return result
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrNotFound):
		return "room_not_found"
	case errors.Is(err, coordinator.ErrConflict):
		return "conflict"
	case errors.Is(err, coordinator.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, coordinator.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, coordinator.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, coordinator.ErrSettlementFailure):
		return "settlement_failure"
	case errors.Is(err, duel.ErrStakeLockFailed):
		return "stake_lock_failed"
	default:
		return "internal_error"
	}
}

// roomResult reports a room action. Any room returned with an error is
// attached to the error payload.
func roomResult(room *viewmodel.RoomState, err error) *mcp.CallToolResult {
	if err == nil {
		return toolResult(room)
	}
	return toolErrorWith(errorCode(err), err.Error(), room)
}
