package httptransport

import (
	"context"
	"net/http"

	"balloon-duel/internal/app/duel"

	"github.com/go-chi/chi/v5"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandlers struct {
	store Pinger
	svc   *duel.Service
}

func NewAdminHandlers(st Pinger, svc *duel.Service) *AdminHandlers {
	return &AdminHandlers{store: st, svc: svc}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "store": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": "up"})
	}
}

func (h *AdminHandlers) RetrySettlement() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := h.svc.RetrySettlement(r.Context(), chi.URLParam(r, "room_id"))
		if err != nil {
			writeServiceError(w, err, room)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}
