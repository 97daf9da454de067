package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"balloon-duel/internal/app/duel"
	"balloon-duel/internal/game/viewmodel"

	"github.com/go-chi/chi/v5"
)

type RoomHandlers struct {
	svc *duel.Service
}

func NewRoomHandlers(svc *duel.Service) *RoomHandlers {
	return &RoomHandlers{svc: svc}
}

// decodeBody accepts an empty body as the zero request.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *RoomHandlers) respond(w http.ResponseWriter, action string, room *viewmodel.RoomState, err error) {
	metricRoomActionTotal.Add(action, 1)
	if err != nil {
		writeServiceError(w, err, room)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, _ := PlayerFromContext(r.Context())
		var req duel.CreateRoomRequest
		if err := decodeBody(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		room, err := h.svc.CreateRoom(r.Context(), player, req)
		if err != nil {
			h.respond(w, "create", nil, err)
			return
		}
		metricRoomActionTotal.Add("create", 1)
		writeJSON(w, http.StatusCreated, room)
	}
}

func (h *RoomHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		out, err := h.svc.ListWaitingRooms(r.Context(), limit, offset)
		if err != nil {
			writeServiceError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *RoomHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := h.svc.GetRoom(r.Context(), chi.URLParam(r, "room_id"))
		if err != nil {
			writeServiceError(w, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

func (h *RoomHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, _ := PlayerFromContext(r.Context())
		var req duel.JoinRoomRequest
		if err := decodeBody(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		room, err := h.svc.JoinRoom(r.Context(), chi.URLParam(r, "room_id"), player, req)
		h.respond(w, "join", room, err)
	}
}

func (h *RoomHandlers) Confirm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, _ := PlayerFromContext(r.Context())
		room, err := h.svc.ConfirmStart(r.Context(), chi.URLParam(r, "room_id"), player)
		h.respond(w, "confirm", room, err)
	}
}

func (h *RoomHandlers) Inflate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, _ := PlayerFromContext(r.Context())
		var req duel.InflateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		room, err := h.svc.Inflate(r.Context(), chi.URLParam(r, "room_id"), player, req)
		h.respond(w, "inflate", room, err)
	}
}

func (h *RoomHandlers) Submit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, _ := PlayerFromContext(r.Context())
		var req duel.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		room, err := h.svc.Submit(r.Context(), chi.URLParam(r, "room_id"), player, req)
		h.respond(w, "submit", room, err)
	}
}

func (h *RoomHandlers) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player, _ := PlayerFromContext(r.Context())
		room, err := h.svc.CancelRoom(r.Context(), chi.URLParam(r, "room_id"), player)
		h.respond(w, "cancel", room, err)
	}
}
