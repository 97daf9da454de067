package httptransport

import (
	"context"
	"net/http"
	"time"

	"balloon-duel/internal/stream"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

var ssePingInterval = 15 * time.Second

type EventSource interface {
	Events(ctx context.Context, roomID string) (*stream.EventBuffer, error)
}

func RoomEventsHandler(src EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "room_id")
		buf, err := src.Events(r.Context(), roomID)
		if err != nil {
			writeServiceError(w, err, nil)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		stream.SetSSEHeaders(w)
		log.Info().
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("room_id", roomID).
			Msg("sse stream opened")

		ch := buf.Subscribe()
		defer buf.Unsubscribe(ch)

		for _, ev := range buf.ReplayAfter(r.Header.Get("Last-Event-ID")) {
			if err := stream.WriteSSE(w, ev); err != nil {
				return
			}
			logSSEEvent(r, "replay", ev)
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				log.Info().
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("room_id", roomID).
					Err(r.Context().Err()).
					Msg("sse stream closed")
				return
			case ev, ok := <-ch:
				if !ok {
					log.Info().
						Str("request_id", chimw.GetReqID(r.Context())).
						Str("room_id", roomID).
						Msg("sse stream channel closed")
					return
				}
				if err := stream.WriteSSE(w, ev); err != nil {
					return
				}
				logSSEEvent(r, "live", ev)
				flusher.Flush()
			case <-ticker.C:
				now := time.Now().UnixMilli()
				ping := stream.RoomEvent{
					Event:    "ping",
					RoomID:   roomID,
					ServerTS: now,
					Data:     map[string]any{"ts": now},
				}
				if err := stream.WriteSSE(w, ping); err != nil {
					return
				}
				logSSEEvent(r, "ping", ping)
				flusher.Flush()
			}
		}
	}
}

func logSSEEvent(r *http.Request, source string, ev stream.RoomEvent) {
	evt := log.Info()
	if ev.Event == "ping" {
		evt = log.Debug()
	}
	evt.
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("room_id", ev.RoomID).
		Str("event", ev.Event).
		Str("event_id", ev.EventID).
		Str("source", source).
		Int64("server_ts", ev.ServerTS).
		Msg("sse event sent")
}
