package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"balloon-duel/internal/app/duel"
	"balloon-duel/internal/coordinator"
	"balloon-duel/internal/game/viewmodel"
	"balloon-duel/internal/stream"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	PlayerAddressHeader = "X-Player-Address"
	maxRequestIDLen     = 64
	writeWait           = 10 * time.Second
)

type EventSource interface {
	Events(ctx context.Context, roomID string) (*stream.EventBuffer, error)
}

type RoomActions interface {
	ConfirmStart(ctx context.Context, roomID, player string) (*viewmodel.RoomState, error)
	Inflate(ctx context.Context, roomID, player string, req duel.InflateRequest) (*viewmodel.RoomState, error)
	Submit(ctx context.Context, roomID, player string, req duel.SubmitRequest) (*viewmodel.RoomState, error)
}

type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	roomID string
	player string
}

type Server struct {
	events   EventSource
	actions  RoomActions
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*Client]struct{}
}

func NewServer(events EventSource, actions RoomActions) *Server {
	return &Server{
		events:   events,
		actions:  actions,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  map[*Client]struct{}{},
	}
}

// HandleRoom streams room_update messages for one room. The optional
// last_event_id query parameter resumes after a known event.
func (s *Server) HandleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room_id")
	buf, err := s.events.Events(r.Context(), roomID)
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, coordinator.ErrNotFound) {
			status, code = http.StatusNotFound, "room_not_found"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := &Client{
		conn:   conn,
		send:   make(chan []byte, 16),
		roomID: roomID,
		player: strings.TrimSpace(r.Header.Get(PlayerAddressHeader)),
	}
	s.register(client)
	metricConnectionsTotal.Add(1)
	metricConnectionsActive.Add(1)
	defer metricConnectionsActive.Add(-1)
	log.Info().Str("room_id", roomID).Str("player", client.player).Msg("room watch opened")

	ctx, cancel := context.WithCancel(context.Background())
	go s.writeLoop(client)
	go s.pump(ctx, client, buf, r.URL.Query().Get("last_event_id"))
	s.readLoop(ctx, client)
	cancel()
	log.Info().Str("room_id", roomID).Str("player", client.player).Msg("room watch closed")
}

func (s *Server) register(c *Client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	safeClose(c.send)
}

// Clients reports how many sockets are open across all rooms.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) pump(ctx context.Context, c *Client, buf *stream.EventBuffer, lastEventID string) {
	ch := buf.Subscribe()
	defer buf.Unsubscribe(ch)
	for _, ev := range buf.ReplayAfter(lastEventID) {
		safeSend(c.send, encodeUpdate(ev))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				// buffer dropped with the room; tell the reader to stop
				_ = c.conn.Close()
				return
			}
			safeSend(c.send, encodeUpdate(ev))
		}
	}
}

func encodeUpdate(ev stream.RoomEvent) []byte {
	msg, _ := json.Marshal(RoomUpdate{
		Type:            "room_update",
		ProtocolVersion: ProtocolVersion,
		EventID:         ev.EventID,
		RoomID:          ev.RoomID,
		ServerTS:        ev.ServerTS,
		Room:            ev.Data,
	})
	return msg
}

func (s *Server) readLoop(ctx context.Context, c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(ctx, c, msg)
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, c *Client, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	switch msg.Type {
	case "ping":
		out, _ := json.Marshal(Pong{Type: "pong", ProtocolVersion: ProtocolVersion, ServerTS: time.Now().UnixMilli()})
		safeSend(c.send, out)
	case "confirm", "inflate", "submit":
		s.handleAction(ctx, c, msg)
	}
}

func (s *Server) handleAction(ctx context.Context, c *Client, msg ClientMessage) {
	if msg.RequestID == "" || len(msg.RequestID) > maxRequestIDLen {
		s.sendActionResult(c, msg.RequestID, nil, "invalid_request_id")
		return
	}
	if c.player == "" {
		s.sendActionResult(c, msg.RequestID, nil, "missing_player_address")
		return
	}
	var (
		room *viewmodel.RoomState
		err  error
	)
	switch msg.Type {
	case "confirm":
		room, err = s.actions.ConfirmStart(ctx, c.roomID, c.player)
	case "inflate":
		room, err = s.actions.Inflate(ctx, c.roomID, c.player, duel.InflateRequest{Delta: msg.Delta})
	case "submit":
		room, err = s.actions.Submit(ctx, c.roomID, c.player, duel.SubmitRequest{FinalSize: msg.FinalSize})
	}
	metricActionsTotal.Add(msg.Type, 1)
	if err != nil {
		log.Debug().Err(err).Str("room_id", c.roomID).Str("player", c.player).Str("action", msg.Type).Msg("ws action rejected")
		s.sendActionResult(c, msg.RequestID, room, errorCode(err))
		return
	}
	s.sendActionResult(c, msg.RequestID, room, "")
}

func (s *Server) sendActionResult(c *Client, requestID string, room *viewmodel.RoomState, code string) {
	out, _ := json.Marshal(ActionResult{
		Type:            "action_result",
		ProtocolVersion: ProtocolVersion,
		RequestID:       requestID,
		Ok:              code == "",
		Error:           code,
		Room:            room,
	})
	safeSend(c.send, out)
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
	default:
		return "internal_error"
	}
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}
