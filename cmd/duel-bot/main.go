package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"balloon-duel/internal/config"
	"balloon-duel/internal/game/viewmodel"
	"balloon-duel/internal/logging"
	"balloon-duel/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// bot joins the newest waiting room (or opens one) over HTTP and plays it
// over the room socket.
type bot struct {
	cfg    config.BotConfig
	client *http.Client
	rnd    *rand.Rand
	seq    int
	// statuses already acted on; later snapshots of the same phase echo
	// our own moves
	acted map[string]bool
}

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &bot{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		acted:  map[string]bool{},
	}
	roomID, err := b.findOrCreateRoom(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("no room to play")
	}
	if err := b.play(ctx, roomID); err != nil {
		log.Fatal().Err(err).Str("room_id", roomID).Msg("play failed")
	}
}

func (b *bot) findOrCreateRoom(ctx context.Context) (string, error) {
	var lobby struct {
		Items []viewmodel.RoomState `json:"items"`
	}
	if err := b.call(ctx, http.MethodGet, "/api/rooms?limit=20", nil, &lobby); err != nil {
		return "", err
	}
	for _, r := range lobby.Items {
		if r.Creator.Address == b.cfg.Address {
			continue
		}
		var joined viewmodel.RoomState
		if err := b.call(ctx, http.MethodPost, "/api/rooms/"+r.RoomID+"/join", map[string]any{}, &joined); err != nil {
			log.Warn().Err(err).Str("room_id", r.RoomID).Msg("join failed")
			continue
		}
		log.Info().Str("room_id", r.RoomID).Float64("stake", r.StakeAmount).Msg("joined room")
		return r.RoomID, nil
	}
	var created viewmodel.RoomState
	if err := b.call(ctx, http.MethodPost, "/api/rooms", map[string]any{"stake": b.cfg.Stake}, &created); err != nil {
		return "", err
	}
	log.Info().Str("room_id", created.RoomID).Msg("created room, waiting for opponent")
	return created.RoomID, nil
}

func (b *bot) call(ctx context.Context, method, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(b.cfg.ServerURL, "/")+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ws.PlayerAddressHeader, b.cfg.Address)
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error  string `json:"error"`
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s %s", method, path, resp.StatusCode, e.Error, e.Reason)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (b *bot) play(ctx context.Context, roomID string) error {
	url := "ws" + strings.TrimPrefix(strings.TrimRight(b.cfg.ServerURL, "/"), "http") + "/ws/rooms/" + roomID
	header := http.Header{}
	header.Set(ws.PlayerAddressHeader, b.cfg.Address)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var update struct {
			Type string              `json:"type"`
			Room viewmodel.RoomState `json:"room"`
		}
		if err := json.Unmarshal(data, &update); err != nil || update.Type != "room_update" {
			continue
		}
		room := update.Room
		if room.Status == "finished" || room.Status == "cancelled" {
			logResult(b.cfg.Address, room)
			return nil
		}
		for _, msg := range b.decide(room) {
			if err := conn.WriteJSON(msg); err != nil {
				return err
			}
		}
	}
}

// decide returns the messages to send for a snapshot. It confirms once,
// then pumps toward a random point in the lower part of the target range
// and submits.
func (b *bot) decide(room viewmodel.RoomState) []ws.ClientMessage {
	me := seatOf(room, b.cfg.Address)
	if me == nil || b.acted[room.Status] {
		return nil
	}
	switch room.Status {
	case "readyToStart":
		if me.HasConfirmedStart {
			return nil
		}
		b.acted[room.Status] = true
		return []ws.ClientMessage{{Type: "confirm", RequestID: b.nextID()}}
	case "waitingForSubmissions":
		if me.HasSubmitted {
			return nil
		}
		goal := room.TargetMin + b.rnd.Float64()*(room.TargetMax-room.TargetMin)*0.5
		if goal < me.BalloonSize {
			goal = me.BalloonSize
		}
		b.acted[room.Status] = true
		var out []ws.ClientMessage
		if step := goal - me.BalloonSize; step > 0 {
			out = append(out, ws.ClientMessage{Type: "inflate", RequestID: b.nextID(), Delta: min(step, 1)})
		}
		return append(out, ws.ClientMessage{Type: "submit", RequestID: b.nextID(), FinalSize: goal})
	default:
		return nil
	}
}

func (b *bot) nextID() string {
	b.seq++
	return fmt.Sprintf("bot_%d", b.seq)
}

func seatOf(room viewmodel.RoomState, address string) *viewmodel.PlayerView {
	if room.Creator.Address == address {
		return &room.Creator
	}
	if room.Opponent != nil && room.Opponent.Address == address {
		return room.Opponent
	}
	return nil
}

func logResult(address string, room viewmodel.RoomState) {
	evt := log.Info().Str("room_id", room.RoomID).Str("status", room.Status)
	if room.TargetValue != nil {
		evt = evt.Float64("target", *room.TargetValue)
	}
	switch {
	case room.Tie:
		evt.Msg("round tied")
	case room.Winner != nil && *room.Winner == address:
		evt.Msg("round won")
	case room.Winner != nil:
		evt.Str("winner", *room.Winner).Msg("round lost")
	default:
		evt.Msg("room closed")
	}
}
