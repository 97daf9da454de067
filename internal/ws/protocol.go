package ws

import "balloon-duel/internal/game/viewmodel"

const ProtocolVersion = "1.0"

// ClientMessage is anything a watcher sends. Players may act on the room
// over the same socket; spectators only ever send ping.
type ClientMessage struct {
	Type      string  `json:"type"`
	RequestID string  `json:"request_id,omitempty"`
	Delta     float64 `json:"delta,omitempty"`
	FinalSize float64 `json:"final_size,omitempty"`
}

type ActionResult struct {
	Type            string               `json:"type"`
	ProtocolVersion string               `json:"protocol_version"`
	RequestID       string               `json:"request_id,omitempty"`
	Ok              bool                 `json:"ok"`
	Error           string               `json:"error,omitempty"`
	Room            *viewmodel.RoomState `json:"room,omitempty"`
}

type RoomUpdate struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EventID         string `json:"event_id"`
	RoomID          string `json:"room_id"`
	ServerTS        int64  `json:"server_ts"`
	Room            any    `json:"room"`
}

type Pong struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ServerTS        int64  `json:"server_ts"`
}
