package store

import (
	"encoding/json"
	"fmt"

	"balloon-duel/internal/game"
)

func encodeRoom(r *game.Room) ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", r.RoomID, err)
	}
	return b, nil
}

func decodeRoom(b []byte) (*game.Room, error) {
	var r game.Room
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return &r, nil
}
