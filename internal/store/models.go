package store

import "time"

type SettlementRecord struct {
	Key       string    `json:"key"`
	RoomID    string    `json:"room_id"`
	Kind      string    `json:"kind"`
	TxRef     string    `json:"tx_ref"`
	CreatedAt time.Time `json:"created_at"`
}
