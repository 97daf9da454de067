// Package stream buffers room events for replay and live following.
package stream

import (
	"strconv"
	"sync"
	"time"
)

const defaultBufferSize = 64

type RoomEvent struct {
	EventID  string `json:"event_id"`
	Event    string `json:"event"`
	RoomID   string `json:"room_id"`
	ServerTS int64  `json:"server_ts"`
	Data     any    `json:"data"`
}

// EventBuffer keeps the last max events of one room. Slow watchers drop
// events rather than block the publisher; they can catch up with
// ReplayAfter.
type EventBuffer struct {
	mu       sync.Mutex
	roomID   string
	nextID   int64
	max      int
	events   []RoomEvent
	watchers map[chan RoomEvent]struct{}
	closed   bool
}

func NewEventBuffer(roomID string, max int) *EventBuffer {
	if max <= 0 {
		max = defaultBufferSize
	}
	return &EventBuffer{
		roomID:   roomID,
		max:      max,
		watchers: map[chan RoomEvent]struct{}{},
	}
}

func (b *EventBuffer) Append(event string, data any) RoomEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return RoomEvent{}
	}
	b.nextID++
	ev := RoomEvent{
		EventID:  strconv.FormatInt(b.nextID, 10),
		Event:    event,
		RoomID:   b.roomID,
		ServerTS: time.Now().UnixMilli(),
		Data:     data,
	}
	b.events = append(b.events, ev)
	if len(b.events) > b.max {
		b.events = b.events[len(b.events)-b.max:]
	}
	for ch := range b.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// ReplayAfter returns buffered events newer than lastEventID. An empty or
// malformed id replays everything still buffered.
func (b *EventBuffer) ReplayAfter(lastEventID string) []RoomEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	last, err := strconv.ParseInt(lastEventID, 10, 64)
	if lastEventID == "" || err != nil {
		out := make([]RoomEvent, len(b.events))
		copy(out, b.events)
		return out
	}
	out := make([]RoomEvent, 0, len(b.events))
	for _, ev := range b.events {
		id, _ := strconv.ParseInt(ev.EventID, 10, 64)
		if id > last {
			out = append(out, ev)
		}
	}
	return out
}

func (b *EventBuffer) Subscribe() chan RoomEvent {
	ch := make(chan RoomEvent, 32)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	return ch
}

func (b *EventBuffer) Unsubscribe(ch chan RoomEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}

func (b *EventBuffer) Watchers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers)
}

func (b *EventBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.watchers {
		close(ch)
		delete(b.watchers, ch)
	}
}
