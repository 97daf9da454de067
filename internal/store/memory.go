package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"balloon-duel/internal/game"
)

type memoryEntry struct {
	mu      sync.Mutex
	room    *game.Room
	deleted bool
}

// MemoryStore keeps rooms in process. The map lock only guards membership;
// each room carries its own mutex for read-modify-write.
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]*memoryEntry

	settleMu    sync.Mutex
	settlements map[string]SettlementRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:       map[string]*memoryEntry{},
		settlements: map[string]SettlementRecord{},
	}
}

func (s *MemoryStore) entry(roomID string) *memoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

func (s *MemoryStore) Get(_ context.Context, roomID string) (*game.Room, error) {
	e := s.entry(roomID)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}
	return e.room.Clone(), nil
}

func (s *MemoryStore) Create(_ context.Context, room *game.Room) (*game.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.RoomID]; ok {
		return nil, ErrConflict
	}
	stored := room.Clone()
	s.rooms[room.RoomID] = &memoryEntry{room: stored}
	return stored.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, roomID string, fn Mutator) (*game.Room, error) {
	e := s.entry(roomID)
	if e == nil {
		return nil, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, ErrNotFound
	}
	next := e.room.Clone()
	if err := fn(next); err != nil {
		if errors.Is(err, ErrNoChange) {
			return e.room.Clone(), nil
		}
		return nil, err
	}
	next.RoomID = e.room.RoomID
	next.Version = e.room.Version + 1
	e.room = next
	return next.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*game.Room, error) {
	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.rooms))
	for _, e := range s.rooms {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*game.Room, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.deleted && f.matches(e.room) {
			out = append(out, e.room.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RoomID > out[j].RoomID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func (s *MemoryStore) Delete(_ context.Context, roomID string) error {
	s.mu.Lock()
	e := s.rooms[roomID]
	delete(s.rooms, roomID)
	s.mu.Unlock()
	if e == nil {
		return ErrNotFound
	}
	e.mu.Lock()
	e.deleted = true
	e.mu.Unlock()
	return nil
}

func (s *MemoryStore) GetSettlement(_ context.Context, key string) (*SettlementRecord, error) {
	s.settleMu.Lock()
	defer s.settleMu.Unlock()
	rec, ok := s.settlements[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) PutSettlement(_ context.Context, rec SettlementRecord) (bool, error) {
	s.settleMu.Lock()
	defer s.settleMu.Unlock()
	if _, ok := s.settlements[rec.Key]; ok {
		return false, nil
	}
	s.settlements[rec.Key] = rec
	return true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}

func paginate(rooms []*game.Room, limit, offset int) []*game.Room {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rooms) {
		return []*game.Room{}
	}
	rooms = rooms[offset:]
	if limit > 0 && limit < len(rooms) {
		rooms = rooms[:limit]
	}
	return rooms
}
