package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"bingo-room-backend/internal/model"
)

// memoryStore keeps rooms in process memory. Changes reach watchers
// synchronously after each write.
type memoryStore struct {
	mu       sync.RWMutex
	rooms    map[string]*model.Room
	codes    map[string]string
	watchers *watchers
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() Store {
	s := &memoryStore{
		rooms: make(map[string]*model.Room),
		codes: make(map[string]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
	s.watchers = newWatchers(s.GetRoom)
	return s
}

func (s *memoryStore) Start(ctx context.Context) error {
	return nil
}

func (s *memoryStore) CreateRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.codes[room.Code]; exists {
		return ErrDuplicateCode
	}
	if _, exists := s.rooms[room.ID]; exists {
		return ErrDuplicateCode
	}
	if room.Version == 0 {
		room.Version = 1
	}
	if room.DrawnNumbers == nil {
		room.DrawnNumbers = model.Numbers{}
	}
	room.UpdatedAt = s.now()

	s.rooms[room.ID] = room.Clone()
	s.codes[room.Code] = room.ID
	return nil
}

func (s *memoryStore) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return room.Clone(), nil
}

func (s *memoryStore) FindRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	s.mu.RLock()
	id, ok := s.codes[code]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetRoom(ctx, id)
}

func (s *memoryStore) UpdateRoom(ctx context.Context, id string, expectedVersion int64, upd model.RoomUpdate) error {
	s.mu.Lock()
	room, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if room.Version != expectedVersion {
		s.mu.Unlock()
		return ErrConflict
	}
	upd.ApplyTo(room)
	room.Version++
	room.UpdatedAt = s.now()
	s.mu.Unlock()

	s.watchers.dispatch(ctx, id)
	return nil
}

func (s *memoryStore) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	room, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.rooms, id)
	delete(s.codes, room.Code)
	s.mu.Unlock()

	s.watchers.dispatch(ctx, id)
	return nil
}

func (s *memoryStore) Subscribe(roomID string, fn func(model.Snapshot)) (func(), error) {
	return s.watchers.subscribe(context.Background(), roomID, fn)
}

func (s *memoryStore) ListIdleRooms(ctx context.Context, olderThan time.Time, limit int) ([]model.Room, error) {
	s.mu.RLock()
	var rooms []model.Room
	for _, r := range s.rooms {
		if r.UpdatedAt.Before(olderThan) {
			rooms = append(rooms, *r.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].UpdatedAt.Before(rooms[j].UpdatedAt) })
	if limit > 0 && len(rooms) > limit {
		rooms = rooms[:limit]
	}
	return rooms, nil
}
