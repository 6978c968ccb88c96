package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"bingo-room-backend/internal/model"
	"bingo-room-backend/internal/parse"
	"bingo-room-backend/internal/store"
)

const maxCodeAttempts = 10

// Role is the part a caller plays in a room.
type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

// EventKind classifies room events worth telling players about.
type EventKind string

const (
	EventDrawn    EventKind = "drawn"
	EventComplete EventKind = "complete"
	EventClosed   EventKind = "closed"
)

// Event describes something that happened to a room.
type Event struct {
	Kind   EventKind
	RoomID string
	Code   string
	Number int
}

// Notifier receives room events. Implementations must not block.
type Notifier interface {
	Notify(ev Event)
}

// Options configures a Service.
type Options struct {
	CodeLength         int
	DefaultMaxNumber   int
	Limits             Limits
	AllowPlayerMarking bool
	MaxWriteAttempts   int
	CodeCacheTTL       time.Duration
	// Rand drives tombola draws. A time-seeded source is used when nil.
	Rand     *rand.Rand
	Notifier Notifier
}

// Service applies the room rules on top of a store. Every mutation reads the
// latest document, checks the caller against its host, and writes back with
// a version check, retrying on conflicts.
type Service struct {
	store store.Store
	opts  Options
	codes *cache.Cache

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService creates a Service.
func NewService(s store.Store, opts Options) *Service {
	if s == nil {
		panic("store cannot be nil for game Service")
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = 6
	}
	if opts.DefaultMaxNumber <= 0 {
		opts.DefaultMaxNumber = 75
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits
	}
	if opts.MaxWriteAttempts <= 0 {
		opts.MaxWriteAttempts = 5
	}
	if opts.CodeCacheTTL <= 0 {
		opts.CodeCacheTTL = 30 * time.Minute
	}
	rng := opts.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &Service{
		store: s,
		opts:  opts,
		codes: cache.New(opts.CodeCacheTTL, 2*opts.CodeCacheTTL),
		rng:   rng,
	}
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

// CreateRoom creates a room hosted by caller. Zero values select the
// default board size and manual mode.
func (s *Service) CreateRoom(ctx context.Context, caller string, maxNumber int, mode model.Mode) (*model.Room, error) {
	if caller == "" {
		return nil, ErrAuthRequired
	}
	if maxNumber == 0 {
		maxNumber = s.opts.DefaultMaxNumber
	}
	if mode == "" {
		mode = model.ModeManual
	}
	if err := validateNew(maxNumber, mode); err != nil {
		return nil, err
	}
	logCtx := logrus.WithField("caller", caller)

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := newCode(s.opts.CodeLength)
		if err != nil {
			return nil, err
		}

		_, err = s.store.FindRoomByCode(ctx, code)
		if err == nil {
			logCtx.WithField("code", code).Warnf("generated room code already exists, retrying (attempt %d)", attempt)
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to check room code: %w", err)
		}

		room := &model.Room{
			ID:           uuid.NewString(),
			Code:         code,
			HostID:       caller,
			CreatedAt:    time.Now().UnixMilli(),
			MaxNumber:    maxNumber,
			DrawnNumbers: model.Numbers{},
			CurrentMode:  mode,
		}
		err = s.store.CreateRoom(ctx, room)
		if errors.Is(err, store.ErrDuplicateCode) {
			// Lost a race with another creator between the check and the insert.
			continue
		}
		if err != nil {
			return nil, err
		}

		s.codes.SetDefault(room.Code, room.ID)
		logCtx.WithFields(logrus.Fields{"room_id": room.ID, "code": room.Code}).Info("room created")
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate a unique room code after %d attempts", maxCodeAttempts)
}

// FindRoom resolves a human-entered code to the latest room document.
func (s *Service) FindRoom(ctx context.Context, rawCode string) (*model.Room, error) {
	code, err := parse.RoomCode(rawCode, s.opts.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}

	if id, ok := s.codes.Get(code); ok {
		room, err := s.store.GetRoom(ctx, id.(string))
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		s.codes.Delete(code)
		return nil, ErrRoomNotFound
	}

	room, err := s.store.FindRoomByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	s.codes.SetDefault(code, room.ID)
	return room, nil
}

// EnterRoom resolves the room a caller wants to open with the given role.
// Only the room's host may enter as host.
func (s *Service) EnterRoom(ctx context.Context, caller, code string, role Role) (*model.Room, error) {
	if role != RoleHost && role != RolePlayer {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	room, err := s.FindRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if role == RoleHost && (caller == "" || caller != room.HostID) {
		return nil, ErrAccessDenied
	}
	return room, nil
}

// Draw records a manually entered number.
func (s *Service) Draw(ctx context.Context, caller, code string, n int) (*model.Room, error) {
	room, err := s.mutate(ctx, caller, code, true, func(r *model.Room) (model.RoomUpdate, error) {
		return Draw(r, n)
	})
	if err != nil {
		return nil, err
	}
	s.notifyDrawn(room, n)
	return room, nil
}

// Undraw removes a number drawn by mistake.
func (s *Service) Undraw(ctx context.Context, caller, code string, n int) (*model.Room, error) {
	return s.mutate(ctx, caller, code, true, func(r *model.Room) (model.RoomUpdate, error) {
		return Undraw(r, n)
	})
}

// ToggleMark flips a number on the board. Players may use it only when
// collaborative marking is enabled.
func (s *Service) ToggleMark(ctx context.Context, caller, code string, n int) (*model.Room, bool, error) {
	var marked bool
	room, err := s.mutate(ctx, caller, code, !s.opts.AllowPlayerMarking, func(r *model.Room) (model.RoomUpdate, error) {
		upd, m, err := Toggle(r, n)
		marked = m
		return upd, err
	})
	if err != nil {
		return nil, false, err
	}
	if marked {
		s.notifyDrawn(room, n)
	}
	return room, marked, nil
}

// DrawTombola picks and commits a random undrawn number. It returns
// ErrExhausted once every number is drawn.
func (s *Service) DrawTombola(ctx context.Context, caller, code string) (int, *model.Room, error) {
	var picked int
	room, err := s.mutate(ctx, caller, code, true, func(r *model.Room) (model.RoomUpdate, error) {
		s.rngMu.Lock()
		n, err := Pick(r.DrawnNumbers, r.MaxNumber, s.rng)
		s.rngMu.Unlock()
		if err != nil {
			return model.RoomUpdate{}, err
		}
		picked = n
		return Draw(r, n)
	})
	if err != nil {
		return 0, nil, err
	}
	s.notifyDrawn(room, picked)
	return picked, room, nil
}

// Reconfigure changes board size and mode before the game starts.
func (s *Service) Reconfigure(ctx context.Context, caller, code string, maxNumber int, mode model.Mode) (*model.Room, error) {
	return s.mutate(ctx, caller, code, true, func(r *model.Room) (model.RoomUpdate, error) {
		m := mode
		if m == "" {
			m = r.CurrentMode
		}
		return Reconfigure(r, maxNumber, m, s.opts.Limits)
	})
}

// Reset clears the board. changed is false when there was nothing to clear.
func (s *Service) Reset(ctx context.Context, caller, code string) (room *model.Room, changed bool, err error) {
	room, err = s.mutate(ctx, caller, code, true, func(r *model.Room) (model.RoomUpdate, error) {
		upd := Reset(r)
		changed = !upd.Empty()
		return upd, nil
	})
	if err != nil {
		return nil, false, err
	}
	return room, changed, nil
}

// DeleteRoom closes a room. Watchers observe it as deleted.
func (s *Service) DeleteRoom(ctx context.Context, caller, code string) error {
	if caller == "" {
		return ErrAuthRequired
	}
	room, err := s.FindRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.HostID != caller {
		return ErrAccessDenied
	}
	return s.remove(ctx, room)
}

// Watch subscribes fn to the snapshots of the room with the given code.
func (s *Service) Watch(ctx context.Context, code string, fn func(model.Snapshot)) (func(), error) {
	room, err := s.FindRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.store.Subscribe(room.ID, fn)
}

// ReapIdle deletes up to limit rooms that were not written since olderThan.
func (s *Service) ReapIdle(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	rooms, err := s.store.ListIdleRooms(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := range rooms {
		if err := s.remove(ctx, &rooms[i]); err != nil {
			if errors.Is(err, ErrRoomNotFound) {
				continue
			}
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *Service) remove(ctx context.Context, room *model.Room) error {
	err := s.store.DeleteRoom(ctx, room.ID)
	s.codes.Delete(room.Code)
	if errors.Is(err, store.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"room_id": room.ID, "code": room.Code}).Info("room deleted")
	s.notify(Event{Kind: EventClosed, RoomID: room.ID, Code: room.Code})
	return nil
}

// mutate runs rule against the latest room and writes the result back
// conditionally on the version that was read.
func (s *Service) mutate(ctx context.Context, caller, code string, hostOnly bool, rule func(*model.Room) (model.RoomUpdate, error)) (*model.Room, error) {
	if caller == "" {
		return nil, ErrAuthRequired
	}
	room, err := s.FindRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		if hostOnly && room.HostID != caller {
			return nil, ErrAccessDenied
		}

		upd, err := rule(room)
		if err != nil {
			return nil, err
		}
		if upd.Empty() {
			return room, nil
		}

		err = s.store.UpdateRoom(ctx, room.ID, room.Version, upd)
		switch {
		case err == nil:
			next := room.Clone()
			upd.ApplyTo(next)
			next.Version++
			return next, nil
		case errors.Is(err, store.ErrNotFound):
			s.codes.Delete(room.Code)
			return nil, ErrRoomNotFound
		case !errors.Is(err, store.ErrConflict):
			return nil, err
		}

		if attempt >= s.opts.MaxWriteAttempts {
			logrus.WithFields(logrus.Fields{"room_id": room.ID, "attempts": attempt}).Warn("giving up after repeated write conflicts")
			return nil, ErrConflict
		}
		logrus.WithFields(logrus.Fields{"room_id": room.ID, "attempt": attempt}).Debug("write conflict, re-reading room")

		id, roomCode := room.ID, room.Code
		room, err = s.store.GetRoom(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			s.codes.Delete(roomCode)
			return nil, ErrRoomNotFound
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *Service) notifyDrawn(room *model.Room, n int) {
	s.notify(Event{Kind: EventDrawn, RoomID: room.ID, Code: room.Code, Number: n})
	if len(room.DrawnNumbers) == room.MaxNumber {
		s.notify(Event{Kind: EventComplete, RoomID: room.ID, Code: room.Code})
	}
}

func (s *Service) notify(ev Event) {
	if s.opts.Notifier != nil {
		s.opts.Notifier.Notify(ev)
	}
}
