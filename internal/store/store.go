package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bingo-room-backend/internal/bus"
	"bingo-room-backend/internal/model"
)

var (
	// ErrNotFound is returned when the room document does not exist.
	ErrNotFound = errors.New("store: room not found")
	// ErrDuplicateCode is returned when a room with the same code already exists.
	ErrDuplicateCode = errors.New("store: duplicate room code")
	// ErrConflict is returned when a conditional update lost against another writer.
	ErrConflict = errors.New("store: version conflict")
)

// Store defines the room document operations.
type Store interface {
	// Start begins delivering change notifications to watchers.
	Start(ctx context.Context) error

	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id string) (*model.Room, error)
	FindRoomByCode(ctx context.Context, code string) (*model.Room, error)
	// UpdateRoom applies upd only if the stored version still equals
	// expectedVersion, and bumps the version by one.
	UpdateRoom(ctx context.Context, id string, expectedVersion int64, upd model.RoomUpdate) error
	DeleteRoom(ctx context.Context, id string) error
	// Subscribe calls fn with the current snapshot of the room and then with
	// every later one until cancel is called or the room is deleted.
	Subscribe(roomID string, fn func(model.Snapshot)) (cancel func(), err error)
	ListIdleRooms(ctx context.Context, olderThan time.Time, limit int) ([]model.Room, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db       *gorm.DB
	bus      bus.Bus
	watchers *watchers
}

// NewGormStore creates a new GORM-backed store. Writes are announced on b so
// watchers in every instance sharing b see them.
func NewGormStore(db *gorm.DB, b bus.Bus) Store {
	s := &gormStore{db: db, bus: b}
	s.watchers = newWatchers(s.GetRoom)
	return s
}

// Start subscribes to the bus and dispatches change events until ctx ends.
func (s *gormStore) Start(ctx context.Context) error {
	events, cancel, err := s.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to change bus: %w", err)
	}
	go func() {
		defer cancel()
		s.watchers.consume(ctx, events)
	}()
	return nil
}

func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room) error {
	if room.Version == 0 {
		room.Version = 1
	}
	if room.DrawnNumbers == nil {
		room.DrawnNumbers = model.Numbers{}
	}
	room.UpdatedAt = time.Now().UTC()

	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to create room %s: %w", room.Code, err)
	}
	return nil
}

func (s *gormStore) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get room %s: %w", id, err)
	}
	return &room, nil
}

func (s *gormStore) FindRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find room by code %s: %w", code, err)
	}
	return &room, nil
}

func (s *gormStore) UpdateRoom(ctx context.Context, id string, expectedVersion int64, upd model.RoomUpdate) error {
	cols := upd.Columns()
	cols["version"] = expectedVersion + 1
	cols["updated_at"] = time.Now().UTC()

	res := s.db.WithContext(ctx).
		Model(&model.Room{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("failed to update room %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the room is gone or someone else wrote first.
		if _, err := s.GetRoom(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}

	s.publish(ctx, id)
	return nil
}

func (s *gormStore) DeleteRoom(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Room{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete room %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.publish(ctx, id)
	return nil
}

func (s *gormStore) Subscribe(roomID string, fn func(model.Snapshot)) (func(), error) {
	return s.watchers.subscribe(context.Background(), roomID, fn)
}

func (s *gormStore) ListIdleRooms(ctx context.Context, olderThan time.Time, limit int) ([]model.Room, error) {
	var rooms []model.Room
	q := s.db.WithContext(ctx).
		Where("updated_at < ?", olderThan.UTC()).
		Order("updated_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list idle rooms: %w", err)
	}
	return rooms, nil
}

// publish announces a committed write. The write already succeeded, so a
// failure here only delays watchers until the next change.
func (s *gormStore) publish(ctx context.Context, id string) {
	if err := s.bus.Publish(ctx, id); err != nil {
		logrus.WithError(err).WithField("room_id", id).Warn("failed to publish room change")
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
