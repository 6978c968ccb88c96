package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bingo-room-backend/internal/bus"
	"bingo-room-backend/internal/model"
)

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the shared in-memory database alive and avoids
	// table lock errors between the watcher reads and writes.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Room{}))

	b := bus.NewLocal(16)
	t.Cleanup(func() { b.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	s := NewGormStore(db, b)
	require.NoError(t, s.Start(ctx))
	return s
}

func newRoom(id, code string) *model.Room {
	return &model.Room{
		ID:           id,
		Code:         code,
		HostID:       "host-1",
		CreatedAt:    time.Now().UnixMilli(),
		MaxNumber:    75,
		DrawnNumbers: model.Numbers{},
		CurrentMode:  model.ModeManual,
	}
}

// snapshotRecorder collects snapshots delivered to a watcher.
type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []model.Snapshot
}

func (r *snapshotRecorder) record(s model.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *snapshotRecorder) last() (model.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return model.Snapshot{}, false
	}
	return r.snaps[len(r.snaps)-1], true
}

func (r *snapshotRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *snapshotRecorder) waitFor(t *testing.T, cond func(model.Snapshot) bool) model.Snapshot {
	t.Helper()
	var got model.Snapshot
	require.Eventually(t, func() bool {
		s, ok := r.last()
		if !ok || !cond(s) {
			return false
		}
		got = s
		return true
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestStoreContract(t *testing.T) {
	impls := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": newSQLiteStore,
	}

	for name, newStore := range impls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("create then read by id and code", func(t *testing.T) {
				s := newStore(t)
				require.NoError(t, s.CreateRoom(ctx, newRoom("r1", "AAA111")))

				byID, err := s.GetRoom(ctx, "r1")
				require.NoError(t, err)
				assert.Equal(t, "AAA111", byID.Code)
				assert.Equal(t, int64(1), byID.Version)
				assert.NotNil(t, byID.DrawnNumbers)
				assert.Empty(t, byID.DrawnNumbers)

				byCode, err := s.FindRoomByCode(ctx, "AAA111")
				require.NoError(t, err)
				assert.Equal(t, "r1", byCode.ID)

				_, err = s.FindRoomByCode(ctx, "ZZZ999")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("duplicate code is rejected", func(t *testing.T) {
				s := newStore(t)
				require.NoError(t, s.CreateRoom(ctx, newRoom("r1", "AAA111")))
				assert.ErrorIs(t, s.CreateRoom(ctx, newRoom("r2", "AAA111")), ErrDuplicateCode)
			})

			t.Run("conditional update", func(t *testing.T) {
				s := newStore(t)
				require.NoError(t, s.CreateRoom(ctx, newRoom("r1", "AAA111")))

				drawn := model.Numbers{12, 5}
				require.NoError(t, s.UpdateRoom(ctx, "r1", 1, model.RoomUpdate{DrawnNumbers: &drawn}))

				room, err := s.GetRoom(ctx, "r1")
				require.NoError(t, err)
				assert.Equal(t, model.Numbers{12, 5}, room.DrawnNumbers)
				assert.Equal(t, int64(2), room.Version)
				assert.Equal(t, 75, room.MaxNumber, "untouched fields keep their value")

				stale := model.Numbers{1}
				assert.ErrorIs(t, s.UpdateRoom(ctx, "r1", 1, model.RoomUpdate{DrawnNumbers: &stale}), ErrConflict)
				assert.ErrorIs(t, s.UpdateRoom(ctx, "nope", 1, model.RoomUpdate{DrawnNumbers: &stale}), ErrNotFound)
			})

			t.Run("delete", func(t *testing.T) {
				s := newStore(t)
				require.NoError(t, s.CreateRoom(ctx, newRoom("r1", "AAA111")))
				require.NoError(t, s.DeleteRoom(ctx, "r1"))

				_, err := s.GetRoom(ctx, "r1")
				assert.ErrorIs(t, err, ErrNotFound)
				assert.ErrorIs(t, s.DeleteRoom(ctx, "r1"), ErrNotFound)
			})

			t.Run("subscribe delivers current, updated and deleted state", func(t *testing.T) {
				s := newStore(t)
				require.NoError(t, s.CreateRoom(ctx, newRoom("r1", "AAA111")))

				rec := &snapshotRecorder{}
				cancel, err := s.Subscribe("r1", rec.record)
				require.NoError(t, err)
				defer cancel()

				rec.waitFor(t, func(s model.Snapshot) bool { return s.Room != nil && s.Room.Version == 1 })

				drawn := model.Numbers{7}
				require.NoError(t, s.UpdateRoom(ctx, "r1", 1, model.RoomUpdate{DrawnNumbers: &drawn}))
				snap := rec.waitFor(t, func(s model.Snapshot) bool { return s.Room != nil && s.Room.Version == 2 })
				assert.Equal(t, model.Numbers{7}, snap.Room.DrawnNumbers)

				require.NoError(t, s.DeleteRoom(ctx, "r1"))
				rec.waitFor(t, func(s model.Snapshot) bool { return s.Deleted })
			})

			t.Run("subscribe to a missing room yields deleted", func(t *testing.T) {
				s := newStore(t)
				rec := &snapshotRecorder{}
				cancel, err := s.Subscribe("ghost", rec.record)
				require.NoError(t, err)
				defer cancel()

				rec.waitFor(t, func(s model.Snapshot) bool { return s.Deleted })
			})

			t.Run("cancel stops delivery", func(t *testing.T) {
				s := newStore(t)
				require.NoError(t, s.CreateRoom(ctx, newRoom("r1", "AAA111")))

				rec := &snapshotRecorder{}
				cancel, err := s.Subscribe("r1", rec.record)
				require.NoError(t, err)
				rec.waitFor(t, func(s model.Snapshot) bool { return s.Room != nil })

				cancel()
				cancel()
				before := rec.count()

				drawn := model.Numbers{3}
				require.NoError(t, s.UpdateRoom(ctx, "r1", 1, model.RoomUpdate{DrawnNumbers: &drawn}))
				time.Sleep(50 * time.Millisecond)
				assert.Equal(t, before, rec.count())
			})

			t.Run("idle rooms", func(t *testing.T) {
				s := newStore(t)
				require.NoError(t, s.CreateRoom(ctx, newRoom("r1", "AAA111")))
				require.NoError(t, s.CreateRoom(ctx, newRoom("r2", "BBB222")))

				idle, err := s.ListIdleRooms(ctx, time.Now().Add(time.Hour), 10)
				require.NoError(t, err)
				assert.Len(t, idle, 2)

				idle, err = s.ListIdleRooms(ctx, time.Now().Add(-time.Hour), 10)
				require.NoError(t, err)
				assert.Empty(t, idle)
			})
		})
	}
}
