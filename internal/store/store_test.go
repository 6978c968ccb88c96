package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bingo-room-backend/internal/bus"
	"bingo-room-backend/internal/model"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

var roomColumns = []string{"id", "code", "host_id", "created_at", "max_number", "drawn_numbers", "current_mode", "version", "updated_at"}

func TestGormStore_SQL(t *testing.T) {
	now := time.Now().UTC()

	testCases := []struct {
		name             string
		mockExpectations func(mock sqlmock.Sqlmock)
		run              func(t *testing.T, s Store)
	}{
		{
			name: "GetRoom maps a missing row to ErrNotFound",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rooms" WHERE id = $1 ORDER BY "rooms"."id" LIMIT $2`)).
					WithArgs("missing", 1).
					WillReturnRows(sqlmock.NewRows(roomColumns))
			},
			run: func(t *testing.T, s Store) {
				_, err := s.GetRoom(context.Background(), "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "FindRoomByCode decodes the drawn numbers column",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rooms" WHERE code = $1 ORDER BY "rooms"."id" LIMIT $2`)).
					WithArgs("ABC123", 1).
					WillReturnRows(sqlmock.NewRows(roomColumns).
						AddRow("room-1", "ABC123", "host-1", int64(1700000000000), 75, "[12,5,9]", "manual", int64(4), now))
			},
			run: func(t *testing.T, s Store) {
				room, err := s.FindRoomByCode(context.Background(), "ABC123")
				require.NoError(t, err)
				assert.Equal(t, "room-1", room.ID)
				assert.Equal(t, "host-1", room.HostID)
				assert.Equal(t, model.Numbers{12, 5, 9}, room.DrawnNumbers)
				assert.Equal(t, model.ModeManual, room.CurrentMode)
				assert.Equal(t, int64(4), room.Version)
			},
		},
		{
			name: "UpdateRoom reports a conflict when the version moved",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "rooms" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rooms" WHERE id = $1`)).
					WithArgs("room-1", 1).
					WillReturnRows(sqlmock.NewRows(roomColumns).
						AddRow("room-1", "ABC123", "host-1", int64(1700000000000), 75, "[1]", "manual", int64(5), now))
			},
			run: func(t *testing.T, s Store) {
				drawn := model.Numbers{1, 2}
				err := s.UpdateRoom(context.Background(), "room-1", 4, model.RoomUpdate{DrawnNumbers: &drawn})
				assert.ErrorIs(t, err, ErrConflict)
			},
		},
		{
			name: "UpdateRoom reports a missing room",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "rooms" SET`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "rooms" WHERE id = $1`)).
					WithArgs("gone", 1).
					WillReturnRows(sqlmock.NewRows(roomColumns))
			},
			run: func(t *testing.T, s Store) {
				err := s.UpdateRoom(context.Background(), "gone", 1, model.RoomUpdate{})
				assert.ErrorIs(t, err, ErrNotFound)
			},
		},
		{
			name: "DeleteRoom of an unknown id is ErrNotFound",
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "rooms" WHERE id = $1`)).
					WithArgs("gone").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			run: func(t *testing.T, s Store) {
				assert.ErrorIs(t, s.DeleteRoom(context.Background(), "gone"), ErrNotFound)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newMockDB(t)
			s := NewGormStore(gormDB, bus.NewLocal(1))

			tc.mockExpectations(mock)
			tc.run(t, s)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
