package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"bingo-room-backend/internal/game"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func subscriptionRows(roomID string, endpoints ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "room_id", "created_at"})
	for _, e := range endpoints {
		rows.AddRow(e, "test_p256dh", "test_auth", roomID, time.Now())
	}
	return rows
}

func TestMessageFor(t *testing.T) {
	assert.Equal(t, "Number 42 drawn", MessageFor(game.Event{Kind: game.EventDrawn, Code: "ABC123", Number: 42}).Body)
	assert.Equal(t, "All numbers drawn", MessageFor(game.Event{Kind: game.EventComplete, Code: "ABC123"}).Body)
	closed := MessageFor(game.Event{Kind: game.EventClosed, Code: "ABC123"})
	assert.Equal(t, "Room closed", closed.Body)
	assert.Equal(t, "ABC123", closed.RoomCode)
	assert.Zero(t, closed.Number)
}

func TestWorkerPool_Notify(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	ev := game.Event{Kind: game.EventDrawn, RoomID: "room-1", Code: "ABC123", Number: 7}
	wp.Notify(ev)

	select {
	case job := <-wp.jobs:
		assert.Equal(t, ev, job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be queued")
	}
}

func TestWorkerPool_NotifyDropsWhenFull(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(wp.jobs)+10; i++ {
			wp.Notify(game.Event{Kind: game.EventDrawn, RoomID: "room-1", Number: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
	assert.Len(t, wp.jobs, cap(wp.jobs))
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends drawn number to room subscriptions", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(2)

		var mu sync.Mutex
		var endpoints []string
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				var msg Message
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "Number 12 drawn", msg.Body)
				assert.Equal(t, 12, msg.Number)
				mu.Lock()
				endpoints = append(endpoints, sub.Endpoint)
				mu.Unlock()
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE room_id = \$1`).
			WithArgs("room-1").
			WillReturnRows(subscriptionRows("room-1", "https://example.com/a", "https://example.com/b"))

		wp.Notify(game.Event{Kind: game.EventDrawn, RoomID: "room-1", Code: "ABC123", Number: 12})
		wg.Wait()
		assert.ElementsMatch(t, []string{"https://example.com/a", "https://example.com/b"}, endpoints)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE room_id = \$1`).
			WithArgs("room-2").
			WillReturnRows(subscriptionRows("room-2", "https://example.com/expired"))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Notify(game.Event{Kind: game.EventDrawn, RoomID: "room-2", Code: "XYZ789", Number: 3})

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("closed room notifies then drops subscriptions", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				defer wg.Done()
				var msg Message
				assert.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "Room closed", msg.Body)
				return response(http.StatusCreated), nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE room_id = \$1`).
			WithArgs("room-3").
			WillReturnRows(subscriptionRows("room-3", "https://example.com/c"))
		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE room_id = \$1`).
			WithArgs("room-3").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		wp.Notify(game.Event{Kind: game.EventClosed, RoomID: "room-3", Code: "QWE456"})
		wg.Wait()

		assert.Eventually(t, func() bool {
			return mock.ExpectationsWereMet() == nil
		}, time.Second, 10*time.Millisecond)
	})
}
