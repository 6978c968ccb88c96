package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bingo-room-backend/internal/game"
	"bingo-room-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Message is the JSON payload delivered to the browser's service worker.
type Message struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	RoomCode string `json:"roomCode"`
	Number   int    `json:"number,omitempty"`
}

// MessageFor renders the notification for a room event.
func MessageFor(ev game.Event) Message {
	msg := Message{Title: "Bingo " + ev.Code, RoomCode: ev.Code}
	switch ev.Kind {
	case game.EventDrawn:
		msg.Body = fmt.Sprintf("Number %d drawn", ev.Number)
		msg.Number = ev.Number
	case game.EventComplete:
		msg.Body = "All numbers drawn"
	case game.EventClosed:
		msg.Body = "Room closed"
	default:
		msg.Body = string(ev.Kind)
	}
	return msg
}

// WorkerPool delivers room events to the push subscriptions of each room.
type WorkerPool struct {
	size    int
	jobs    chan game.Event
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan game.Event, size*64),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	logCtx := logrus.WithFields(logrus.Fields{"component": "notification", "worker": id})
	logCtx.Debug("worker started")
	for {
		select {
		case ev := <-wp.jobs:
			logCtx.WithFields(logrus.Fields{"room_id": ev.RoomID, "kind": ev.Kind}).Debug("processing room event")
			wp.deliver(ctx, ev)
		case <-ctx.Done():
			logCtx.Debug("worker shutting down")
			return
		}
	}
}

// Notify queues a room event. Events are dropped when the queue is full so
// that game writes never wait on push delivery.
func (wp *WorkerPool) Notify(ev game.Event) {
	select {
	case wp.jobs <- ev:
	default:
		logrus.WithFields(logrus.Fields{"room_id": ev.RoomID, "kind": ev.Kind}).Warn("notification queue full, dropping event")
	}
}

// deliver sends the event to every subscription of its room.
func (wp *WorkerPool) deliver(ctx context.Context, ev game.Event) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": ev.RoomID, "code": ev.Code})

	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Where("room_id = ?", ev.RoomID).Find(&subscriptions).Error; err != nil {
		logCtx.WithError(err).Error("failed to fetch push subscriptions")
		return
	}

	if len(subscriptions) > 0 {
		payload, err := json.Marshal(MessageFor(ev))
		if err != nil {
			logCtx.WithError(err).Error("failed to encode push message")
			return
		}
		logCtx.Debugf("sending %d notifications", len(subscriptions))
		for _, sub := range subscriptions {
			wp.sendNotification(ctx, sub, payload)
		}
	}

	if ev.Kind == game.EventClosed {
		err := wp.db.WithContext(ctx).Where("room_id = ?", ev.RoomID).Delete(&model.PushSubscription{}).Error
		if err != nil {
			logCtx.WithError(err).Error("failed to remove subscriptions of closed room")
		}
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		logrus.WithError(err).WithField("endpoint", sub.Endpoint).Warn("failed to send notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		logrus.WithField("endpoint", sub.Endpoint).Info("push subscription expired, deleting")
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			logrus.WithError(err).WithField("endpoint", sub.Endpoint).Error("failed to delete expired subscription")
		}
	}
}
