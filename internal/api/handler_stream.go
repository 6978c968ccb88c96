package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bingo-room-backend/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

const (
	messageSnapshot = "snapshot"
	messageDeleted  = "deleted"
)

type streamMessage struct {
	Type string    `json:"type"`
	Room *roomView `json:"room,omitempty"`
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// roomStream forwards room snapshots to one websocket connection. The
// watcher already coalesces, so a single slot is enough.
type roomStream struct {
	conn   *websocket.Conn
	snaps  chan model.Snapshot
	done   chan struct{}
	once   sync.Once
	logCtx *logrus.Entry
}

func (s *roomStream) offer(snap model.Snapshot) {
	select {
	case s.snaps <- snap:
	case <-s.done:
	}
}

func (s *roomStream) stop() {
	s.once.Do(func() { close(s.done) })
}

// readPump drains client frames so pongs and close frames are handled.
func (s *roomStream) readPump() {
	defer s.stop()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logCtx.WithError(err).Debug("websocket closed unexpectedly")
			}
			return
		}
	}
}

// writePump writes snapshots and pings until the room is deleted or the
// client goes away.
func (s *roomStream) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap := <-s.snaps:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if snap.Deleted {
				_ = s.conn.WriteJSON(streamMessage{Type: messageDeleted})
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room deleted"))
				s.logCtx.Info("room deleted, closing stream")
				return
			}
			if err := s.conn.WriteJSON(streamMessage{Type: messageSnapshot, Room: viewOf(snap.Room)}); err != nil {
				s.logCtx.WithError(err).Debug("failed to write snapshot")
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

// StreamRoom handles GET /api/rooms/:code/ws. Every change of the room is
// pushed as a full snapshot for as long as the connection stays open.
func (h *Handler) StreamRoom(c *gin.Context) {
	room, err := h.game.FindRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": room.ID, "code": room.Code})

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logCtx.WithError(err).Warn("failed to upgrade connection")
		return
	}
	defer conn.Close()

	s := &roomStream{
		conn:   conn,
		snaps:  make(chan model.Snapshot, 1),
		done:   make(chan struct{}),
		logCtx: logCtx,
	}

	// The request context ends when the handler returns; the subscription
	// is released by the deferred cancel instead.
	cancel, err := h.game.Watch(context.Background(), room.Code, s.offer)
	if err != nil {
		logCtx.WithError(err).Warn("failed to watch room")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "watch failed"))
		return
	}
	defer cancel()
	defer s.stop()

	logCtx.Debug("stream opened")
	go s.readPump()
	s.writePump()
	logCtx.Debug("stream closed")
}
