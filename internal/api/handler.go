package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"bingo-room-backend/internal/game"
	"bingo-room-backend/internal/identity"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	game     *game.Service
	ids      *identity.Provider
	db       *gorm.DB
	webpush  *webpush.Options
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler. db may be nil when rooms are kept in
// memory; push subscription endpoints then report that push is unavailable.
func NewHandler(svc *game.Service, ids *identity.Provider, db *gorm.DB, webpushOptions *webpush.Options, allowedOrigins []string) *Handler {
	if svc == nil {
		panic("game service cannot be nil for Handler")
	}
	if ids == nil {
		panic("identity provider cannot be nil for Handler")
	}
	return &Handler{
		game:    svc,
		ids:     ids,
		db:      db,
		webpush: webpushOptions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}
