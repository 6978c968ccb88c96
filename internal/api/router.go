package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"bingo-room-backend/config"
	"bingo-room-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	// The VAPID key only changes on redeploy.
	publicCache := mw.PublicCache(cache.New(10*time.Minute, 20*time.Minute), 10*time.Minute)

	api := r.Group("/api")
	api.Use(mw.Identity(h.ids))
	api.Use(mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, mw.CallerOrIP))
	{
		api.POST("/identity", h.PostIdentity)
		api.GET("/vapid_public_key", publicCache, h.GetVAPIDPublicKey)

		api.POST("/rooms", h.CreateRoom)

		rooms := api.Group("/rooms/:code")
		rooms.GET("", h.GetRoom)
		rooms.DELETE("", h.DeleteRoom)
		rooms.GET("/enter", h.EnterRoom)
		rooms.GET("/ws", h.StreamRoom)
		rooms.POST("/draws", h.Draw)
		rooms.DELETE("/draws/:number", h.Undraw)
		rooms.POST("/marks/:number", h.ToggleMark)
		rooms.POST("/tombola", h.DrawTombola)
		rooms.PUT("/config", h.Reconfigure)
		rooms.POST("/reset", h.Reset)
		rooms.PUT("/subscriptions", h.PutSubscription)
		rooms.DELETE("/subscriptions", h.DeleteSubscription)
	}

	return r
}
