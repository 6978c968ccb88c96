package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"

	"bingo-room-backend/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

func (h *Handler) pushAvailable(c *gin.Context) bool {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push_unavailable", "message": "push notifications are not available"})
		return false
	}
	return true
}

// PutSubscription registers a browser for the events of one room. An
// endpoint follows one room at a time.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if !h.pushAvailable(c) {
		return
	}

	room, err := h.game.FindRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
		RoomID:   room.ID,
	}
	err = h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "room_id"}),
	}).Create(&subscription).Error
	if err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusCreated)
}

// DeleteSubscription stops push delivery for an endpoint in a room.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if !h.pushAvailable(c) {
		return
	}

	room, err := h.game.FindRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}

	err = h.db.WithContext(c.Request.Context()).
		Where("endpoint = ? AND room_id = ?", req.Endpoint, room.ID).
		Delete(&model.PushSubscription{}).Error
	if err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
