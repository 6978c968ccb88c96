package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bingo-room-backend/internal/game"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{game.ErrAuthRequired, http.StatusUnauthorized, "auth_required"},
	{game.ErrAccessDenied, http.StatusForbidden, "access_denied"},
	{game.ErrRoomNotFound, http.StatusNotFound, "room_not_found"},
	{game.ErrInvalidCode, http.StatusBadRequest, "invalid_code"},
	{game.ErrInvalidRole, http.StatusBadRequest, "invalid_role"},
	{game.ErrOutOfRange, http.StatusUnprocessableEntity, "out_of_range"},
	{game.ErrAlreadyDrawn, http.StatusUnprocessableEntity, "already_drawn"},
	{game.ErrNotDrawn, http.StatusUnprocessableEntity, "not_drawn"},
	{game.ErrInvalidConfig, http.StatusUnprocessableEntity, "invalid_config"},
	{game.ErrGameInProgress, http.StatusConflict, "game_in_progress"},
	{game.ErrConflict, http.StatusConflict, "conflict"},
	{game.ErrExhausted, http.StatusConflict, "exhausted"},
}

// writeError maps service errors to a status and a stable error code.
// Unknown errors are logged and reported without detail.
func writeError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.code, "message": err.Error()})
			return
		}
	}
	logrus.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal", "message": "internal server error"})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": message})
}
