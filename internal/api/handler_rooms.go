package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bingo-room-backend/internal/game"
	"bingo-room-backend/internal/model"
	"bingo-room-backend/internal/mw"
)

type roomSettingsRequest struct {
	MaxNumber *int       `json:"maxNumber"`
	Mode      model.Mode `json:"mode"`
}

type drawRequest struct {
	Number *int `json:"number" binding:"required"`
}

// bindOptionalJSON binds the body when there is one.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func numberParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		badRequest(c, "number must be an integer")
		return 0, false
	}
	return n, true
}

// CreateRoom handles POST /api/rooms.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req roomSettingsRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err.Error())
		return
	}
	maxNumber := 0
	if req.MaxNumber != nil {
		maxNumber = *req.MaxNumber
	}

	room, err := h.game.CreateRoom(c.Request.Context(), mw.CallerID(c), maxNumber, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(room))
}

// GetRoom handles GET /api/rooms/:code, used by players joining with a code.
func (h *Handler) GetRoom(c *gin.Context) {
	room, err := h.game.FindRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(room))
}

// EnterRoom handles GET /api/rooms/:code/enter?role=host|player.
func (h *Handler) EnterRoom(c *gin.Context) {
	role := game.Role(c.DefaultQuery("role", string(game.RolePlayer)))
	room, err := h.game.EnterRoom(c.Request.Context(), mw.CallerID(c), c.Param("code"), role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": viewOf(room), "role": role})
}

// Draw handles POST /api/rooms/:code/draws.
func (h *Handler) Draw(c *gin.Context) {
	var req drawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "number is required")
		return
	}
	room, err := h.game.Draw(c.Request.Context(), mw.CallerID(c), c.Param("code"), *req.Number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(room))
}

// Undraw handles DELETE /api/rooms/:code/draws/:number.
func (h *Handler) Undraw(c *gin.Context) {
	n, ok := numberParam(c)
	if !ok {
		return
	}
	room, err := h.game.Undraw(c.Request.Context(), mw.CallerID(c), c.Param("code"), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(room))
}

// ToggleMark handles POST /api/rooms/:code/marks/:number.
func (h *Handler) ToggleMark(c *gin.Context) {
	n, ok := numberParam(c)
	if !ok {
		return
	}
	room, marked, err := h.game.ToggleMark(c.Request.Context(), mw.CallerID(c), c.Param("code"), n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": viewOf(room), "number": n, "marked": marked})
}

// DrawTombola handles POST /api/rooms/:code/tombola. A finished board is
// reported as complete rather than as an error.
func (h *Handler) DrawTombola(c *gin.Context) {
	n, room, err := h.game.DrawTombola(c.Request.Context(), mw.CallerID(c), c.Param("code"))
	if errors.Is(err, game.ErrExhausted) {
		c.JSON(http.StatusOK, gin.H{"complete": true})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"complete": false, "number": n, "room": viewOf(room)})
}

// Reconfigure handles PUT /api/rooms/:code/config.
func (h *Handler) Reconfigure(c *gin.Context) {
	var req roomSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.MaxNumber == nil {
		badRequest(c, "maxNumber is required")
		return
	}
	room, err := h.game.Reconfigure(c.Request.Context(), mw.CallerID(c), c.Param("code"), *req.MaxNumber, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(room))
}

// Reset handles POST /api/rooms/:code/reset.
func (h *Handler) Reset(c *gin.Context) {
	room, changed, err := h.game.Reset(c.Request.Context(), mw.CallerID(c), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": viewOf(room), "reset": changed})
}

// DeleteRoom handles DELETE /api/rooms/:code.
func (h *Handler) DeleteRoom(c *gin.Context) {
	if err := h.game.DeleteRoom(c.Request.Context(), mw.CallerID(c), c.Param("code")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
