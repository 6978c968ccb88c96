package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bingo-room-backend/internal/identity"
	"bingo-room-backend/internal/mw"
)

// PostIdentity mints an anonymous identity, or refreshes the token of the
// identity the caller already holds.
func (h *Handler) PostIdentity(c *gin.Context) {
	var (
		id  identity.Identity
		err error
	)
	if caller := mw.CallerID(c); caller != "" {
		id, err = h.ids.Refresh(caller)
	} else {
		id, err = h.ids.Issue()
		if err == nil {
			logrus.WithField("caller", id.ID).Debug("issued new identity")
		}
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, id)
}
