package mw

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bingo-room-backend/internal/identity"
)

const callerKey = "caller_id"

// TokenVerifier checks an identity token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Identity resolves the caller from an "Authorization: Bearer" header, or
// the "token" query parameter for websocket upgrades. Requests without a
// valid token continue anonymously; handlers decide whether that is enough.
func Identity(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		id, err := v.Verify(token)
		if err != nil {
			logrus.WithError(err).WithField("path", c.FullPath()).Debug("ignoring invalid identity token")
			c.Next()
			return
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

// BearerToken returns the raw token presented by the request.
func BearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("token")
}

// CallerID returns the identity resolved by Identity, or "".
func CallerID(c *gin.Context) string {
	return c.GetString(callerKey)
}

var _ TokenVerifier = (*identity.Provider)(nil)
