package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/models"
)

const (
	currentUserKey  = "current_user"
	sessionTokenKey = "session_token"
)

// SessionResolver is satisfied by *service.SessionService.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

// Session resolves the session cookie, if any, and stores the user on the
// context. Requests without a valid session continue anonymously.
func Session(resolver SessionResolver, cookieName string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}
		c.Set(sessionTokenKey, token)

		user, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			log.Error().Err(err).Str("request_id", c.GetString(requestIDHeader)).Msg("session lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
			return
		}
		if user != nil {
			c.Set(currentUserKey, *user)
		}
		c.Next()
	}
}

// RequireUser rejects requests without a resolved session user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

// SessionToken returns the raw cookie token seen by Session.
func SessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}
