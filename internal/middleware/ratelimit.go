package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steinsgo/personal-site/internal/metrics"
	"github.com/steinsgo/personal-site/internal/ratelimit"
)

type Allower interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// RateLimit throttles by session user when known, client IP otherwise.
// A nil limiter disables the check.
func RateLimit(limiter Allower, rule ratelimit.Rule, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		identifier := "ip:" + c.ClientIP()
		if user, ok := CurrentUser(c); ok {
			identifier = "user:" + user.ID
		}

		// errors already fail open inside the limiter
		allowed, _ := limiter.Allow(c.Request.Context(), identifier, rule)
		if !allowed {
			metrics.RateLimited.WithLabelValues(name).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}
