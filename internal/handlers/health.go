package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string            `json:"status"`
	Checks      map[string]string `json:"checks"`
	Environment string            `json:"environment"`
}

// Health pings every registered dependency. A failing dependency degrades
// the status but the endpoint still answers 200.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = "degraded"
			results[name] = "error"
			h.log.Error().Err(err).Str("dependency", name).Msg("health check failed")
			continue
		}
		results[name] = "ok"
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:      status,
		Checks:      results,
		Environment: h.cfg.Environment,
	})
}
