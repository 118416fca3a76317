package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steinsgo/personal-site/internal/middleware"
	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/service"
)

type postMessageRequest struct {
	RoomID   string `json:"roomId"`
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}

func (h HandlerSet) ListMessages(c *gin.Context) {
	roomID := strings.TrimSpace(c.Query("roomId"))
	if roomID == "" {
		h.writeError(c, &service.ValidationError{Field: "roomId", Message: "is required"})
		return
	}
	after, err := parseAfter(c.Query("after"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			h.writeError(c, &service.ValidationError{Field: "limit", Message: "must be an integer"})
			return
		}
	}

	msgs, err := h.messages.Query(c.Request.Context(), roomID, after, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

func (h HandlerSet) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	user, _ := middleware.CurrentUser(c)
	msg, err := h.messages.Append(c.Request.Context(), service.AppendInput{
		RoomID:   req.RoomID,
		Author:   user,
		Kind:     models.MessageKind(strings.TrimSpace(req.Kind)),
		Text:     req.Text,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(msg))
}

// parseAfter reads an epoch-millisecond watermark; empty means the epoch.
func parseAfter(raw string) (time.Time, error) {
	if raw == "" {
		return time.UnixMilli(0).UTC(), nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, &service.ValidationError{Field: "after", Message: "must be epoch milliseconds"}
	}
	return time.UnixMilli(ms).UTC(), nil
}
