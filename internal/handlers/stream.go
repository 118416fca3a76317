package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/service"
	"github.com/steinsgo/personal-site/internal/stream"
)

// sseSink writes dispatcher output as server-sent events.
type sseSink struct {
	w     gin.ResponseWriter
	retry time.Duration
}

func (s *sseSink) Ready() error {
	return s.send(sse.Event{
		Event: "ready",
		Retry: uint(s.retry.Milliseconds()),
		Data:  gin.H{},
	})
}

func (s *sseSink) Message(msg models.Message) error {
	return s.send(sse.Event{
		Id:    msg.ID,
		Event: "message",
		Data:  toMessageResponse(msg),
	})
}

func (s *sseSink) Keepalive(at time.Time) error {
	if _, err := fmt.Fprintf(s.w, ": ping %d\n\n", at.UnixMilli()); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

func (s *sseSink) send(event sse.Event) error {
	if err := sse.Encode(s.w, event); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

// Stream holds the request open and pushes a room's messages as they land.
func (h HandlerSet) Stream(c *gin.Context) {
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
	if _, err := h.rooms.Get(c.Request.Context(), roomID); err != nil {
		h.writeError(c, err)
		return
	}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream; charset=utf-8")
	header.Set("Cache-Control", "no-cache, no-transform")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	sink := &sseSink{w: c.Writer, retry: h.cfg.Stream.RetryHint}
	err = h.dispatcher.Serve(c.Request.Context(), roomID, after, sink)
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrClosed):
		if !c.Writer.Written() {
			header.Del("Content-Type")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting_down"})
		}
	default:
		h.log.Debug().Err(err).Str("room_id", roomID).Msg("stream ended")
	}
}
