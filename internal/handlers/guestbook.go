package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steinsgo/personal-site/internal/middleware"
	"github.com/steinsgo/personal-site/internal/service"
)

type createEntryRequest struct {
	Message   string `json:"message"`
	Anonymous bool   `json:"anonymous"`
}

type createReplyRequest struct {
	credentialsRequest
	Message       string `json:"message"`
	Anonymous     bool   `json:"anonymous"`
	AnonymousName string `json:"anonymousName"`
}

func (h HandlerSet) ListGuestbook(c *gin.Context) {
	entries, err := h.guestbook.ListEntries(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	c.JSON(http.StatusOK, out)
}

func (h HandlerSet) CreateGuestbookEntry(c *gin.Context) {
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	user, _ := middleware.CurrentUser(c)
	entry, err := h.guestbook.CreateEntry(c.Request.Context(), user, req.Message, req.Anonymous)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toEntryResponse(entry))
}

func (h HandlerSet) ListReplies(c *gin.Context) {
	replies, err := h.guestbook.ListReplies(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toReplyResponses(replies))
}

// CreateReply accepts anonymous replies, replies from the session user, and
// replies carrying inline credentials. The latter sign the caller in.
func (h HandlerSet) CreateReply(c *gin.Context) {
	var req createReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	input := service.ReplyInput{
		EntryID:       c.Param("id"),
		Message:       req.Message,
		Anonymous:     req.Anonymous,
		AnonymousName: req.AnonymousName,
		Meta:          clientMeta(c),
	}
	if user, ok := middleware.CurrentUser(c); ok {
		input.Viewer = &user
	} else if req.present() {
		creds := req.credentials()
		input.Credentials = &creds
	}

	result, err := h.guestbook.CreateReply(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	body := gin.H{"reply": toReplyResponse(result.Reply)}
	if result.Auth != nil {
		h.setSessionCookie(c, result.Auth.Session)
		body["auth"] = authResponse{
			Mode:   result.Auth.Mode,
			UserID: result.Auth.User.ID,
			Handle: result.Auth.User.Handle,
		}
	}
	c.JSON(http.StatusCreated, body)
}
