package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steinsgo/personal-site/internal/middleware"
	"github.com/steinsgo/personal-site/internal/service"
)

// credentialsRequest accepts the field names older clients send.
type credentialsRequest struct {
	Handle   string `json:"handle"`
	Login    string `json:"login"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Secret   string `json:"secret"`
	Password string `json:"password"`
}

func (r credentialsRequest) credentials() service.Credentials {
	return service.Credentials{
		Handle: firstNonEmpty(r.Handle, r.Login, r.Username, r.Nickname),
		Secret: firstNonEmpty(r.Secret, r.Password),
	}
}

func (r credentialsRequest) present() bool {
	creds := r.credentials()
	return creds.Handle != "" || creds.Secret != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

type authResponse struct {
	Mode   service.Mode `json:"mode"`
	UserID string       `json:"userId"`
	Handle string       `json:"handle"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.credentials(), clientMeta(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendAuth(c, http.StatusOK, result)
}

func (h HandlerSet) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req.credentials(), clientMeta(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.sendAuth(c, http.StatusCreated, result)
}

func (h HandlerSet) sendAuth(c *gin.Context, status int, result service.AuthResult) {
	h.setSessionCookie(c, result.Session)
	c.JSON(status, authResponse{
		Mode:   result.Mode,
		UserID: result.User.ID,
		Handle: result.User.Handle,
	})
}

// Logout revokes the current token, if any, and always clears the cookie.
func (h HandlerSet) Logout(c *gin.Context) {
	h.clearSessionCookie(c)
	if err := h.sessions.Revoke(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h HandlerSet) LogoutAll(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	revoked, err := h.sessions.RevokeAll(c.Request.Context(), user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"ok": true, "revoked": revoked})
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"userId": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": user.ID, "handle": user.Handle})
}
