package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steinsgo/personal-site/internal/service"
)

func (h HandlerSet) setSessionCookie(c *gin.Context, issued service.Issued) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.Security.CookieName,
		Value:    issued.Token,
		Path:     "/",
		Domain:   h.cfg.Security.CookieDomain,
		Expires:  issued.ExpiresAt,
		HttpOnly: true,
		Secure:   !h.cfg.IsLocal(),
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie emits Max-Age=0 with the same attributes.
func (h HandlerSet) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cfg.Security.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cfg.Security.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !h.cfg.IsLocal(),
		SameSite: http.SameSiteLaxMode,
	})
}

func clientMeta(c *gin.Context) service.Meta {
	return service.Meta{UserAgent: c.GetHeader("User-Agent"), IP: c.ClientIP()}
}
