package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/config"
	"github.com/steinsgo/personal-site/internal/middleware"
	"github.com/steinsgo/personal-site/internal/ratelimit"
	"github.com/steinsgo/personal-site/internal/service"
	"github.com/steinsgo/personal-site/internal/stream"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Log        zerolog.Logger
	Config     *config.AppConfig
	Sessions   *service.SessionService
	Auth       *service.AuthService
	Rooms      *service.RoomService
	Messages   *service.MessageService
	Guestbook  *service.GuestbookService
	Uploads    *service.UploadService
	Dispatcher *stream.Dispatcher
	// Limiter may be nil to disable rate limiting.
	Limiter middleware.Allower
	Checks  map[string]HealthCheck
}

type HandlerSet struct {
	log        zerolog.Logger
	cfg        *config.AppConfig
	sessions   *service.SessionService
	auth       *service.AuthService
	rooms      *service.RoomService
	messages   *service.MessageService
	guestbook  *service.GuestbookService
	uploads    *service.UploadService
	dispatcher *stream.Dispatcher
	limiter    middleware.Allower
	checks     map[string]HealthCheck
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:        deps.Log,
		cfg:        deps.Config,
		sessions:   deps.Sessions,
		auth:       deps.Auth,
		rooms:      deps.Rooms,
		messages:   deps.Messages,
		guestbook:  deps.Guestbook,
		uploads:    deps.Uploads,
		dispatcher: deps.Dispatcher,
		limiter:    deps.Limiter,
		checks:     deps.Checks,
	}
}

func (h HandlerSet) Routes(router *gin.Engine) {
	authLimit := middleware.RateLimit(h.limiter, ratelimit.AuthRule(h.cfg.RateLimit.AuthPerMinute), "auth")
	postLimit := middleware.RateLimit(h.limiter, ratelimit.PostRule(h.cfg.RateLimit.PostsPer10s), "post")
	requireUser := middleware.RequireUser()

	router.GET(h.cfg.Upload.PublicPrefix+"*key", h.ServeUpload)

	api := router.Group("/api")
	api.Use(middleware.Session(h.sessions, h.cfg.Security.CookieName, h.log))

	api.GET("/healthz", h.Health)
	api.GET("/me", h.Me)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authLimit, h.Login)
		auth.POST("/register", authLimit, h.Register)
		auth.POST("/logout", h.Logout)
		auth.POST("/logout-all", requireUser, h.LogoutAll)
	}

	api.GET("/rooms", h.ListRooms)
	api.POST("/rooms", requireUser, postLimit, h.CreateRoom)

	api.GET("/messages", h.ListMessages)
	api.POST("/messages", requireUser, postLimit, h.PostMessage)

	api.GET("/stream", h.Stream)

	api.GET("/guestbook", h.ListGuestbook)
	api.POST("/guestbook", requireUser, postLimit, h.CreateGuestbookEntry)
	api.GET("/guestbook/:id/replies", h.ListReplies)
	api.POST("/guestbook/:id/replies", postLimit, h.CreateReply)

	api.POST("/upload", requireUser, postLimit, h.Upload)
}
