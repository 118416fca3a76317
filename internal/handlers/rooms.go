package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/steinsgo/personal-site/internal/middleware"
	"github.com/steinsgo/personal-site/internal/service"
)

type createRoomRequest struct {
	Name     string `json:"name"`
	Tag      string `json:"tag"`
	IsPublic *bool  `json:"isPublic"`
}

func (h HandlerSet) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]roomSummaryResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toRoomSummaryResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

func (h HandlerSet) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c)
		return
	}

	user, _ := middleware.CurrentUser(c)
	room, err := h.rooms.Create(c.Request.Context(), service.CreateRoomInput{
		Name:     req.Name,
		Tag:      req.Tag,
		IsPublic: req.IsPublic,
		Creator:  user,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toRoomResponse(room))
}
