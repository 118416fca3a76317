package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/ids"
	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/repository"
)

const roomListLimit = 50

type RoomStore interface {
	Create(ctx context.Context, room models.Room) (models.Room, error)
	Get(ctx context.Context, id string) (models.Room, error)
	ListSummaries(ctx context.Context, limit int) ([]models.RoomSummary, error)
}

type CreateRoomInput struct {
	Name     string
	Tag      string
	IsPublic *bool
	Creator  models.User
}

type RoomService struct {
	rooms RoomStore
	log   zerolog.Logger
}

func NewRoomService(rooms RoomStore, log zerolog.Logger) *RoomService {
	return &RoomService{rooms: rooms, log: log}
}

func (s *RoomService) Create(ctx context.Context, input CreateRoomInput) (models.Room, error) {
	name, err := textField("name", input.Name, roomNameMinLen, roomNameMaxLen)
	if err != nil {
		return models.Room{}, err
	}

	room := models.Room{
		ID:        ids.New(),
		Name:      name,
		IsPublic:  true,
		CreatedBy: input.Creator.ID,
	}
	if tag := strings.TrimSpace(input.Tag); tag != "" {
		tag, err := textField("tag", tag, 1, roomTagMaxLen)
		if err != nil {
			return models.Room{}, err
		}
		room.Tag = &tag
	}
	if input.IsPublic != nil {
		room.IsPublic = *input.IsPublic
	}

	room, err = s.rooms.Create(ctx, room)
	if err != nil {
		return models.Room{}, fmt.Errorf("create room: %w", err)
	}
	s.log.Info().Str("room_id", room.ID).Str("user_id", room.CreatedBy).Msg("room created")
	return room, nil
}

// Get returns ErrNotFound for an unknown room.
func (s *RoomService) Get(ctx context.Context, id string) (models.Room, error) {
	room, err := s.rooms.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return models.Room{}, ErrNotFound
		}
		return models.Room{}, fmt.Errorf("load room: %w", err)
	}
	return room, nil
}

// List returns the newest rooms with their lobby summary.
func (s *RoomService) List(ctx context.Context) ([]models.RoomSummary, error) {
	rooms, err := s.rooms.ListSummaries(ctx, roomListLimit)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}
