package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/ids"
	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/repository"
)

const (
	DefaultQueryLimit = 100
	MaxQueryLimit     = 200
)

type MessageStore interface {
	Create(ctx context.Context, msg models.Message) error
	Since(ctx context.Context, roomID string, since time.Time, limit int) ([]models.Message, error)
}

type AppendInput struct {
	RoomID   string
	Author   models.User
	Kind     models.MessageKind
	Text     string
	ImageURL string
}

type MessageService struct {
	messages     MessageStore
	rooms        RoomStore
	uploadPrefix string
	now          func() time.Time
	log          zerolog.Logger
}

// NewMessageService builds the message store. uploadPrefix is the public
// path under which uploaded images are served; image references must be
// absolute http(s) URLs or start with it.
func NewMessageService(messages MessageStore, rooms RoomStore, uploadPrefix string, log zerolog.Logger) *MessageService {
	return &MessageService{
		messages:     messages,
		rooms:        rooms,
		uploadPrefix: uploadPrefix,
		now:          time.Now,
		log:          log,
	}
}

func (s *MessageService) Append(ctx context.Context, input AppendInput) (models.Message, error) {
	roomID := strings.TrimSpace(input.RoomID)
	if roomID == "" {
		return models.Message{}, invalid("roomId", "is required")
	}

	kind := input.Kind
	if kind == "" {
		kind = models.MessageKindText
	}
	if !kind.Valid() {
		return models.Message{}, invalid("kind", "must be text or image")
	}

	msg := models.Message{
		ID:           ids.New(),
		RoomID:       roomID,
		AuthorID:     input.Author.ID,
		AuthorHandle: input.Author.Handle,
		Kind:         kind,
		CreatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}

	switch kind {
	case models.MessageKindText:
		text, err := textField("text", input.Text, 1, messageMaxLen)
		if err != nil {
			return models.Message{}, err
		}
		msg.Text = &text
	case models.MessageKindImage:
		ref := strings.TrimSpace(input.ImageURL)
		if !s.validImageRef(ref) {
			return models.Message{}, invalid("imageUrl", "must be an http(s) URL or start with %s", s.uploadPrefix)
		}
		msg.ImageURL = &ref
	}

	if err := s.messages.Create(ctx, msg); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			s.log.Warn().Str("room_id", roomID).Str("user_id", msg.AuthorID).Msg("message for unknown room")
			return models.Message{}, ErrNotFound
		}
		return models.Message{}, fmt.Errorf("store message: %w", err)
	}
	s.log.Debug().
		Str("room_id", roomID).
		Str("message_id", msg.ID).
		Str("kind", string(kind)).
		Msg("message appended")
	return msg, nil
}

// Query returns messages of the room created at or after since, in
// (createdAt, id) order. limit is clamped to [1, MaxQueryLimit]; zero
// means DefaultQueryLimit.
func (s *MessageService) Query(ctx context.Context, roomID string, since time.Time, limit int) ([]models.Message, error) {
	if _, err := s.rooms.Get(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load room: %w", err)
	}

	msgs, err := s.messages.Since(ctx, roomID, since, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return msgs, nil
}

func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultQueryLimit
	case limit < 1:
		return 1
	case limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return limit
	}
}

func (s *MessageService) validImageRef(ref string) bool {
	if ref == "" {
		return false
	}
	if strings.HasPrefix(ref, s.uploadPrefix) && len(ref) > len(s.uploadPrefix) {
		return !strings.Contains(ref, "..")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
