package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/ids"
	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/repository"
)

const (
	guestbookListLimit = 50
	repliesPerEntry    = 10
	anonymousEntryName = "匿名访客"
	anonymousReplyName = "Secret Mochi"
)

type GuestbookStore interface {
	CreateEntry(ctx context.Context, entry models.GuestbookEntry) (models.GuestbookEntry, error)
	EntryExists(ctx context.Context, id string) error
	ListEntries(ctx context.Context, limit, repliesPerEntry int) ([]models.GuestbookEntry, error)
	ListReplies(ctx context.Context, entryID string, limit int) ([]models.GuestbookReply, error)
	CreateReply(ctx context.Context, reply models.GuestbookReply) (models.GuestbookReply, error)
}

type GuestbookService struct {
	store     GuestbookStore
	auth      *AuthService
	inlineTTL time.Duration
	log       zerolog.Logger
}

// NewGuestbookService builds the guestbook. Sessions opened by inline reply
// credentials live for inlineTTL.
func NewGuestbookService(store GuestbookStore, auth *AuthService, inlineTTL time.Duration, log zerolog.Logger) *GuestbookService {
	return &GuestbookService{
		store:     store,
		auth:      auth,
		inlineTTL: inlineTTL,
		log:       log,
	}
}

// ListEntries returns the newest entries with their oldest replies.
func (s *GuestbookService) ListEntries(ctx context.Context) ([]models.GuestbookEntry, error) {
	entries, err := s.store.ListEntries(ctx, guestbookListLimit, repliesPerEntry)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

func (s *GuestbookService) CreateEntry(ctx context.Context, author models.User, message string, anonymous bool) (models.GuestbookEntry, error) {
	message, err := textField("message", message, 1, messageMaxLen)
	if err != nil {
		return models.GuestbookEntry{}, err
	}

	displayName := author.Handle
	if anonymous {
		displayName = anonymousEntryName
	}

	entry, err := s.store.CreateEntry(ctx, models.GuestbookEntry{
		ID:          ids.New(),
		UserID:      author.ID,
		DisplayName: displayName,
		Message:     message,
		Anonymous:   anonymous,
	})
	if err != nil {
		return models.GuestbookEntry{}, fmt.Errorf("create entry: %w", err)
	}
	entry.Replies = []models.GuestbookReply{}
	return entry, nil
}

func (s *GuestbookService) ListReplies(ctx context.Context, entryID string) ([]models.GuestbookReply, error) {
	replies, err := s.store.ListReplies(ctx, entryID, repliesPerEntry)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return replies, nil
}

type ReplyInput struct {
	EntryID       string
	Message       string
	Anonymous     bool
	AnonymousName string
	// Viewer is the session user, if any.
	Viewer *models.User
	// Credentials are used when there is no session user.
	Credentials *Credentials
	Meta        Meta
}

type ReplyResult struct {
	Reply models.GuestbookReply
	// Auth is set when inline credentials opened a new session.
	Auth *AuthResult
}

// CreateReply posts a reply as an anonymous name, the session user, or the
// user behind inline credentials (registering it when unknown).
func (s *GuestbookService) CreateReply(ctx context.Context, input ReplyInput) (ReplyResult, error) {
	message, err := textField("message", input.Message, 1, messageMaxLen)
	if err != nil {
		return ReplyResult{}, err
	}

	if err := s.store.EntryExists(ctx, input.EntryID); err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return ReplyResult{}, ErrNotFound
		}
		return ReplyResult{}, fmt.Errorf("load entry: %w", err)
	}

	reply := models.GuestbookReply{
		ID:        ids.New(),
		EntryID:   input.EntryID,
		Message:   message,
		Anonymous: input.Anonymous,
	}
	var result ReplyResult

	switch {
	case input.Anonymous:
		reply.Name = anonymousReplyName
		if name := strings.TrimSpace(input.AnonymousName); name != "" {
			name, err := textField("anonymousName", name, 1, replyNameMaxLen)
			if err != nil {
				return ReplyResult{}, err
			}
			reply.Name = name
		}
	case input.Viewer != nil:
		reply.Name = input.Viewer.Handle
		reply.AuthorID = &input.Viewer.ID
	case input.Credentials != nil:
		auth, err := s.auth.LoginOrRegister(ctx, *input.Credentials, input.Meta, s.inlineTTL)
		if err != nil {
			return ReplyResult{}, err
		}
		reply.Name = auth.User.Handle
		reply.AuthorID = &auth.User.ID
		result.Auth = &auth
	default:
		return ReplyResult{}, invalid("handle", "is required unless anonymous")
	}

	reply, err = s.store.CreateReply(ctx, reply)
	if err != nil {
		if errors.Is(err, repository.ErrEntryNotFound) {
			return ReplyResult{}, ErrNotFound
		}
		return ReplyResult{}, fmt.Errorf("create reply: %w", err)
	}
	if reply.AuthorID != nil {
		handle := reply.Name
		reply.AuthorHandle = &handle
	}
	result.Reply = reply
	return result, nil
}
