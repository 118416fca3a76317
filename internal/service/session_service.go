package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/steinsgo/personal-site/internal/cache"
	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/repository"
	"github.com/steinsgo/personal-site/internal/security"
)

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetWithUser(ctx context.Context, tokenHash []byte) (models.Session, models.User, error)
	DeleteByTokenHash(ctx context.Context, tokenHash []byte) error
	DeleteByUser(ctx context.Context, userID string) ([][]byte, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SessionCache is satisfied by *cache.SessionCache.
type SessionCache interface {
	Get(ctx context.Context, tokenHash []byte) (*cache.CachedSession, error)
	Set(ctx context.Context, tokenHash []byte, session cache.CachedSession, now time.Time) error
	Revoke(ctx context.Context, tokenHashes ...[]byte) error
}

// Meta describes the client a session is issued to.
type Meta struct {
	UserAgent string
	IP        string
}

type IssueInput struct {
	UserID string
	Meta   Meta
	// TTL zero means the configured default lifetime.
	TTL time.Duration
}

type Issued struct {
	Token     string
	ExpiresAt time.Time
}

type SessionService struct {
	store      SessionStore
	cache      SessionCache
	defaultTTL time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewSessionService builds the session manager. cache may be nil.
func NewSessionService(store SessionStore, cache SessionCache, defaultTTL time.Duration, log zerolog.Logger) *SessionService {
	return &SessionService{
		store:      store,
		cache:      cache,
		defaultTTL: defaultTTL,
		now:        time.Now,
		log:        log,
	}
}

func (s *SessionService) Issue(ctx context.Context, input IssueInput) (Issued, error) {
	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	token, hash, err := security.NewSessionToken()
	if err != nil {
		return Issued{}, err
	}

	session := models.Session{
		TokenHash: hash,
		UserID:    input.UserID,
		UserAgent: input.Meta.UserAgent,
		IPHash:    security.HashIP(input.Meta.IP),
		ExpiresAt: s.now().Add(ttl),
	}
	if err := s.store.Create(ctx, session); err != nil {
		return Issued{}, fmt.Errorf("create session: %w", err)
	}

	return Issued{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Resolve returns the owner of token, or nil when the token is empty,
// unknown or expired.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	hash := security.HashSessionToken(token)
	now := s.now()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, hash)
		if err != nil {
			s.log.Warn().Err(err).Msg("session cache read failed")
		} else if cached != nil {
			if cached.Revoked || !now.Before(cached.ExpiresAt) {
				return nil, nil
			}
			return &models.User{ID: cached.UserID, Handle: cached.Handle}, nil
		}
	}

	session, user, err := s.store.GetWithUser(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !session.Active(now) {
		return nil, nil
	}

	if s.cache != nil {
		entry := cache.CachedSession{UserID: user.ID, Handle: user.Handle, ExpiresAt: session.ExpiresAt}
		if err := s.cache.Set(ctx, hash, entry, now); err != nil {
			s.log.Warn().Err(err).Msg("session cache write failed")
		}
	}

	user.PasswordHash = nil
	return &user, nil
}

// Revoke deletes the session behind token. Unknown tokens are not an error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	hash := security.HashSessionToken(token)
	s.evict(ctx, hash)

	err := s.store.DeleteByTokenHash(ctx, hash)
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RevokeAll deletes every session of the user and reports how many.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) (int, error) {
	hashes, err := s.store.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	s.evict(ctx, hashes...)
	return len(hashes), nil
}

// SweepExpired removes sessions that can no longer resolve.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpired(ctx, s.now())
}

func (s *SessionService) evict(ctx context.Context, hashes ...[]byte) {
	if s.cache == nil || len(hashes) == 0 {
		return
	}
	if err := s.cache.Revoke(ctx, hashes...); err != nil {
		s.log.Warn().Err(err).Msg("session cache revoke failed")
	}
}
