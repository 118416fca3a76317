package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/steinsgo/personal-site/internal/ids"
	"github.com/steinsgo/personal-site/internal/metrics"
	"github.com/steinsgo/personal-site/internal/models"
	"github.com/steinsgo/personal-site/internal/repository"
	"github.com/steinsgo/personal-site/internal/telemetry"
)

type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByHandle(ctx context.Context, handle string) (models.User, error)
}

// PasswordHasher is satisfied by security.PasswordHasher.
type PasswordHasher interface {
	Hash(secret string) ([]byte, error)
	Verify(secret string, encoded []byte) (bool, error)
}

type Mode string

const (
	ModeLogin    Mode = "login"
	ModeRegister Mode = "register"
)

type Credentials struct {
	Handle string
	Secret string
}

type AuthResult struct {
	Mode    Mode
	User    models.User
	Session Issued
}

type AuthService struct {
	users    UserStore
	sessions *SessionService
	hasher   PasswordHasher
	log      zerolog.Logger
}

func NewAuthService(users UserStore, sessions *SessionService, hasher PasswordHasher, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		log:      log,
	}
}

// Login authenticates an existing handle. An unknown handle yields
// ErrUserNotFound so the client can retry the same pair as a registration.
func (s *AuthService) Login(ctx context.Context, creds Credentials, meta Meta) (result AuthResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.login")
	defer func() { s.finish(span, "login", err) }()

	handle, err := textField("handle", creds.Handle, handleMinLen, handleMaxLen)
	if err != nil {
		return AuthResult{}, err
	}
	if err := secretField("secret", creds.Secret, loginSecretMinLen); err != nil {
		return AuthResult{}, err
	}
	span.SetAttributes(attribute.String("auth.handle", handle))

	user, err := s.users.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	if err := s.verify(user, creds.Secret); err != nil {
		return AuthResult{}, err
	}

	return s.issue(ctx, ModeLogin, user, meta, 0)
}

// Register creates a new user and signs it in. A taken handle is a conflict
// and leaves the existing user untouched.
func (s *AuthService) Register(ctx context.Context, creds Credentials, meta Meta) (result AuthResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.register")
	defer func() { s.finish(span, "register", err) }()

	handle, err := textField("handle", creds.Handle, handleMinLen, handleMaxLen)
	if err != nil {
		return AuthResult{}, err
	}
	if err := secretField("secret", creds.Secret, registerSecretMinLen); err != nil {
		return AuthResult{}, err
	}
	span.SetAttributes(attribute.String("auth.handle", handle))

	if _, err := s.users.FindByHandle(ctx, handle); err == nil {
		return AuthResult{}, ErrConflict
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	user, err := s.create(ctx, handle, creds.Secret)
	if err != nil {
		return AuthResult{}, err
	}
	return s.issue(ctx, ModeRegister, user, meta, 0)
}

// LoginOrRegister resolves inline credentials in one step: an existing
// handle must verify, an unknown one is registered. The session gets ttl.
func (s *AuthService) LoginOrRegister(ctx context.Context, creds Credentials, meta Meta, ttl time.Duration) (result AuthResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.login_or_register")
	defer func() { s.finish(span, "inline", err) }()

	handle, err := textField("handle", creds.Handle, handleMinLen, handleMaxLen)
	if err != nil {
		return AuthResult{}, err
	}
	if err := secretField("secret", creds.Secret, loginSecretMinLen); err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.FindByHandle(ctx, handle)
	switch {
	case err == nil:
		if err := s.verify(user, creds.Secret); err != nil {
			return AuthResult{}, err
		}
		return s.issue(ctx, ModeLogin, user, meta, ttl)
	case errors.Is(err, repository.ErrUserNotFound):
		if err := secretField("secret", creds.Secret, registerSecretMinLen); err != nil {
			return AuthResult{}, err
		}
		user, err := s.create(ctx, handle, creds.Secret)
		if err != nil {
			return AuthResult{}, err
		}
		return s.issue(ctx, ModeRegister, user, meta, ttl)
	default:
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}
}

func (s *AuthService) verify(user models.User, secret string) error {
	ok, err := s.hasher.Verify(secret, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return ErrInvalidCredentials
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

func (s *AuthService) create(ctx context.Context, handle, secret string) (models.User, error) {
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return models.User{}, fmt.Errorf("hash secret: %w", err)
	}

	user, err := s.users.Create(ctx, models.User{
		ID:           ids.New(),
		Handle:       handle,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrHandleTaken) {
			return models.User{}, ErrConflict
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Str("handle", user.Handle).Msg("user registered")
	return user, nil
}

func (s *AuthService) issue(ctx context.Context, mode Mode, user models.User, meta Meta, ttl time.Duration) (AuthResult, error) {
	issued, err := s.sessions.Issue(ctx, IssueInput{UserID: user.ID, Meta: meta, TTL: ttl})
	if err != nil {
		return AuthResult{}, err
	}
	user.PasswordHash = nil
	return AuthResult{Mode: mode, User: user, Session: issued}, nil
}

func (s *AuthService) finish(span trace.Span, op string, err error) {
	outcome := authOutcome(err)
	metrics.AuthAttempts.WithLabelValues(op, outcome).Inc()
	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if outcome == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func authOutcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrUserNotFound):
		return "unknown_user"
	case errors.Is(err, ErrInvalidCredentials):
		return "bad_secret"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
