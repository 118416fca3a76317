package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steinsgo/personal-site/internal/models"
)

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session models.Session) error {
	const query = `
		INSERT INTO sessions (token_hash, user_id, user_agent, ip_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, NOW(), $5)
	`

	_, err := r.pool.Exec(ctx, query,
		session.TokenHash,
		session.UserID,
		session.UserAgent,
		session.IPHash,
		session.ExpiresAt,
	)
	return err
}

// GetWithUser returns the session and its owner. Expired rows are returned
// as-is; callers decide validity.
func (r *SessionRepository) GetWithUser(ctx context.Context, tokenHash []byte) (models.Session, models.User, error) {
	const query = `
		SELECT s.token_hash, s.user_id, s.user_agent, s.ip_hash, s.created_at, s.expires_at,
		       u.id, u.handle, u.password_hash, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
	`

	var (
		session models.Session
		user    models.User
	)
	if err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&session.TokenHash,
		&session.UserID,
		&session.UserAgent,
		&session.IPHash,
		&session.CreatedAt,
		&session.ExpiresAt,
		&user.ID,
		&user.Handle,
		&user.PasswordHash,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, models.User{}, ErrSessionNotFound
		}
		return models.Session{}, models.User{}, err
	}
	return session, user, nil
}

func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash []byte) error {
	const query = `DELETE FROM sessions WHERE token_hash = $1`
	cmd, err := r.pool.Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteByUser removes every session of the user and returns their token
// hashes so cached copies can be evicted.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID string) ([][]byte, error) {
	const query = `DELETE FROM sessions WHERE user_id = $1 RETURNING token_hash`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes [][]byte
	for rows.Next() {
		var hash []byte
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM sessions WHERE expires_at <= $1`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
