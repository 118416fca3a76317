package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steinsgo/personal-site/internal/models"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create inserts the user. A concurrent registration of the same handle
// surfaces as ErrHandleTaken through the unique index.
func (r *UserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	const query = `
		INSERT INTO users (id, handle, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query, user.ID, user.Handle, user.PasswordHash).Scan(&user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrHandleTaken
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) FindByHandle(ctx context.Context, handle string) (models.User, error) {
	const query = `
		SELECT id, handle, password_hash, created_at
		FROM users WHERE handle = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, handle))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (models.User, error) {
	const query = `
		SELECT id, handle, password_hash, created_at
		FROM users WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) scanOne(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Handle,
		&user.PasswordHash,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
