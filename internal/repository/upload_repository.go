package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steinsgo/personal-site/internal/models"
)

type UploadRepository struct {
	pool *pgxpool.Pool
}

func NewUploadRepository(pool *pgxpool.Pool) *UploadRepository {
	return &UploadRepository{pool: pool}
}

func (r *UploadRepository) Create(ctx context.Context, upload models.Upload) (models.Upload, error) {
	const query = `
		INSERT INTO uploads (id, user_id, bucket, object_key, mime, size_bytes, checksum, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query,
		upload.ID,
		upload.UserID,
		upload.Bucket,
		upload.ObjectKey,
		upload.MIME,
		upload.SizeBytes,
		upload.Checksum,
	).Scan(&upload.CreatedAt); err != nil {
		return models.Upload{}, err
	}
	return upload, nil
}

func (r *UploadRepository) GetByID(ctx context.Context, id string) (models.Upload, error) {
	const query = `
		SELECT id, user_id, bucket, object_key, mime, size_bytes, checksum, created_at
		FROM uploads WHERE id = $1
	`

	var upload models.Upload
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&upload.ID,
		&upload.UserID,
		&upload.Bucket,
		&upload.ObjectKey,
		&upload.MIME,
		&upload.SizeBytes,
		&upload.Checksum,
		&upload.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Upload{}, ErrUploadNotFound
		}
		return models.Upload{}, err
	}
	return upload, nil
}

// Delete removes the metadata row of an upload whose object is gone.
func (r *UploadRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM uploads WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrUploadNotFound
	}
	return nil
}
