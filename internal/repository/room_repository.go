package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steinsgo/personal-site/internal/models"
)

type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

func (r *RoomRepository) Create(ctx context.Context, room models.Room) (models.Room, error) {
	const query = `
		INSERT INTO chat_rooms (id, name, tag, is_public, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query,
		room.ID,
		room.Name,
		room.Tag,
		room.IsPublic,
		room.CreatedBy,
	).Scan(&room.CreatedAt); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) Get(ctx context.Context, id string) (models.Room, error) {
	const query = `
		SELECT id, name, tag, is_public, created_by, created_at
		FROM chat_rooms WHERE id = $1
	`

	var room models.Room
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.Tag,
		&room.IsPublic,
		&room.CreatedBy,
		&room.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Room{}, ErrRoomNotFound
		}
		return models.Room{}, err
	}
	return room, nil
}

// ListSummaries returns the newest rooms with creator handle, message count
// and a preview of the latest message.
func (r *RoomRepository) ListSummaries(ctx context.Context, limit int) ([]models.RoomSummary, error) {
	const query = `
		SELECT r.id, r.name, r.tag, r.is_public, r.created_by, r.created_at,
		       u.handle,
		       (SELECT COUNT(*) FROM chat_messages c WHERE c.room_id = r.id),
		       lm.kind, lm.text, lm.created_at
		FROM chat_rooms r
		JOIN users u ON u.id = r.created_by
		LEFT JOIN LATERAL (
			SELECT m.kind, m.text, m.created_at
			FROM chat_messages m
			WHERE m.room_id = r.id
			ORDER BY m.created_at DESC, m.id COLLATE "C" DESC
			LIMIT 1
		) lm ON TRUE
		ORDER BY r.created_at DESC, r.id COLLATE "C" DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.RoomSummary, 0, limit)
	for rows.Next() {
		var (
			summary  models.RoomSummary
			lastKind *string
			lastText *string
			lastAt   *time.Time
		)
		if err := rows.Scan(
			&summary.ID,
			&summary.Name,
			&summary.Tag,
			&summary.IsPublic,
			&summary.CreatedBy,
			&summary.CreatedAt,
			&summary.CreatorHandle,
			&summary.MessageCount,
			&lastKind,
			&lastText,
			&lastAt,
		); err != nil {
			return nil, err
		}
		if lastKind != nil && lastAt != nil {
			summary.LastMessage = &models.MessagePreview{
				Kind:      models.MessageKind(*lastKind),
				Text:      lastText,
				CreatedAt: *lastAt,
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
