package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steinsgo/personal-site/internal/models"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Create stores the message with the CreatedAt chosen by the caller.
// A missing room surfaces as ErrRoomNotFound.
func (r *MessageRepository) Create(ctx context.Context, msg models.Message) error {
	const query = `
		INSERT INTO chat_messages (id, room_id, user_id, kind, text, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.RoomID,
		msg.AuthorID,
		string(msg.Kind),
		msg.Text,
		msg.ImageURL,
		msg.CreatedAt,
	)
	if err != nil && isForeignKeyViolation(err) {
		return ErrRoomNotFound
	}
	return err
}

// Since returns messages of the room with created_at >= since in
// (created_at, id) order. The id comparison uses byte order so it agrees
// with Go string comparison.
func (r *MessageRepository) Since(ctx context.Context, roomID string, since time.Time, limit int) ([]models.Message, error) {
	const query = `
		SELECT m.id, m.room_id, m.user_id, u.handle, m.kind, m.text, m.image_url, m.created_at
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1 AND m.created_at >= $2
		ORDER BY m.created_at ASC, m.id COLLATE "C" ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, roomID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			msg  models.Message
			kind string
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.RoomID,
			&msg.AuthorID,
			&msg.AuthorHandle,
			&kind,
			&msg.Text,
			&msg.ImageURL,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msg.Kind = models.MessageKind(kind)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
