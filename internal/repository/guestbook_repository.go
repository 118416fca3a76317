package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/steinsgo/personal-site/internal/models"
)

type GuestbookRepository struct {
	pool *pgxpool.Pool
}

func NewGuestbookRepository(pool *pgxpool.Pool) *GuestbookRepository {
	return &GuestbookRepository{pool: pool}
}

func (r *GuestbookRepository) CreateEntry(ctx context.Context, entry models.GuestbookEntry) (models.GuestbookEntry, error) {
	const query = `
		INSERT INTO guestbook_entries (id, user_id, display_name, message, anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.DisplayName,
		entry.Message,
		entry.Anonymous,
	).Scan(&entry.CreatedAt); err != nil {
		return models.GuestbookEntry{}, err
	}
	return entry, nil
}

func (r *GuestbookRepository) EntryExists(ctx context.Context, id string) error {
	const query = `SELECT 1 FROM guestbook_entries WHERE id = $1`
	var one int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEntryNotFound
		}
		return err
	}
	return nil
}

// ListEntries returns the newest entries, each with up to repliesPerEntry
// of its oldest replies.
func (r *GuestbookRepository) ListEntries(ctx context.Context, limit, repliesPerEntry int) ([]models.GuestbookEntry, error) {
	const query = `
		SELECT id, user_id, display_name, message, anonymous, created_at
		FROM guestbook_entries
		ORDER BY created_at DESC, id COLLATE "C" DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]models.GuestbookEntry, 0, limit)
	index := make(map[string]int, limit)
	for rows.Next() {
		var entry models.GuestbookEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.DisplayName,
			&entry.Message,
			&entry.Anonymous,
			&entry.CreatedAt,
		); err != nil {
			rows.Close()
			return nil, err
		}
		entry.Replies = []models.GuestbookReply{}
		index[entry.ID] = len(entries)
		entries = append(entries, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}

	const repliesQuery = `
		SELECT id, entry_id, author_id, author_handle, name, message, anonymous, created_at
		FROM (
			SELECT r.id, r.entry_id, r.author_id, u.handle AS author_handle, r.name, r.message,
			       r.anonymous, r.created_at,
			       ROW_NUMBER() OVER (PARTITION BY r.entry_id ORDER BY r.created_at, r.id COLLATE "C") AS rn
			FROM guestbook_replies r
			LEFT JOIN users u ON u.id = r.author_id
			WHERE r.entry_id = ANY($1)
		) ranked
		WHERE rn <= $2
		ORDER BY entry_id, created_at, id COLLATE "C"
	`

	replies, err := r.queryReplies(ctx, repliesQuery, ids, repliesPerEntry)
	if err != nil {
		return nil, err
	}
	for _, reply := range replies {
		if i, ok := index[reply.EntryID]; ok {
			entries[i].Replies = append(entries[i].Replies, reply)
		}
	}
	return entries, nil
}

func (r *GuestbookRepository) ListReplies(ctx context.Context, entryID string, limit int) ([]models.GuestbookReply, error) {
	const query = `
		SELECT r.id, r.entry_id, r.author_id, u.handle, r.name, r.message, r.anonymous, r.created_at
		FROM guestbook_replies r
		LEFT JOIN users u ON u.id = r.author_id
		WHERE r.entry_id = $1
		ORDER BY r.created_at, r.id COLLATE "C"
		LIMIT $2
	`
	return r.queryReplies(ctx, query, entryID, limit)
}

// CreateReply stores the reply. A missing entry surfaces as ErrEntryNotFound.
func (r *GuestbookRepository) CreateReply(ctx context.Context, reply models.GuestbookReply) (models.GuestbookReply, error) {
	const query = `
		INSERT INTO guestbook_replies (id, entry_id, author_id, name, message, anonymous, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query,
		reply.ID,
		reply.EntryID,
		reply.AuthorID,
		reply.Name,
		reply.Message,
		reply.Anonymous,
	).Scan(&reply.CreatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return models.GuestbookReply{}, ErrEntryNotFound
		}
		return models.GuestbookReply{}, err
	}
	return reply, nil
}

func (r *GuestbookRepository) queryReplies(ctx context.Context, query string, args ...any) ([]models.GuestbookReply, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	replies := []models.GuestbookReply{}
	for rows.Next() {
		var reply models.GuestbookReply
		if err := rows.Scan(
			&reply.ID,
			&reply.EntryID,
			&reply.AuthorID,
			&reply.AuthorHandle,
			&reply.Name,
			&reply.Message,
			&reply.Anonymous,
			&reply.CreatedAt,
		); err != nil {
			return nil, err
		}
		replies = append(replies, reply)
	}
	return replies, rows.Err()
}
