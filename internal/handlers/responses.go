package handlers

import (
	"time"

	"github.com/steinsgo/personal-site/internal/models"
)

type messageAuthor struct {
	Username string `json:"username"`
}

type messageResponse struct {
	ID          string             `json:"id"`
	RoomID      string             `json:"roomId"`
	UserID      string             `json:"userId"`
	Kind        models.MessageKind `json:"kind"`
	Text        *string            `json:"text"`
	ImageURL    *string            `json:"imageUrl"`
	CreatedAt   time.Time          `json:"createdAt"`
	CreatedAtMs int64              `json:"createdAtMs"`
	User        messageAuthor      `json:"user"`
}

func toMessageResponse(m models.Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		RoomID:      m.RoomID,
		UserID:      m.AuthorID,
		Kind:        m.Kind,
		Text:        m.Text,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
		CreatedAtMs: m.CreatedAt.UnixMilli(),
		User:        messageAuthor{Username: m.AuthorHandle},
	}
}

type roomResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tag       *string   `json:"tag"`
	IsPublic  bool      `json:"isPublic"`
	CreatedAt time.Time `json:"createdAt"`
}

type lastMessageResponse struct {
	Kind      models.MessageKind `json:"kind"`
	Text      *string            `json:"text"`
	CreatedAt time.Time          `json:"createdAt"`
}

type roomSummaryResponse struct {
	roomResponse
	CreatedBy    string               `json:"createdBy"`
	MessageCount int                  `json:"messageCount"`
	Last         *lastMessageResponse `json:"last"`
}

func toRoomResponse(r models.Room) roomResponse {
	return roomResponse{ID: r.ID, Name: r.Name, Tag: r.Tag, IsPublic: r.IsPublic, CreatedAt: r.CreatedAt}
}

func toRoomSummaryResponse(s models.RoomSummary) roomSummaryResponse {
	out := roomSummaryResponse{
		roomResponse: toRoomResponse(s.Room),
		CreatedBy:    s.CreatorHandle,
		MessageCount: s.MessageCount,
	}
	if s.LastMessage != nil {
		out.Last = &lastMessageResponse{Kind: s.LastMessage.Kind, Text: s.LastMessage.Text, CreatedAt: s.LastMessage.CreatedAt}
	}
	return out
}

type replyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
	IsAnonymous bool      `json:"isAnonymous"`
	AuthorID    *string   `json:"authorId"`
}

type entryResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Message     string          `json:"message"`
	CreatedAt   time.Time       `json:"createdAt"`
	IsAnonymous bool            `json:"isAnonymous"`
	AuthorID    *string         `json:"authorId"`
	Replies     []replyResponse `json:"replies"`
}

func toReplyResponse(r models.GuestbookReply) replyResponse {
	return replyResponse{
		ID:          r.ID,
		Name:        r.Name,
		Message:     r.Message,
		CreatedAt:   r.CreatedAt,
		IsAnonymous: r.Anonymous,
		AuthorID:    r.AuthorID,
	}
}

func toReplyResponses(replies []models.GuestbookReply) []replyResponse {
	out := make([]replyResponse, 0, len(replies))
	for _, r := range replies {
		out = append(out, toReplyResponse(r))
	}
	return out
}

// toEntryResponse hides the author of anonymous entries.
func toEntryResponse(e models.GuestbookEntry) entryResponse {
	out := entryResponse{
		ID:          e.ID,
		Name:        e.DisplayName,
		Message:     e.Message,
		CreatedAt:   e.CreatedAt,
		IsAnonymous: e.Anonymous,
		Replies:     toReplyResponses(e.Replies),
	}
	if !e.Anonymous {
		out.AuthorID = &e.UserID
	}
	return out
}
