package models

import "time"

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
)

func (k MessageKind) Valid() bool {
	return k == MessageKindText || k == MessageKindImage
}

// Message is one chat line. Exactly one of Text and ImageURL is set,
// matching Kind.
type Message struct {
	ID           string
	RoomID       string
	AuthorID     string
	AuthorHandle string
	Kind         MessageKind
	Text         *string
	ImageURL     *string
	CreatedAt    time.Time
}

// Before orders messages by (CreatedAt, ID).
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
