package models

import "time"

type Room struct {
	ID        string
	Name      string
	Tag       *string
	IsPublic  bool
	CreatedBy string
	CreatedAt time.Time
}

// RoomSummary is a room as shown in the lobby listing.
type RoomSummary struct {
	Room
	CreatorHandle string
	MessageCount  int
	LastMessage   *MessagePreview
}

type MessagePreview struct {
	Kind      MessageKind
	Text      *string
	CreatedAt time.Time
}
