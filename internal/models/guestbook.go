package models

import "time"

type GuestbookEntry struct {
	ID          string
	UserID      string
	DisplayName string
	Message     string
	Anonymous   bool
	CreatedAt   time.Time
	Replies     []GuestbookReply
}

type GuestbookReply struct {
	ID           string
	EntryID      string
	AuthorID     *string
	AuthorHandle *string
	Name         string
	Message      string
	Anonymous    bool
	CreatedAt    time.Time
}
