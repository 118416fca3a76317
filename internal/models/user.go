package models

import "time"

type User struct {
	ID           string
	Handle       string
	PasswordHash []byte
	CreatedAt    time.Time
}

type Session struct {
	TokenHash []byte
	UserID    string
	UserAgent string
	IPHash    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the session is still usable at now.
// A session expiring exactly at now is already invalid.
func (s Session) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
