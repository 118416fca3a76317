package models

import "time"

type Upload struct {
	ID        string
	UserID    string
	Bucket    string
	ObjectKey string
	MIME      string
	SizeBytes int64
	Checksum  []byte
	CreatedAt time.Time
}
