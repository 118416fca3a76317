// Package stream tails chat rooms for live subscribers.
//
// Each subscriber polls the message store with an inclusive timestamp
// watermark. Timestamps are coarse and may collide, so the cursor also
// remembers which ids it already delivered at the watermark itself.
package stream

import (
	"time"

	"github.com/steinsgo/personal-site/internal/models"
)

// Cursor is a subscriber's position in a room: the newest delivered
// timestamp plus the ids delivered at exactly that timestamp.
type Cursor struct {
	at   time.Time
	seen map[string]struct{}
}

func NewCursor(after time.Time) *Cursor {
	return &Cursor{at: after, seen: make(map[string]struct{})}
}

// Position is the inclusive lower bound for the next poll.
func (c *Cursor) Position() time.Time {
	return c.at
}

// Admit filters a batch ordered by (CreatedAt, ID) down to the messages
// not delivered yet and advances the cursor past them.
func (c *Cursor) Admit(batch []models.Message) []models.Message {
	var out []models.Message
	for _, msg := range batch {
		switch {
		case msg.CreatedAt.Before(c.at):
			continue
		case msg.CreatedAt.After(c.at):
			c.at = msg.CreatedAt
			clear(c.seen)
		}
		if _, dup := c.seen[msg.ID]; dup {
			continue
		}
		c.seen[msg.ID] = struct{}{}
		out = append(out, msg)
	}
	return out
}
