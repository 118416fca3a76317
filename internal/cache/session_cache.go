package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "site:session:"

// CachedSession is the subset of a session and its owner needed to
// authenticate a request. A Revoked entry is a tombstone left by logout.
type CachedSession struct {
	UserID    string    `json:"userId,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	Revoked   bool      `json:"revoked,omitempty"`
}

// SessionCache is a read-through cache of session lookups keyed by token
// digest. Entries never outlive the session they describe. Fills never
// replace an existing key, so a tombstone written by Revoke wins over a
// lookup that read the row before it was deleted.
type SessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) *SessionCache {
	return &SessionCache{client: client, ttl: ttl}
}

// Get returns (nil, nil) on a miss.
func (c *SessionCache) Get(ctx context.Context, tokenHash []byte) (*CachedSession, error) {
	raw, err := c.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached CachedSession
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (c *SessionCache) Set(ctx context.Context, tokenHash []byte, session CachedSession, now time.Time) error {
	ttl := c.ttl
	if remaining := session.ExpiresAt.Sub(now); remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.SetNX(ctx, sessionKey(tokenHash), raw, ttl).Err()
}

// Revoke replaces the entries of the given digests with tombstones. They
// live for twice the cache ttl to cover lookups still in flight.
func (c *SessionCache) Revoke(ctx context.Context, tokenHashes ...[]byte) error {
	if len(tokenHashes) == 0 || c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(CachedSession{Revoked: true})
	if err != nil {
		return err
	}

	pipe := c.client.Pipeline()
	for _, hash := range tokenHashes {
		pipe.Set(ctx, sessionKey(hash), raw, 2*c.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func sessionKey(tokenHash []byte) string {
	return sessionKeyPrefix + hex.EncodeToString(tokenHash)
}
