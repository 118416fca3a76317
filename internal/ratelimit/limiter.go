// Package ratelimit throttles write endpoints with a fixed window counter
// kept in redis (INCR + EXPIRE).
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Rule is a key prefix with the number of hits allowed per window.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

func AuthRule(perMinute int) Rule {
	return Rule{Key: "site:rl:auth:", Limit: perMinute, Window: time.Minute}
}

func PostRule(per10s int) Rule {
	return Rule{Key: "site:rl:post:", Limit: per10s, Window: 10 * time.Second}
}

type Limiter struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewLimiter(client *redis.Client, logger zerolog.Logger) *Limiter {
	return &Limiter{client: client, logger: logger}
}

// Allow counts one hit for identifier under rule. Redis failures fail open:
// the request is allowed and the error returned for logging.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("rate limit incr failed, allowing")
		return true, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("rate limit expire failed, allowing")
			// a key without TTL would block the identifier forever
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}
