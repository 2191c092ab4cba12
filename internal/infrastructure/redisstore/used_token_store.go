// Package redisstore keeps short-lived authentication state in Redis.
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/rxcheck-identity/internal/domain/errs"
	"github.com/oksasatya/rxcheck-identity/pkg/helpers"
)

// UsedTokenStore marks temporary tokens as exchanged so each can be used once
// across every instance sharing the Redis.
type UsedTokenStore struct {
	client *redis.Client
}

func NewUsedTokenStore(client *redis.Client) *UsedTokenStore {
	return &UsedTokenStore{client: client}
}

// MarkUsed relies on SET NX: only the first caller for a jti creates the key.
func (s *UsedTokenStore) MarkUsed(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	if jti == "" {
		return false, nil
	}
	ok, err := s.client.SetNX(ctx, helpers.KeyUsedTempToken(jti), "1", ttl).Result()
	if err != nil {
		return false, errs.Unavailable("tokens.mark_used", err)
	}
	return ok, nil
}
