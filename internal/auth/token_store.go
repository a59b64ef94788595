package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrResetTokenInvalid signals an unknown, expired or already-used reset token.
var ErrResetTokenInvalid = errors.New("reset token invalid or expired")

const (
	denyKeyPrefix  = "auth:deny:"
	resetKeyPrefix = "auth:reset:"
)

// TokenStore holds short-lived token state: the logout denylist and pending
// password-reset tokens. Both expire on their own, which is why this lives
// in Redis rather than Postgres.
type TokenStore interface {
	Deny(ctx context.Context, tokenID string, ttl time.Duration) error
	IsDenied(ctx context.Context, tokenID string) (bool, error)
	SaveReset(ctx context.Context, token, userID string, ttl time.Duration) error
	ConsumeReset(ctx context.Context, token string) (string, error)
}

type redisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore builds a Redis-backed token store.
func NewRedisTokenStore(client *redis.Client) TokenStore {
	return &redisTokenStore{client: client}
}

func (s *redisTokenStore) Deny(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, denyKeyPrefix+tokenID, "1", ttl).Err()
}

func (s *redisTokenStore) IsDenied(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, denyKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisTokenStore) SaveReset(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, resetKeyPrefix+token, userID, ttl).Err()
}

func (s *redisTokenStore) ConsumeReset(ctx context.Context, token string) (string, error) {
	userID, err := s.client.GetDel(ctx, resetKeyPrefix+token).Result()
	if err == redis.Nil {
		return "", ErrResetTokenInvalid
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}
