package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionTTL = 24 * time.Hour

// Store caches session-token to user-id lookups in redis, keeping repeat
// identity resolution off the database.
type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func sessionKey(token string) string {
	return fmt.Sprintf("session_user:%s", token)
}

func (s *Store) GetUserID(ctx context.Context, token string) (uint64, bool, error) {
	id, err := s.client.Get(ctx, sessionKey(token)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *Store) SetUserID(ctx context.Context, token string, userID uint64) error {
	return s.client.Set(ctx, sessionKey(token), userID, sessionTTL).Err()
}
