package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketlens/marketlens/internal/localstore"
)

// RedisStore keeps the activity timestamp in Redis, keyed per user.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, userID string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf("session:activity:%s", userID),
		ttl:    ttl,
	}
}

func (s *RedisStore) Touch(ctx context.Context, at time.Time) error {
	return s.client.Set(ctx, s.key, at.UnixMilli(), s.ttl).Err()
}

func (s *RedisStore) Last(ctx context.Context) (time.Time, bool, error) {
	ms, err := s.client.Get(ctx, s.key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// FileStore keeps the activity timestamp in the local fallback store, under
// its own key next to the cached profile.
type FileStore struct {
	store *localstore.Store
	key   string
}

func NewFileStore(store *localstore.Store) *FileStore {
	return &FileStore{store: store, key: "last_activity"}
}

func (s *FileStore) Touch(ctx context.Context, at time.Time) error {
	return s.store.Set(s.key, at.UnixMilli(), 0)
}

func (s *FileStore) Last(ctx context.Context) (time.Time, bool, error) {
	var ms int64
	err := s.store.Get(s.key, &ms)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *FileStore) Clear(ctx context.Context) error {
	return s.store.Delete(s.key)
}
