package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Data is the small set of scalar fields bound to one server-side
// session. Bearer tokens are the durable credential; sessions are a
// per-browser convenience on top.
type Data struct {
	UserID     int64  `json:"user_id"`
	Identifier string `json:"identifier"`
	Role       string `json:"role"`
}

type Store interface {
	Get(ctx context.Context, sessionID string) (*Data, error)
	Put(ctx context.Context, sessionID string, data *Data) error
	Delete(ctx context.Context, sessionID string) error
}

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) Store {
	return &redisStore{rdb: rdb, ttl: ttl}
}

func NewSessionID() string {
	return uuid.NewString()
}

func (s *redisStore) Get(ctx context.Context, sessionID string) (*Data, error) {
	if sessionID == "" {
		return nil, nil
	}

	raw, err := s.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session read: %w", err)
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("session decode: %w", err)
	}
	return &data, nil
}

func (s *redisStore) Put(ctx context.Context, sessionID string, data *Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}

	if err := s.rdb.Set(ctx, sessionKey(sessionID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.rdb.Del(ctx, sessionKey(sessionID)).Err()
}

func sessionKey(sessionID string) string {
	return "sess:" + sessionID
}
