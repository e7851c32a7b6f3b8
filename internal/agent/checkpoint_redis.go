package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nestplan/nestplan-backend/internal/logger"
)

const checkpointKeyPrefix = "engine:checkpoint:"

// RedisCheckpointStore is the durable checkpoint implementation: state
// survives process restarts for as long as the key TTL allows (zero TTL keeps
// it indefinitely).
type RedisCheckpointStore struct {
	client *redis.Client
	log    *logger.Logger
	ttl    int // seconds; 0 means no expiry
}

func NewRedisCheckpointStore(client *redis.Client, log *logger.Logger, ttlSeconds int) (*RedisCheckpointStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis checkpoint store: nil client")
	}
	return &RedisCheckpointStore{
		client: client,
		log:    log.With("component", "RedisCheckpointStore"),
		ttl:    ttlSeconds,
	}, nil
}

func checkpointKey(threadID uuid.UUID) string {
	return checkpointKeyPrefix + threadID.String()
}

func (s *RedisCheckpointStore) Get(ctx context.Context, threadID uuid.UUID) (*State, error) {
	raw, err := s.client.Get(ctx, checkpointKey(threadID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get checkpoint for thread %s: %w", threadID, err)
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint for thread %s: %w", threadID, err)
	}
	return &state, nil
}

func (s *RedisCheckpointStore) Put(ctx context.Context, threadID uuid.UUID, state *State) error {
	if state == nil {
		return fmt.Errorf("put checkpoint: nil state")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint for thread %s: %w", threadID, err)
	}
	expiry := time.Duration(s.ttl) * time.Second
	if err := s.client.Set(ctx, checkpointKey(threadID), raw, expiry).Err(); err != nil {
		return fmt.Errorf("put checkpoint for thread %s: %w", threadID, err)
	}
	return nil
}

func (s *RedisCheckpointStore) Initialize(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis checkpoint store ping: %w", err)
	}
	return nil
}

// Reset deletes every checkpoint key. Used by tests and operational resets;
// it scans rather than FLUSHDB so unrelated keys survive.
func (s *RedisCheckpointStore) Reset(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, checkpointKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.log.Warn("Failed to delete checkpoint key", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("reset checkpoint store: %w", err)
	}
	return nil
}
