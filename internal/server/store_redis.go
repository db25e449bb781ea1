package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ayangquest/questapi/internal/quest"
)

const gameKeyPrefix = "game:"

// RedisStore implements GameStore as one JSON value per key. SETNX keeps
// records write-once.
type RedisStore struct {
	rdb        *redis.Client
	maxPayload int
	ttl        time.Duration
}

// NewRedisStore creates a store whose keys expire after ttl; zero keeps them
// forever.
func NewRedisStore(rdb *redis.Client, maxPayload int, ttl time.Duration) *RedisStore {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &RedisStore{rdb: rdb, maxPayload: maxPayload, ttl: ttl}
}

func (s *RedisStore) CreateGame(ctx context.Context, g quest.Game) error {
	data, err := encodeGame(g, s.maxPayload)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, gameKeyPrefix+g.ID, data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("storing game: %w", err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *RedisStore) GetGame(ctx context.Context, id string) (quest.Game, error) {
	data, err := s.rdb.Get(ctx, gameKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return quest.Game{}, ErrNotFound
	}
	if err != nil {
		return quest.Game{}, fmt.Errorf("loading game: %w", err)
	}

	var g quest.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return quest.Game{}, fmt.Errorf("decoding game %s: %w", id, err)
	}
	return g, nil
}

var _ GameStore = (*RedisStore)(nil)
