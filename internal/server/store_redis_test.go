package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ayangquest/questapi/internal/quest"
)

func setupRedisStore(t *testing.T, maxPayload int, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, maxPayload, ttl), mr
}

func TestRedisStoreCreateGet(t *testing.T) {
	s, _ := setupRedisStore(t, DefaultMaxPayload, 0)
	ctx := context.Background()

	g := DemoGame(time.UnixMilli(1700000000000))
	g.ID = "abc"
	if err := s.CreateGame(ctx, g); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetGame(ctx, "abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PlayerName != g.PlayerName || len(got.Monsters) != quest.MonsterCount || got.CreatedAt != g.CreatedAt {
		t.Errorf("round trip mismatch: %+v", got)
	}

	// SETNX keeps the first record.
	g.PlayerName = "Someone else"
	if err := s.CreateGame(ctx, g); !errors.Is(err, ErrConflict) {
		t.Fatalf("second create: got %v, want ErrConflict", err)
	}
	if got, _ := s.GetGame(ctx, "abc"); got.PlayerName != "Ayang" {
		t.Errorf("stored record changed to %q", got.PlayerName)
	}

	if _, err := s.GetGame(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: got %v, want ErrNotFound", err)
	}
}

func TestRedisStoreRejects(t *testing.T) {
	ctx := context.Background()

	t.Run("oversized", func(t *testing.T) {
		s, mr := setupRedisStore(t, 100, 0)
		if err := s.CreateGame(ctx, DemoGame(time.Now())); !errors.Is(err, ErrPayloadTooLarge) {
			t.Fatalf("got %v, want ErrPayloadTooLarge", err)
		}
		if mr.Exists(gameKeyPrefix + DemoGameID) {
			t.Error("oversized game was stored")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		s, mr := setupRedisStore(t, DefaultMaxPayload, 0)
		g := DemoGame(time.Now())
		g.Monsters = nil
		var ve *quest.ValidationError
		if err := s.CreateGame(ctx, g); !errors.As(err, &ve) {
			t.Fatalf("got %v, want a validation error", err)
		}
		if mr.Exists(gameKeyPrefix + DemoGameID) {
			t.Error("invalid game was stored")
		}
	})

	t.Run("corrupt record", func(t *testing.T) {
		s, mr := setupRedisStore(t, DefaultMaxPayload, 0)
		mr.Set(gameKeyPrefix+"bad", "{not json")
		_, err := s.GetGame(ctx, "bad")
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want a decode error", err)
		}
	})
}

func TestRedisStoreTTL(t *testing.T) {
	s, mr := setupRedisStore(t, DefaultMaxPayload, time.Hour)
	ctx := context.Background()

	if err := s.CreateGame(ctx, DemoGame(time.Now())); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(gameKeyPrefix + DemoGameID); ttl != time.Hour {
		t.Errorf("ttl = %s, want 1h", ttl)
	}

	mr.FastForward(time.Hour + time.Second)
	if _, err := s.GetGame(ctx, DemoGameID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired game: got %v, want ErrNotFound", err)
	}

	// The id is free again once the record expired.
	if err := s.CreateGame(ctx, DemoGame(time.Now())); err != nil {
		t.Errorf("re-create after expiry: %v", err)
	}
}
