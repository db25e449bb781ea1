package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ayangquest/questapi/internal/quest"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("already exists")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// GameStore persists immutable games. There is no update or delete.
type GameStore interface {
	// CreateGame inserts g. An existing id yields ErrConflict and the stored
	// record is left untouched.
	CreateGame(ctx context.Context, g quest.Game) error
	GetGame(ctx context.Context, id string) (quest.Game, error)
}

// DefaultMaxPayload is the serialized size ceiling of one game.
const DefaultMaxPayload = 1 << 20

// encodeGame validates and serializes g and enforces the payload ceiling.
func encodeGame(g quest.Game, limit int) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding game: %w", err)
	}
	if limit > 0 && len(data) > limit {
		return nil, fmt.Errorf("%w: game is %d bytes, limit %d", ErrPayloadTooLarge, len(data), limit)
	}
	return data, nil
}

func newID() string {
	return uuid.NewString()
}
