package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayangquest/questapi/internal/quest"
)

// DocStore implements GameStore on the games table, one JSONB document per
// game plus a few indexed columns.
type DocStore struct {
	db         *sql.DB
	maxPayload int
}

func NewDocStore(db *sql.DB, maxPayload int) *DocStore {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &DocStore{db: db, maxPayload: maxPayload}
}

func (s *DocStore) CreateGame(ctx context.Context, g quest.Game) error {
	data, err := encodeGame(g, s.maxPayload)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO games (id, creator_name, created_at, data) VALUES (?, ?, ?, jsonb(?))
		 ON CONFLICT(id) DO NOTHING`,
		g.ID, g.CreatorName, g.CreatedAt, string(data),
	)
	if err != nil {
		return fmt.Errorf("inserting game: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *DocStore) GetGame(ctx context.Context, id string) (quest.Game, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM games WHERE id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return quest.Game{}, ErrNotFound
	}
	if err != nil {
		return quest.Game{}, err
	}

	var g quest.Game
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return quest.Game{}, fmt.Errorf("decoding game %s: %w", id, err)
	}
	return g, nil
}

var _ GameStore = (*DocStore)(nil)
