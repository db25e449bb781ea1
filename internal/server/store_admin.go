package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type AdminStore interface {
	AdminByEmail(ctx context.Context, email string) (adminID, passwordHash string, err error)
	CreateAdminSession(ctx context.Context, adminID string) (sessionID string, err error)
	DeleteAdminSession(ctx context.Context, sessionID string) error
	AdminFromSession(ctx context.Context, sessionID string) (adminSession, error)
}

type adminDoc struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type adminSessionDoc struct {
	ID        string `json:"id"`
	AdminID   string `json:"adminId"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// AdminDocStore keeps dashboard operators and their login sessions.
type AdminDocStore struct {
	db         *sql.DB
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAdminDocStore(db *sql.DB, sessionTTL time.Duration) *AdminDocStore {
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	return &AdminDocStore{db: db, sessionTTL: sessionTTL, now: time.Now}
}

// EnsureAdmin creates the operator account, or resets its password when the
// email already exists.
func (s *AdminDocStore) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	id, _, err := s.AdminByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		id = newID()
	case err != nil:
		return err
	}

	data, err := json.Marshal(adminDoc{ID: id, Email: email, PasswordHash: string(hash)})
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO admins (id, email, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		id, email, string(data),
	)
	return err
}

func (s *AdminDocStore) AdminByEmail(ctx context.Context, email string) (string, string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM admins WHERE email = ?`, email,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	var a adminDoc
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return "", "", err
	}
	return a.ID, a.PasswordHash, nil
}

func (s *AdminDocStore) CreateAdminSession(ctx context.Context, adminID string) (string, error) {
	// Look up admin email.
	var email string
	err := s.db.QueryRowContext(ctx,
		`SELECT email FROM admins WHERE id = ?`, adminID,
	).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	now := s.now()
	sessionID := newID()
	sessData, err := json.Marshal(adminSessionDoc{
		ID:        sessionID,
		AdminID:   adminID,
		Email:     email,
		CreatedAt: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO admin_sessions (id, admin_id, expires_at, data) VALUES (?, ?, ?, jsonb(?))`,
		sessionID, adminID, now.Add(s.sessionTTL).Unix(), string(sessData),
	)
	return sessionID, err
}

func (s *AdminDocStore) DeleteAdminSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE id = ?`, sessionID,
	)
	return err
}

func (s *AdminDocStore) AdminFromSession(ctx context.Context, sessionID string) (adminSession, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM admin_sessions WHERE id = ? AND expires_at > ?`,
		sessionID, s.now().Unix(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return adminSession{}, errNoAdminSession
	}
	if err != nil {
		return adminSession{}, err
	}
	var as adminSessionDoc
	if err := json.Unmarshal([]byte(data), &as); err != nil {
		return adminSession{}, err
	}
	return adminSession{AdminID: as.AdminID, Email: as.Email}, nil
}

// PurgeExpiredSessions removes sessions past their expiry.
func (s *AdminDocStore) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE expires_at <= ?`, s.now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

var _ AdminStore = (*AdminDocStore)(nil)
