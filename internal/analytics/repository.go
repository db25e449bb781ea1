package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// timeLayout is fixed-width in UTC so timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Repository stores events in four append-only tables and answers the
// dashboard queries. Timestamps are kept as UTC text so the same SQL runs on
// libSQL and PostgreSQL.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

func NewRepository(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{db: db, dialect: dialect}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func rebind(d Dialect, q string) string {
	if d != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (r *Repository) exec(ctx context.Context, q string, args ...any) error {
	_, err := r.db.ExecContext(ctx, rebind(r.dialect, q), args...)
	return err
}

func (r *Repository) Write(ctx context.Context, e Event) error {
	id := uuid.NewString()
	at := formatTime(e.At)

	var err error
	switch e.Kind {
	case KindGameCreated:
		err = r.exec(ctx,
			`INSERT INTO games_created (id, game_id, creator_name, created_at) VALUES (?, ?, ?, ?)`,
			id, e.GameID, e.CreatorName, at)
	case KindGamePlayed:
		err = r.exec(ctx,
			`INSERT INTO games_played (id, game_id, played_at) VALUES (?, ?, ?)`,
			id, e.GameID, at)
	case KindGameCompleted:
		err = r.exec(ctx,
			`INSERT INTO games_completed (id, game_id, is_win, attempts, completed_at) VALUES (?, ?, ?, ?, ?)`,
			id, e.GameID, boolInt(e.IsWin), e.Attempts, at)
	case KindPageView:
		err = r.exec(ctx,
			`INSERT INTO visitor_logs (id, page_url, user_agent, country, city, visited_at) VALUES (?, ?, ?, ?, ?, ?)`,
			id, e.URL, e.UserAgent, nullString(e.Country), nullString(e.City), at)
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if err != nil {
		return fmt.Errorf("inserting %s: %w", e.Kind, err)
	}
	return nil
}

// is_win is an integer column on both backends.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *Repository) Check(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, rebind(r.dialect, q), args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repository) CountCreated(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM games_created`)
}

func (r *Repository) CountPlayed(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM games_played`)
}

func (r *Repository) CountCompleted(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM games_completed`)
}

func (r *Repository) CountWins(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM games_completed WHERE is_win = 1`)
}

func (r *Repository) CountVisitors(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM visitor_logs`)
}

func (r *Repository) times(ctx context.Context, q string, since time.Time) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.dialect, q), formatTime(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		t, err := scanTime(v)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// scanTime accepts a stored timestamp as text or as a time value. libSQL
// hands back text that looks like a timestamp already parsed, and whole
// seconds drop their fraction on the way.
func scanTime(v any) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	default:
		return time.Time{}, fmt.Errorf("unexpected timestamp type %T", v)
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func (r *Repository) CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	return r.times(ctx, `SELECT created_at FROM games_created WHERE created_at >= ? ORDER BY created_at`, since)
}

func (r *Repository) PlayedSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	return r.times(ctx, `SELECT played_at FROM games_played WHERE played_at >= ? ORDER BY played_at`, since)
}

func (r *Repository) VisitsSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	return r.times(ctx, `SELECT visited_at FROM visitor_logs WHERE visited_at >= ? ORDER BY visited_at`, since)
}

// LocationCount is a visitor tally for one city.
type LocationCount struct {
	City    string
	Country string
	Count   int
}

// TopLocations returns the most frequent known cities since the given time.
func (r *Repository) TopLocations(ctx context.Context, since time.Time, limit int) ([]LocationCount, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.dialect, `
		SELECT city, COALESCE(country, ''), COUNT(*) AS n
		FROM visitor_logs
		WHERE visited_at >= ? AND city IS NOT NULL AND city <> ''
		GROUP BY city, country
		ORDER BY n DESC, city
		LIMIT ?
	`), formatTime(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LocationCount
	for rows.Next() {
		var lc LocationCount
		if err := rows.Scan(&lc.City, &lc.Country, &lc.Count); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

var _ Writer = (*Repository)(nil)
