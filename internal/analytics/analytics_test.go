package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayangquest/questapi/internal/database"
	"github.com/ayangquest/questapi/internal/metrics"
	"github.com/ayangquest/questapi/internal/migrations"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.RunAnalytics(ctx, db, "sqlite"); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return NewRepository(db, DialectSQLite)
}

func TestRebind(t *testing.T) {
	q := `INSERT INTO t (a, b) VALUES (?, ?)`
	if got := rebind(DialectSQLite, q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	if got := rebind(DialectPostgres, q); got != `INSERT INTO t (a, b) VALUES ($1, $2)` {
		t.Errorf("postgres rebind = %s", got)
	}
}

func TestRepositoryCounts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []Event{
		GameCreated("g1", "Raka"),
		GamePlayed("g1"),
		GamePlayed("g1"),
		GamePlayed("g1"),
		GameCompleted("g1", true, 1),
		GameCompleted("g1", false, 2),
		PageView("/play/g1?", "test-agent", ""),
	}
	for _, e := range events {
		e.At = at
		if err := repo.Write(ctx, e); err != nil {
			t.Fatalf("write %s: %v", e.Kind, err)
		}
	}

	tests := []struct {
		name string
		fn   func(context.Context) (int, error)
		want int
	}{
		{"created", repo.CountCreated, 1},
		{"played", repo.CountPlayed, 3},
		{"completed", repo.CountCompleted, 2},
		{"wins", repo.CountWins, 1},
		{"visitors", repo.CountVisitors, 1},
	}
	for _, tt := range tests {
		got, err := tt.fn(ctx)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}

	played, err := repo.PlayedSince(ctx, at.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(played) != 3 || !played[0].Equal(at) {
		t.Errorf("played since = %v", played)
	}
	if later, _ := repo.PlayedSince(ctx, at.Add(time.Hour)); len(later) != 0 {
		t.Errorf("played after = %v, want none", later)
	}
}

func TestPlayedSinceFractionalSeconds(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	offsets := []time.Duration{0, 120 * time.Millisecond, 123 * time.Millisecond}
	for _, off := range offsets {
		e := GamePlayed("g1")
		e.At = at.Add(off)
		if err := repo.Write(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.PlayedSince(ctx, at.Add(-time.Minute))
	if err != nil {
		t.Fatalf("played since: %v", err)
	}
	if len(got) != len(offsets) {
		t.Fatalf("got %d timestamps, want %d", len(got), len(offsets))
	}
	for i, off := range offsets {
		if !got[i].Equal(at.Add(off)) {
			t.Errorf("timestamp %d = %s, want %s", i, got[i], at.Add(off))
		}
	}

	s, err := NewDashboard(repo, time.UTC).Summary(ctx, Range7D, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if last := s.Series[len(s.Series)-1]; last.Played != 3 {
		t.Errorf("played today = %d, want 3", last.Played)
	}
}

func TestScanTime(t *testing.T) {
	want := time.Date(2026, 3, 10, 8, 0, 0, 120_000_000, time.UTC)
	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"padded text", "2026-03-10T08:00:00.120Z", want},
		{"whole seconds", "2026-03-10T08:00:00Z", want.Truncate(time.Second)},
		{"bytes", []byte("2026-03-10T08:00:00.000Z"), want.Truncate(time.Second)},
		{"time value", want.In(time.FixedZone("WIB", 7*3600)), want},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scanTime(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) || got.Location() != time.UTC {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := scanTime(int64(5)); err == nil {
		t.Error("expected an error for a numeric timestamp")
	}
}

func TestDashboardSummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	write := func(e Event, at time.Time) {
		t.Helper()
		e.At = at
		if err := repo.Write(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	write(GameCreated("g1", "Raka"), now.AddDate(0, 0, -2))
	write(GameCreated("g2", "Raka"), now.AddDate(0, 0, -40))
	for range 3 {
		write(GamePlayed("g1"), now.AddDate(0, 0, -1))
	}
	write(GameCompleted("g1", true, 1), now)
	write(GameCompleted("g1", false, 1), now)

	for _, v := range []struct{ city, country string }{
		{"Bandung", "Indonesia"}, {"Bandung", "Indonesia"}, {"Jakarta", "Indonesia"}, {"", "Indonesia"},
	} {
		e := PageView("/", "ua", "")
		e.City, e.Country = v.city, v.country
		write(e, now.Add(-time.Hour))
	}

	s, err := NewDashboard(repo, time.UTC).Summary(ctx, Range7D, now)
	if err != nil {
		t.Fatal(err)
	}

	if s.Totals.Created != 2 || s.Totals.Played != 3 || s.Totals.Completed != 2 || s.Totals.Wins != 1 || s.Totals.Visitors != 4 {
		t.Errorf("totals = %+v", s.Totals)
	}
	if s.CompletionRate != 67 {
		t.Errorf("completion rate = %d, want 67", s.CompletionRate)
	}
	if s.WinRate != 50 {
		t.Errorf("win rate = %d, want 50", s.WinRate)
	}

	if len(s.Series) != 8 {
		t.Fatalf("series has %d days, want 8", len(s.Series))
	}
	if s.Series[0].Date != "2026-03-03" || s.Series[7].Date != "2026-03-10" {
		t.Errorf("series spans %s..%s", s.Series[0].Date, s.Series[7].Date)
	}
	var created, played, visitors int
	for _, p := range s.Series {
		created += p.Created
		played += p.Played
		visitors += p.Visitors
	}
	if created != 1 || played != 3 || visitors != 4 {
		t.Errorf("series sums created=%d played=%d visitors=%d", created, played, visitors)
	}

	if len(s.TopLocations) != 2 || s.TopLocations[0] != (Location{Label: "Bandung, Indonesia", Count: 2}) {
		t.Errorf("top locations = %+v", s.TopLocations)
	}
}

func TestDashboardEmpty(t *testing.T) {
	s, err := NewDashboard(newTestRepo(t), time.UTC).Summary(context.Background(), Range30D, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if s.CompletionRate != 0 || s.WinRate != 0 {
		t.Errorf("rates = %d/%d, want 0/0", s.CompletionRate, s.WinRate)
	}
	if len(s.Series) != 31 {
		t.Errorf("series has %d days, want 31", len(s.Series))
	}
	if s.TopLocations == nil {
		t.Error("top locations should be an empty list, not null")
	}
}

func TestParseRange(t *testing.T) {
	for in, want := range map[string]Range{"": Range7D, "7D": Range7D, "30D": Range30D, "1Y": Range1Y} {
		got, err := ParseRange(in)
		if err != nil || got != want {
			t.Errorf("ParseRange(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseRange("2W"); !errors.Is(err, ErrUnknownRange) {
		t.Errorf("expected ErrUnknownRange, got %v", err)
	}
}

type recordingWriter struct {
	mu     sync.Mutex
	events []Event
	err    error
	done   chan struct{}
}

func (w *recordingWriter) Write(_ context.Context, e Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, e)
	if w.done != nil {
		w.done <- struct{}{}
	}
	return w.err
}

type fixedLocator struct{}

func (fixedLocator) Locate(context.Context, string) (string, string) { return "Indonesia", "Bandung" }

func TestQueueWritesAndLocates(t *testing.T) {
	w := &recordingWriter{done: make(chan struct{}, 4)}
	q := NewQueue(discard, w, fixedLocator{}, 4, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	defer cancel()

	q.Record(PageView("/", "ua", "203.0.113.7"))
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("event not written")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.events[0]
	if e.City != "Bandung" || e.Country != "Indonesia" {
		t.Errorf("location = %q, %q", e.City, e.Country)
	}
	if e.At.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	w := &recordingWriter{}
	m := metrics.New()
	q := NewQueue(discard, w, nil, 1, m)

	q.Record(GamePlayed("g1"))
	q.Record(GamePlayed("g2"))

	// Not running yet: the second event was dropped, the first is flushed on stop.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if len(w.events) != 1 || w.events[0].GameID != "g1" {
		t.Errorf("written = %+v", w.events)
	}
}

func TestQueueSwallowsWriteErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("db down")}
	q := NewQueue(discard, w, nil, 2, nil)
	q.Record(GameCreated("g1", "Raka"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestGeolocator(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.Contains(r.URL.Path, "203.0.113.7") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"country_name":"Indonesia","city":"Bandung"}`))
	}))
	defer srv.Close()

	g := NewGeolocator(discard, srv.URL+"/{ip}/json/", nil)

	country, city := g.Locate(context.Background(), "203.0.113.7")
	if country != "Indonesia" || city != "Bandung" {
		t.Errorf("Locate = %q, %q", country, city)
	}

	country, city = g.Locate(context.Background(), "198.51.100.1")
	if country != "" || city != "" {
		t.Errorf("failed lookup = %q, %q, want empty", country, city)
	}

	before := hits.Load()
	if c, _ := g.Locate(context.Background(), "192.168.1.10"); c != "" || hits.Load() != before {
		t.Error("private addresses should not be looked up")
	}
}
