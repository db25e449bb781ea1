package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayangquest/questapi/internal/builder"
)

type draftEntry struct {
	mu      sync.Mutex
	wizard  *builder.Wizard
	touched time.Time
}

// DraftStore holds in-progress builder wizards in memory. Drafts untouched
// for longer than the idle timeout are swept.
type DraftStore struct {
	mu     sync.Mutex
	drafts map[string]*draftEntry
	idle   time.Duration
	now    func() time.Time
}

func NewDraftStore(idle time.Duration) *DraftStore {
	if idle <= 0 {
		idle = 2 * time.Hour
	}
	return &DraftStore{
		drafts: make(map[string]*draftEntry),
		idle:   idle,
		now:    time.Now,
	}
}

// Create starts a new wizard and returns its id.
func (s *DraftStore) Create() string {
	id := newID()
	s.mu.Lock()
	s.drafts[id] = &draftEntry{wizard: builder.NewWizard(), touched: s.now()}
	s.mu.Unlock()
	return id
}

// With runs fn with exclusive access to the draft's wizard.
func (s *DraftStore) With(id string, fn func(w *builder.Wizard) error) error {
	s.mu.Lock()
	e, ok := s.drafts[id]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.touched = s.now()
	return fn(e.wizard)
}

func (s *DraftStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.drafts[id]; !ok {
		return ErrNotFound
	}
	delete(s.drafts, id)
	return nil
}

func (s *DraftStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.drafts)
}

// Sweep drops drafts idle since before now minus the idle timeout.
func (s *DraftStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.drafts {
		if !e.mu.TryLock() {
			continue
		}
		if now.Sub(e.touched) > s.idle {
			delete(s.drafts, id)
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (s *DraftStore) Run(ctx context.Context, logger *slog.Logger) error {
	return runJanitor(ctx, janitorInterval(s.idle), func() {
		if n := s.Sweep(s.now()); n > 0 {
			logger.Info("expired drafts", "count", n)
		}
	})
}

func janitorInterval(idle time.Duration) time.Duration {
	return min(max(idle/4, time.Second), time.Minute)
}

func runJanitor(ctx context.Context, every time.Duration, sweep func()) error {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			sweep()
		}
	}
}
