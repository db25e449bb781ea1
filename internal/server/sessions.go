package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayangquest/questapi/internal/analytics"
	"github.com/ayangquest/questapi/internal/metrics"
	"github.com/ayangquest/questapi/internal/player"
	"github.com/ayangquest/questapi/internal/quest"
)

// playSession is one live playthrough. All access to m goes through mu.
type playSession struct {
	id     string
	gameID string

	mu      sync.Mutex
	m       *player.Machine
	timer   *time.Timer
	touched time.Time
	closed  bool
}

// SessionManager owns live play sessions. It arms a timer for each machine's
// next deadline and publishes every change through the broker.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*playSession

	broker  *Broker
	sink    analytics.Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
	opts    player.Options
	idle    time.Duration
	now     func() time.Time
}

type SessionConfig struct {
	Broker  *Broker
	Sink    analytics.Sink
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Player  player.Options
	Idle    time.Duration
}

func NewSessionManager(cfg SessionConfig) *SessionManager {
	if cfg.Sink == nil {
		cfg.Sink = analytics.Nop{}
	}
	if cfg.Idle <= 0 {
		cfg.Idle = 30 * time.Minute
	}
	return &SessionManager{
		sessions: make(map[string]*playSession),
		broker:   cfg.Broker,
		sink:     cfg.Sink,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		opts:     cfg.Player,
		idle:     cfg.Idle,
		now:      time.Now,
	}
}

// Create loads g into a fresh machine and records the play.
func (sm *SessionManager) Create(g quest.Game) (string, player.Snapshot, error) {
	m := player.New(sm.opts)
	if err := m.Load(g); err != nil {
		return "", player.Snapshot{}, err
	}
	m.Drain()

	s := &playSession{id: newID(), gameID: g.ID, m: m, touched: sm.now()}
	sm.mu.Lock()
	sm.sessions[s.id] = s
	sm.mu.Unlock()

	sm.sink.Record(analytics.GamePlayed(g.ID))
	if sm.metrics != nil {
		sm.metrics.GamesPlayed.Inc()
		sm.metrics.PlaySessions.Inc()
	}
	return s.id, m.Snapshot(), nil
}

// NotFoundSnapshot is the view shown when a game id does not resolve.
func (sm *SessionManager) NotFoundSnapshot() player.Snapshot {
	m := player.New(sm.opts)
	m.LoadFailed()
	return m.Snapshot()
}

func (sm *SessionManager) get(gameID, sessionID string) (*playSession, error) {
	sm.mu.Lock()
	s, ok := sm.sessions[sessionID]
	sm.mu.Unlock()
	if !ok || s.gameID != gameID {
		return nil, ErrNotFound
	}
	return s, nil
}

// Do runs fn against the session's machine, then settles the result: events
// are forwarded, the timer is re-armed and subscribers get a snapshot.
func (sm *SessionManager) Do(gameID, sessionID string, fn func(m *player.Machine, now time.Time) error) (player.Snapshot, error) {
	s, err := sm.get(gameID, sessionID)
	if err != nil {
		return player.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return player.Snapshot{}, ErrNotFound
	}

	now := sm.now()
	s.touched = now
	err = fn(s.m, now)
	sm.settle(s)
	return s.m.Snapshot(), err
}

// View returns the current snapshot and loaded game without changing state.
func (sm *SessionManager) View(gameID, sessionID string) (player.Snapshot, quest.Game, error) {
	s, err := sm.get(gameID, sessionID)
	if err != nil {
		return player.Snapshot{}, quest.Game{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return player.Snapshot{}, quest.Game{}, ErrNotFound
	}
	s.m.Advance(sm.now())
	sm.settle(s)
	g, _ := s.m.Game()
	return s.m.Snapshot(), g, nil
}

// settle must be called with s.mu held.
func (sm *SessionManager) settle(s *playSession) {
	events := s.m.Drain()
	for _, e := range events {
		if e.Kind != player.EventCompleted {
			continue
		}
		sm.sink.Record(analytics.GameCompleted(s.gameID, e.Win, e.Attempts))
		if sm.metrics != nil {
			sm.metrics.Completed(e.Win)
		}
	}

	sm.arm(s)
	if len(events) > 0 {
		sm.broker.Publish(s.id, PlayUpdate{Snapshot: s.m.Snapshot(), Events: events})
	}
}

// arm schedules the next deadline. Must be called with s.mu held.
func (sm *SessionManager) arm(s *playSession) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	next, ok := s.m.NextWake()
	if !ok {
		return
	}
	s.timer = time.AfterFunc(max(next.Sub(sm.now()), 0), func() { sm.fire(s) })
}

func (sm *SessionManager) fire(s *playSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.m.Advance(sm.now())
	sm.settle(s)
}

// Close stops the session's timer and tells subscribers it is gone.
func (sm *SessionManager) Close(gameID, sessionID string) error {
	s, err := sm.get(gameID, sessionID)
	if err != nil {
		return err
	}
	sm.remove(s)
	return nil
}

func (sm *SessionManager) remove(s *playSession) {
	sm.mu.Lock()
	delete(sm.sessions, s.id)
	sm.mu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	snap := s.m.Snapshot()
	s.mu.Unlock()

	sm.broker.Close(s.id, PlayUpdate{Snapshot: snap, Closed: true})
	if sm.metrics != nil {
		sm.metrics.PlaySessions.Dec()
	}
}

func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout that nobody is
// watching.
func (sm *SessionManager) Sweep(now time.Time) int {
	sm.mu.Lock()
	var stale []*playSession
	for _, s := range sm.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if now.Sub(s.touched) > sm.idle && sm.broker.Subscribers(s.id) == 0 {
			stale = append(stale, s)
		}
		s.mu.Unlock()
	}
	sm.mu.Unlock()

	for _, s := range stale {
		sm.remove(s)
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (sm *SessionManager) Run(ctx context.Context) error {
	err := runJanitor(ctx, janitorInterval(sm.idle), func() {
		if n := sm.Sweep(sm.now()); n > 0 {
			sm.logger.Info("expired play sessions", "count", n)
		}
	})

	sm.mu.Lock()
	all := make([]*playSession, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		all = append(all, s)
	}
	sm.mu.Unlock()
	for _, s := range all {
		sm.remove(s)
	}
	return err
}
