// Package player drives one playthrough of a game: greeting, five battle
// stages separated by timed run transitions, then victory. A wrong answer
// raises a game-over overlay on top of the battle without leaving it.
//
// Machine is deterministic. Every operation takes the current time and
// deadlines are fired by Advance; the caller arms a timer from NextWake and
// Advance applies everything that came due.
package player

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/ayangquest/questapi/internal/quest"
)

var (
	ErrNotLoaded    = errors.New("game not loaded")
	ErrNotAccepting = errors.New("not accepting input now")
	ErrEmptyAnswer  = errors.New("answer is empty")
)

type Phase int

const (
	PhaseInit Phase = iota
	PhaseIntro
	PhaseBattle
	PhaseRun
	PhaseVictory
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseIntro:
		return "intro"
	case PhaseBattle:
		return "battle"
	case PhaseRun:
		return "run"
	case PhaseVictory:
		return "victory"
	}
	return "unknown"
}

// State is the tagged position in the playthrough. Stage is zero-based and
// only meaningful for PhaseBattle (0 to 4) and PhaseRun (0 to 3, the monster just
// defeated).
type State struct {
	Phase Phase
	Stage int
}

// String renders the display tag, e.g. BATTLE_3 or RUN_1.
func (s State) String() string {
	switch s.Phase {
	case PhaseBattle:
		return fmt.Sprintf("BATTLE_%d", s.Stage+1)
	case PhaseRun:
		return fmt.Sprintf("RUN_%d", s.Stage+1)
	}
	return strings.ToUpper(s.Phase.String())
}

type Timings struct {
	VS            time.Duration
	IntroGreeting time.Duration
	StageGreeting time.Duration
	Slash         time.Duration
	Defeat        time.Duration
	Overlay       time.Duration
	Run           time.Duration
}

var DefaultTimings = Timings{
	VS:            1500 * time.Millisecond,
	IntroGreeting: 4000 * time.Millisecond,
	StageGreeting: 2500 * time.Millisecond,
	Slash:         400 * time.Millisecond,
	Defeat:        1500 * time.Millisecond,
	Overlay:       500 * time.Millisecond,
	Run:           3500 * time.Millisecond,
}

type Music string

const (
	MusicNone    Music = "none"
	MusicBattle  Music = "bgm"
	MusicVictory Music = "victory"
)

type Cue string

const (
	CueSlash   Cue = "slash"
	CueWrong   Cue = "wrong"
	CueVictory Cue = "victory"
)

type EventKind string

const (
	EventState     EventKind = "state"
	EventCue       EventKind = "cue"
	EventCompleted EventKind = "completed"
)

// Event is something the caller may want to forward: a state change, a
// sound cue, or the end of an attempt (for analytics).
type Event struct {
	Kind     EventKind `json:"kind"`
	State    string    `json:"state,omitempty"`
	Cue      Cue       `json:"cue,omitempty"`
	Win      bool      `json:"win,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
}

type Outcome struct {
	Correct bool `json:"correct"`
	Stage   int  `json:"stage"`
}

type timerKind int

const (
	timerVS timerKind = iota
	timerGreeting
	timerSlash
	timerDefeat
	timerOverlay
	timerRun
	numTimers
)

type Options struct {
	Timings Timings
	// Shuffle permutes the two-choice options in place.
	Shuffle func([]string)
}

type Machine struct {
	timings Timings
	shuffle func([]string)

	game     *quest.Game
	notFound bool
	state    State

	options      []string
	input        string
	wrong        bool
	gameOver     bool
	wrongAnswers int
	attempts     int
	music        Music

	vs       bool
	greeting bool
	slash    bool
	defeat   bool
	attack   bool

	deadlines [numTimers]time.Time
	events    []Event
}

func New(opts Options) *Machine {
	if opts.Timings == (Timings{}) {
		opts.Timings = DefaultTimings
	}
	if opts.Shuffle == nil {
		opts.Shuffle = func(s []string) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		}
	}
	return &Machine{
		timings:  opts.Timings,
		shuffle:  opts.Shuffle,
		attempts: 1,
		music:    MusicNone,
	}
}

func (m *Machine) State() State      { return m.state }
func (m *Machine) WrongAnswers() int { return m.wrongAnswers }
func (m *Machine) Attempts() int     { return m.attempts }
func (m *Machine) GameOver() bool    { return m.gameOver }
func (m *Machine) NotFound() bool    { return m.notFound }

// StageIndex is the zero-based index of the current or just-defeated monster.
func (m *Machine) StageIndex() int { return m.state.Stage }

// Options returns the two-choice answers for the current battle, or nil when
// the stage takes free-text input.
func (m *Machine) Options() []string { return slices.Clone(m.options) }

// Load moves a freshly created machine to the greeting screen. A record that
// breaks the game invariants is refused with its *quest.ValidationError.
func (m *Machine) Load(g quest.Game) error {
	if m.state.Phase != PhaseInit || m.notFound {
		return ErrNotAccepting
	}
	if err := g.Validate(); err != nil {
		return err
	}
	m.game = &g
	m.setState(State{Phase: PhaseIntro})
	return nil
}

// LoadFailed marks the game as missing. Nothing else is accepted afterwards.
func (m *Machine) LoadFailed() {
	m.notFound = true
}

// Start leaves the greeting and faces the first monster.
func (m *Machine) Start(now time.Time) error {
	m.Advance(now)
	if m.game == nil {
		return ErrNotLoaded
	}
	if m.state.Phase != PhaseIntro {
		return ErrNotAccepting
	}

	m.clearTimers()
	m.attack = false
	m.music = MusicBattle
	m.enterBattle(0)

	m.vs = true
	m.greeting = true
	m.deadlines[timerVS] = now.Add(m.timings.VS)
	m.deadlines[timerGreeting] = now.Add(m.timings.IntroGreeting)
	return nil
}

// SetInput updates the free-text buffer.
func (m *Machine) SetInput(s string) error {
	if m.state.Phase != PhaseBattle {
		return ErrNotAccepting
	}
	m.input = s
	return nil
}

// Submit resolves an answer for the current monster. An empty answer falls
// back to the free-text buffer. Once a submission is being resolved further
// input is refused until the stage changes or the game restarts.
func (m *Machine) Submit(answer string, now time.Time) (Outcome, error) {
	m.Advance(now)
	if m.state.Phase != PhaseBattle || m.resolving() || m.wrong || m.gameOver {
		return Outcome{}, ErrNotAccepting
	}

	if answer == "" {
		answer = m.input
	}
	if strings.TrimSpace(answer) == "" {
		return Outcome{}, ErrEmptyAnswer
	}

	stage := m.state.Stage
	if quest.CheckAnswer(answer, m.game.Monsters[stage].Answer) {
		m.wrong = false
		m.slash = true
		m.emit(Event{Kind: EventCue, Cue: CueSlash})
		m.deadlines[timerSlash] = now.Add(m.timings.Slash)
		return Outcome{Correct: true, Stage: stage + 1}, nil
	}

	m.wrong = true
	m.wrongAnswers++
	m.attack = true
	m.emit(Event{Kind: EventCue, Cue: CueWrong})
	m.deadlines[timerOverlay] = now.Add(m.timings.Overlay)
	return Outcome{Correct: false, Stage: stage + 1}, nil
}

// Restart replays the same game from the greeting. It is available from the
// game-over overlay and from victory.
func (m *Machine) Restart(now time.Time) error {
	m.Advance(now)
	if !m.gameOver && m.state.Phase != PhaseVictory {
		return ErrNotAccepting
	}

	m.clearTimers()
	m.options = nil
	m.input = ""
	m.wrong = false
	m.gameOver = false
	m.wrongAnswers = 0
	m.vs, m.greeting, m.slash, m.defeat, m.attack = false, false, false, false, false
	m.attempts++
	m.music = MusicBattle
	m.setState(State{Phase: PhaseIntro, Stage: 0})
	return nil
}

// NextWake returns the earliest pending deadline.
func (m *Machine) NextWake() (time.Time, bool) {
	var next time.Time
	for _, d := range m.deadlines {
		if !d.IsZero() && (next.IsZero() || d.Before(next)) {
			next = d
		}
	}
	return next, !next.IsZero()
}

// Advance fires every deadline due at or before now, in order. A deadline may
// schedule the next one relative to its own due time, so a late call catches
// up through several transitions.
func (m *Machine) Advance(now time.Time) bool {
	advanced := false
	for {
		kind, at, ok := m.earliest()
		if !ok || at.After(now) {
			return advanced
		}
		m.deadlines[kind] = time.Time{}
		m.fire(kind, at)
		advanced = true
	}
}

// Drain returns and clears the events produced since the last call.
func (m *Machine) Drain() []Event {
	ev := m.events
	m.events = nil
	return ev
}

func (m *Machine) fire(kind timerKind, at time.Time) {
	switch kind {
	case timerVS:
		m.vs = false
	case timerGreeting:
		m.greeting = false
	case timerSlash:
		m.slash = false
		m.defeat = true
		m.deadlines[timerDefeat] = at.Add(m.timings.Defeat)
	case timerDefeat:
		m.defeat = false
		stage := m.state.Stage
		if stage < quest.MonsterCount-1 {
			m.setState(State{Phase: PhaseRun, Stage: stage})
			m.deadlines[timerRun] = at.Add(m.timings.Run)
			return
		}
		m.options = nil
		m.music = MusicVictory
		m.setState(State{Phase: PhaseVictory, Stage: stage})
		m.emit(Event{Kind: EventCue, Cue: CueVictory})
		m.emit(Event{Kind: EventCompleted, Win: true, Attempts: m.attempts})
	case timerOverlay:
		m.gameOver = true
		m.emit(Event{Kind: EventCompleted, Win: false, Attempts: m.attempts})
	case timerRun:
		m.input = ""
		m.enterBattle(m.state.Stage + 1)
		m.greeting = true
		m.deadlines[timerGreeting] = at.Add(m.timings.StageGreeting)
	}
}

func (m *Machine) enterBattle(stage int) {
	m.options = nil
	if mon := m.game.Monsters[stage]; mon.HasDecoy() {
		opts := []string{mon.Answer, mon.WrongAnswer}
		m.shuffle(opts)
		m.options = opts
	}
	m.setState(State{Phase: PhaseBattle, Stage: stage})
}

func (m *Machine) resolving() bool {
	return m.slash || m.defeat || !m.deadlines[timerSlash].IsZero() || !m.deadlines[timerDefeat].IsZero()
}

func (m *Machine) earliest() (timerKind, time.Time, bool) {
	var (
		kind  timerKind
		at    time.Time
		found bool
	)
	for k, d := range m.deadlines {
		if d.IsZero() {
			continue
		}
		if !found || d.Before(at) {
			kind, at, found = timerKind(k), d, true
		}
	}
	return kind, at, found
}

func (m *Machine) clearTimers() {
	m.deadlines = [numTimers]time.Time{}
}

func (m *Machine) setState(s State) {
	m.state = s
	m.emit(Event{Kind: EventState, State: s.String()})
}

func (m *Machine) emit(e Event) {
	m.events = append(m.events, e)
}
