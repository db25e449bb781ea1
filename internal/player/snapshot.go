package player

import "github.com/ayangquest/questapi/internal/quest"

// InputMode tells the client how the current stage is answered.
type InputMode string

const (
	InputChoice InputMode = "choice"
	InputText   InputMode = "text"
)

type Flags struct {
	VS       bool `json:"vs"`
	Greeting bool `json:"greeting"`
	Slash    bool `json:"slash"`
	Defeat   bool `json:"defeat"`
	Attack   bool `json:"attack"`
	Wrong    bool `json:"wrong"`
	GameOver bool `json:"gameOver"`
}

type IntroView struct {
	CreatorName   string  `json:"creatorName"`
	PlayerName    string  `json:"playerName"`
	OpeningText   string  `json:"openingText"`
	PlayerAvatar  string  `json:"playerAvatar"`
	CreatorAvatar *string `json:"creatorAvatar"`
}

type BattleView struct {
	Monster  RosterEntry `json:"monster"`
	Question string      `json:"question"`
	Mode     InputMode   `json:"mode"`
	Options  []string    `json:"options,omitempty"`
	Input    string      `json:"input,omitempty"`
}

// Snapshot is the serializable view of a machine, the unit pushed to clients.
type Snapshot struct {
	State        string         `json:"state"`
	Phase        string         `json:"phase"`
	Stage        int            `json:"stage"`
	NotFound     bool           `json:"notFound,omitempty"`
	Background   string         `json:"background,omitempty"`
	Knight       *KnightSprites `json:"knight,omitempty"`
	Music        Music          `json:"music"`
	Flags        Flags          `json:"flags"`
	WrongAnswers int            `json:"wrongAnswers"`
	Attempts     int            `json:"attempts"`
	Intro        *IntroView     `json:"intro,omitempty"`
	Battle       *BattleView    `json:"battle,omitempty"`
	Reward       *quest.Reward  `json:"reward,omitempty"`
}

// Snapshot renders the current state. Stage is the 1-based display number.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:        m.state.String(),
		Phase:        m.state.Phase.String(),
		NotFound:     m.notFound,
		Music:        m.music,
		WrongAnswers: m.wrongAnswers,
		Attempts:     m.attempts,
		Flags: Flags{
			VS:       m.vs,
			Greeting: m.greeting,
			Slash:    m.slash,
			Defeat:   m.defeat,
			Attack:   m.attack,
			Wrong:    m.wrong,
			GameOver: m.gameOver,
		},
	}
	if m.game == nil {
		return s
	}

	k := Knight(m.game.CharacterType)
	s.Knight = &k

	switch m.state.Phase {
	case PhaseIntro:
		s.Intro = &IntroView{
			CreatorName:   m.game.CreatorName,
			PlayerName:    m.game.PlayerName,
			OpeningText:   m.game.OpeningText,
			PlayerAvatar:  m.game.PlayerAvatar,
			CreatorAvatar: m.game.CreatorAvatar,
		}
	case PhaseBattle:
		stage := m.state.Stage
		s.Stage = stage + 1
		s.Background = Background(stage)
		b := &BattleView{
			Monster:  Roster(stage),
			Question: m.game.Monsters[stage].Question,
			Mode:     InputText,
			Input:    m.input,
		}
		if len(m.options) > 0 {
			b.Mode = InputChoice
			b.Options = m.Options()
		}
		s.Battle = b
	case PhaseRun:
		s.Stage = m.state.Stage + 1
		s.Background = Background(m.state.Stage + 1)
	case PhaseVictory:
		s.Stage = quest.MonsterCount
		s.Background = Background(m.state.Stage)
		r := m.game.Reward
		s.Reward = &r
	}
	return s
}

// Game returns the loaded game, if any.
func (m *Machine) Game() (quest.Game, bool) {
	if m.game == nil {
		return quest.Game{}, false
	}
	return *m.game, true
}
