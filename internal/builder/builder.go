// Package builder implements the five-step game creation wizard: each step
// gates advancement on a validity predicate over the accumulated draft, and
// the final commit persists the assembled game and exposes its share link.
package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayangquest/questapi/internal/quest"
)

type Step int

const (
	StepIdentity Step = iota + 1
	StepAvatars
	StepMonsters
	StepReward
	StepDone
)

var (
	ErrStepInvalid = errors.New("step is not complete")
	ErrWrongStep   = errors.New("action not available at this step")
	ErrSaveFailed  = errors.New("could not save game")
)

// StepError carries the field problems behind ErrStepInvalid.
type StepError struct {
	Step   Step
	Fields []quest.FieldError
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d is not complete", e.Step)
}

func (e *StepError) Unwrap() error { return ErrStepInvalid }

// Draft is the creator input accumulated across the wizard steps.
type Draft struct {
	CreatorName   string              `json:"creatorName"`
	PlayerName    string              `json:"playerName"`
	OpeningText   string              `json:"openingText"`
	PlayerAvatar  string              `json:"playerAvatar"`
	CreatorAvatar string              `json:"creatorAvatar"`
	CharacterType quest.CharacterType `json:"characterType"`
	Monsters      []quest.Monster     `json:"monsters"`
	Reward        quest.Reward        `json:"reward"`
}

// NewDraft returns the blank draft the wizard starts from.
func NewDraft() Draft {
	return Draft{
		CharacterType: quest.CharacterFemale,
		Monsters:      quest.EmptyMonsters(),
		Reward:        quest.Reward{Type: quest.RewardText},
	}
}

// Saver persists a finished game.
type Saver interface {
	CreateGame(ctx context.Context, g quest.Game) error
}

// Linker builds the shareable play link for a game id.
type Linker struct {
	Origin   string
	PlayPath string
}

func (l Linker) Link(gameID string) string {
	return strings.TrimRight(l.Origin, "/") + "/" + strings.Trim(l.PlayPath, "/") + "/" + gameID
}

// Committer holds the collaborators the final step needs.
type Committer struct {
	Store  Saver
	NewID  func() string
	Now    func() time.Time
	Linker Linker
}

type Result struct {
	Game quest.Game `json:"game"`
	Link string     `json:"link"`
}

// Wizard is the per-creator wizard state. It is not safe for concurrent use;
// callers serialize access.
type Wizard struct {
	step   Step
	draft  Draft
	result *Result
}

func NewWizard() *Wizard {
	return &Wizard{step: StepIdentity, draft: NewDraft()}
}

func (w *Wizard) Step() Step { return w.step }

func (w *Wizard) Draft() Draft { return w.draft }

func (w *Wizard) Result() *Result { return w.result }

// CanAdvance reports whether the current step's predicate holds.
func (w *Wizard) CanAdvance() bool {
	return w.step < StepDone && len(checkStep(w.step, w.draft)) == 0
}

// StepErrors lists the field problems of the current step.
func (w *Wizard) StepErrors() []quest.FieldError {
	return checkStep(w.step, w.draft)
}

// Next moves from the identity, avatar or monster step to the following step. The reward step is left
// only through Commit.
func (w *Wizard) Next() error {
	if w.step >= StepReward {
		return ErrWrongStep
	}
	if fields := checkStep(w.step, w.draft); len(fields) > 0 {
		return &StepError{Step: w.step, Fields: fields}
	}
	w.step++
	return nil
}

func (w *Wizard) Back() error {
	if w.step <= StepIdentity || w.step == StepDone {
		return ErrWrongStep
	}
	w.step--
	return nil
}

func (w *Wizard) editable() error {
	if w.step == StepDone {
		return ErrWrongStep
	}
	return nil
}

func (w *Wizard) SetIdentity(creatorName, playerName, openingText string) error {
	if err := w.editable(); err != nil {
		return err
	}
	w.draft.CreatorName = creatorName
	w.draft.PlayerName = playerName
	w.draft.OpeningText = openingText
	return nil
}

func (w *Wizard) SetPlayerAvatar(ref string) error {
	if err := w.editable(); err != nil {
		return err
	}
	w.draft.PlayerAvatar = ref
	return nil
}

func (w *Wizard) SetCreatorAvatar(ref string) error {
	if err := w.editable(); err != nil {
		return err
	}
	w.draft.CreatorAvatar = ref
	return nil
}

func (w *Wizard) SetCharacter(c quest.CharacterType) error {
	if err := w.editable(); err != nil {
		return err
	}
	if c == "" || !c.Valid() {
		return &StepError{Step: StepAvatars, Fields: []quest.FieldError{
			{Field: "characterType", Message: "must be one of: female male"},
		}}
	}
	w.draft.CharacterType = c
	return nil
}

// ToggleCharacter flips between the two sprite sets.
func (w *Wizard) ToggleCharacter() error {
	if w.draft.CharacterType == quest.CharacterMale {
		return w.SetCharacter(quest.CharacterFemale)
	}
	return w.SetCharacter(quest.CharacterMale)
}

// SetMonster fills the i-th (zero-based) monster.
func (w *Wizard) SetMonster(i int, question, answer, wrongAnswer string) error {
	if err := w.editable(); err != nil {
		return err
	}
	if i < 0 || i >= quest.MonsterCount {
		return fmt.Errorf("monster index %d out of range", i)
	}
	w.draft.Monsters[i] = quest.Monster{
		ID:          i + 1,
		Question:    question,
		Answer:      answer,
		WrongAnswer: wrongAnswer,
	}
	return nil
}

// SetRewardType switches the reward kind. Switching to a different kind
// discards the previous value.
func (w *Wizard) SetRewardType(t quest.RewardType) error {
	if err := w.editable(); err != nil {
		return err
	}
	if t != quest.RewardText && t != quest.RewardImage {
		return &StepError{Step: StepReward, Fields: []quest.FieldError{
			{Field: "type", Message: "must be one of: text image"},
		}}
	}
	if t != w.draft.Reward.Type {
		w.draft.Reward = quest.Reward{Type: t}
	}
	return nil
}

func (w *Wizard) SetRewardValue(v string) error {
	if err := w.editable(); err != nil {
		return err
	}
	w.draft.Reward.Value = v
	return nil
}

// Commit assembles the game, stores it and advances to the final step. On
// failure the wizard stays on the reward step.
func (w *Wizard) Commit(ctx context.Context, c Committer) (Result, error) {
	if w.step != StepReward {
		return Result{}, ErrWrongStep
	}
	if err := ValidateDraft(w.draft); err != nil {
		return Result{}, err
	}

	g := Assemble(w.draft, c.NewID(), c.Now())
	if err := c.Store.CreateGame(ctx, g); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	res := Result{Game: g, Link: c.Linker.Link(g.ID)}
	w.result = &res
	w.step = StepDone
	return res, nil
}

// Reset discards all input and returns to the first step.
func (w *Wizard) Reset() {
	w.step = StepIdentity
	w.draft = NewDraft()
	w.result = nil
}

// ValidateDraft checks every step's predicate, reporting the first failing step.
func ValidateDraft(d Draft) error {
	for s := StepIdentity; s <= StepReward; s++ {
		if fields := checkStep(s, d); len(fields) > 0 {
			return &StepError{Step: s, Fields: fields}
		}
	}
	return nil
}

// Assemble builds the immutable game record from a complete draft.
func Assemble(d Draft, id string, now time.Time) quest.Game {
	var creatorAvatar *string
	if d.CreatorAvatar != "" {
		ca := d.CreatorAvatar
		creatorAvatar = &ca
	}

	monsters := make([]quest.Monster, len(d.Monsters))
	for i, m := range d.Monsters {
		m.ID = i + 1
		monsters[i] = m
	}

	return quest.Game{
		ID:            id,
		CreatorName:   d.CreatorName,
		PlayerName:    d.PlayerName,
		OpeningText:   d.OpeningText,
		PlayerAvatar:  d.PlayerAvatar,
		CreatorAvatar: creatorAvatar,
		CharacterType: d.CharacterType.OrDefault(),
		Monsters:      monsters,
		Reward:        d.Reward,
		CreatedAt:     now.UnixMilli(),
	}
}
