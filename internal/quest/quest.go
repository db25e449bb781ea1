// Package quest defines the core domain types of a quiz adventure.
// It has no dependencies outside the standard library.
package quest

import (
	"fmt"
	"strings"
)

// MonsterCount is the fixed number of battle stages in every game.
const MonsterCount = 5

type CharacterType string

const (
	CharacterFemale CharacterType = "female"
	CharacterMale   CharacterType = "male"
)

// Valid reports whether c is a known sprite set. The empty value is accepted
// because legacy records predate the field; they render as female.
func (c CharacterType) Valid() bool {
	return c == "" || c == CharacterFemale || c == CharacterMale
}

// OrDefault maps the legacy empty value to CharacterFemale.
func (c CharacterType) OrDefault() CharacterType {
	if c == "" {
		return CharacterFemale
	}
	return c
}

type RewardType string

const (
	RewardText  RewardType = "text"
	RewardImage RewardType = "image"
)

type Reward struct {
	Type  RewardType `json:"type"`
	Value string     `json:"value"`
}

type Monster struct {
	ID          int    `json:"id"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	WrongAnswer string `json:"wrongAnswer,omitempty"`
}

// HasDecoy reports whether the stage is played as a two-choice question.
func (m Monster) HasDecoy() bool {
	return m.WrongAnswer != ""
}

// Game is immutable once created. Re-creating a game yields a new ID.
type Game struct {
	ID            string        `json:"id"`
	CreatorName   string        `json:"creatorName"`
	PlayerName    string        `json:"playerName"`
	OpeningText   string        `json:"openingText"`
	PlayerAvatar  string        `json:"playerAvatar"`
	CreatorAvatar *string       `json:"creatorAvatar"`
	CharacterType CharacterType `json:"characterType"`
	Monsters      []Monster     `json:"monsters"`
	Reward        Reward        `json:"reward"`
	CreatedAt     int64         `json:"createdAt"`
}

// FieldError names a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid game: " + strings.Join(parts, "; ")
}

// Validate checks the invariants every stored game must satisfy.
func (g Game) Validate() error {
	var errs []FieldError
	add := func(field, msg string) {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}

	if g.CreatorName == "" {
		add("creatorName", "is required")
	}
	if g.PlayerName == "" {
		add("playerName", "is required")
	}
	if g.OpeningText == "" {
		add("openingText", "is required")
	}
	if g.PlayerAvatar == "" {
		add("playerAvatar", "is required")
	}
	if !g.CharacterType.Valid() {
		add("characterType", "must be female or male")
	}
	if len(g.Monsters) != MonsterCount {
		add("monsters", fmt.Sprintf("must have exactly %d entries", MonsterCount))
	}
	for i, m := range g.Monsters {
		if m.ID != i+1 {
			add(fmt.Sprintf("monsters[%d].id", i), fmt.Sprintf("must be %d", i+1))
		}
		if m.Question == "" {
			add(fmt.Sprintf("monsters[%d].question", i), "is required")
		}
		if m.Answer == "" {
			add(fmt.Sprintf("monsters[%d].answer", i), "is required")
		}
	}
	if g.Reward.Type != RewardText && g.Reward.Type != RewardImage {
		add("reward.type", "must be text or image")
	}
	if g.Reward.Value == "" {
		add("reward.value", "is required")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// EmptyMonsters returns MonsterCount blank monsters numbered from 1.
func EmptyMonsters() []Monster {
	ms := make([]Monster, MonsterCount)
	for i := range ms {
		ms[i].ID = i + 1
	}
	return ms
}

// NormalizeAnswer lower-cases and trims surrounding whitespace. Nothing else
// is folded: accents and punctuation are significant.
func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func CheckAnswer(submitted, correct string) bool {
	return NormalizeAnswer(submitted) == NormalizeAnswer(correct)
}
