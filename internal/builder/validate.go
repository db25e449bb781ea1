package builder

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ayangquest/questapi/internal/quest"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Per-step views of a draft. Only the fields a step owns are checked.

type identityFields struct {
	CreatorName string `json:"creatorName" validate:"required"`
	PlayerName  string `json:"playerName" validate:"required"`
	OpeningText string `json:"openingText" validate:"required"`
}

type avatarFields struct {
	PlayerAvatar  string `json:"playerAvatar" validate:"required"`
	CharacterType string `json:"characterType" validate:"oneof=female male"`
}

type monsterFields struct {
	Question    string `json:"question" validate:"required"`
	Answer      string `json:"answer" validate:"required"`
	WrongAnswer string `json:"wrongAnswer" validate:"required"`
}

type monstersFields struct {
	Monsters []monsterFields `json:"monsters" validate:"len=5,dive"`
}

type rewardFields struct {
	Type  string `json:"type" validate:"oneof=text image"`
	Value string `json:"value" validate:"required"`
}

func stepView(s Step, d Draft) any {
	switch s {
	case StepIdentity:
		return identityFields{
			CreatorName: d.CreatorName,
			PlayerName:  d.PlayerName,
			OpeningText: d.OpeningText,
		}
	case StepAvatars:
		return avatarFields{
			PlayerAvatar:  d.PlayerAvatar,
			CharacterType: string(d.CharacterType),
		}
	case StepMonsters:
		ms := make([]monsterFields, len(d.Monsters))
		for i, m := range d.Monsters {
			ms[i] = monsterFields{Question: m.Question, Answer: m.Answer, WrongAnswer: m.WrongAnswer}
		}
		return monstersFields{Monsters: ms}
	case StepReward:
		return rewardFields{Type: string(d.Reward.Type), Value: d.Reward.Value}
	}
	return nil
}

// checkStep returns the field problems that keep step s from being valid.
func checkStep(s Step, d Draft) []quest.FieldError {
	view := stepView(s, d)
	if view == nil {
		return nil
	}
	return formatErrors(validate.Struct(view))
}

func formatErrors(err error) []quest.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			return []quest.FieldError{{Field: "draft", Message: err.Error()}}
		}
		return nil
	}

	out := make([]quest.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}

		var msg string
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "oneof":
			msg = "must be one of: " + fe.Param()
		case "len":
			msg = "must have exactly " + fe.Param() + " entries"
		default:
			msg = "is invalid"
		}
		out = append(out, quest.FieldError{Field: field, Message: msg})
	}
	return out
}
