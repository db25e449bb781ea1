package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ayangquest/questapi/internal/quest"
)

// DemoGameID is the fixed id of the seeded sample adventure.
const DemoGameID = "demo"

// DemoGame is a sample adventure. Its last stage has no decoy, so it is
// answered with free text.
func DemoGame(now time.Time) quest.Game {
	return quest.Game{
		ID:            DemoGameID,
		CreatorName:   "Raka",
		PlayerName:    "Ayang",
		OpeningText:   "Five monsters guard the way. Answer them right and a surprise waits at the end.",
		PlayerAvatar:  "/assets/avatars/player-default.png",
		CharacterType: quest.CharacterFemale,
		Monsters: []quest.Monster{
			{ID: 1, Question: "Where did we first meet?", Answer: "Bandung", WrongAnswer: "Jakarta"},
			{ID: 2, Question: "What is my favourite food?", Answer: "Nasi goreng", WrongAnswer: "Sate"},
			{ID: 3, Question: "Which month is our anniversary?", Answer: "March", WrongAnswer: "July"},
			{ID: 4, Question: "Coffee or tea?", Answer: "Tea", WrongAnswer: "Coffee"},
			{ID: 5, Question: "What do I always call you?", Answer: "Ayang"},
		},
		Reward:    quest.Reward{Type: quest.RewardText, Value: "Dinner is on me this Friday."},
		CreatedAt: now.UnixMilli(),
	}
}

// SeedDemo stores the demo game. Idempotent: an existing demo is left as is.
func SeedDemo(ctx context.Context, logger *slog.Logger, store GameStore) error {
	err := store.CreateGame(ctx, DemoGame(time.Now()))
	if errors.Is(err, ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("demo game seeded", "game_id", DemoGameID)
	return nil
}
