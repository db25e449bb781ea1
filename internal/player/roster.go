package player

import "github.com/ayangquest/questapi/internal/quest"

// RosterEntry is the fixed identity of the monster guarding a stage. It does
// not depend on the creator's questions.
type RosterEntry struct {
	Name     string `json:"name"`
	Sprite   string `json:"sprite"`
	Greeting string `json:"greeting"`
}

var roster = [quest.MonsterCount]RosterEntry{
	{Name: "Naga Api", Sprite: "/sprites/dragon.png", Greeting: "Halo Maniezz! 👋"},
	{Name: "Mantan", Sprite: "/sprites/ghost.png", Greeting: "Eh kamu... apa kabar? 🥺"},
	{Name: "Serigala Malam", Sprite: "/sprites/wolf.png", Greeting: "Aing Maung! 🐯"},
	{Name: "Banaspati", Sprite: "/sprites/skull.png", Greeting: "Sudah malam... atau ah sudahlah 🌑"},
	{Name: "Mpruy", Sprite: "/sprites/finalboss.png", Greeting: "Eh you nonton bigmo juga? #izin"},
}

// Roster returns the monster identity for a zero-based stage index.
func Roster(stage int) RosterEntry {
	if stage < 0 || stage >= len(roster) {
		return RosterEntry{}
	}
	return roster[stage]
}

// Background partitions the stages into three visual zones: stages 0 and 1, stages 2 and 3, then stage 4.
func Background(stage int) string {
	switch {
	case stage <= 1:
		return "/sprites/bg1.jpg"
	case stage <= 3:
		return "/sprites/bg2.jpg"
	default:
		return "/sprites/bg3.jpg"
	}
}

type KnightSprites struct {
	Stand string `json:"stand"`
	Run   string `json:"run"`
}

// Knight selects the hero sprite set. Legacy games without a character type
// use the female set.
func Knight(c quest.CharacterType) KnightSprites {
	if c == quest.CharacterMale {
		return KnightSprites{Stand: "/sprites/Knight-boy.png", Run: "/sprites/Knight-boy-run.png"}
	}
	return KnightSprites{Stand: "/sprites/knight.png", Run: "/sprites/knight-run.png"}
}
