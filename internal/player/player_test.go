package player

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/ayangquest/questapi/internal/quest"
)

var t0 = time.Date(2026, 2, 14, 19, 0, 0, 0, time.UTC)

func testGame() quest.Game {
	ms := quest.EmptyMonsters()
	for i := range ms {
		ms[i].Question = "Question"
		ms[i].Answer = "Right"
		ms[i].WrongAnswer = "Wrong"
	}
	return quest.Game{
		ID:           "g1",
		CreatorName:  "Raka",
		PlayerName:   "Dinda",
		OpeningText:  "Hai",
		PlayerAvatar: "data:image/jpeg;base64,AAAA",
		Monsters:     ms,
		Reward:       quest.Reward{Type: quest.RewardText, Value: "Dinner"},
	}
}

func noShuffle([]string) {}

func started(t *testing.T, g quest.Game) *Machine {
	t.Helper()
	m := New(Options{Shuffle: noShuffle})
	if err := m.Load(g); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Start(t0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return m
}

func TestStartEntersFirstBattle(t *testing.T) {
	m := New(Options{Shuffle: noShuffle})
	if got := m.State().String(); got != "INIT" {
		t.Fatalf("state = %s, want INIT", got)
	}
	if err := m.Load(testGame()); err != nil {
		t.Fatal(err)
	}
	if got := m.State().String(); got != "INTRO" {
		t.Fatalf("state = %s, want INTRO", got)
	}
	if err := m.Start(t0); err != nil {
		t.Fatal(err)
	}
	if got := m.State().String(); got != "BATTLE_1" {
		t.Errorf("state = %s, want BATTLE_1", got)
	}
	if m.StageIndex() != 0 || m.WrongAnswers() != 0 || m.Attempts() != 1 {
		t.Errorf("stage=%d wrong=%d attempts=%d", m.StageIndex(), m.WrongAnswers(), m.Attempts())
	}

	next, ok := m.NextWake()
	if !ok || !next.Equal(t0.Add(DefaultTimings.VS)) {
		t.Errorf("next wake = %v %v, want VS deadline", next, ok)
	}
	snap := m.Snapshot()
	if !snap.Flags.VS || !snap.Flags.Greeting || snap.Music != MusicBattle {
		t.Errorf("snapshot flags = %+v music = %s", snap.Flags, snap.Music)
	}
}

func TestFullPlaythrough(t *testing.T) {
	m := started(t, testGame())
	m.Drain()

	resolve := DefaultTimings.Slash + DefaultTimings.Defeat
	now := t0
	var seen []string
	for k := range quest.MonsterCount {
		seen = append(seen, m.State().String())

		out, err := m.Submit("  right ", now)
		if err != nil {
			t.Fatalf("stage %d: %v", k+1, err)
		}
		if !out.Correct || out.Stage != k+1 {
			t.Fatalf("stage %d outcome = %+v", k+1, out)
		}

		now = now.Add(resolve - time.Millisecond)
		m.Advance(now)
		if m.State().Phase != PhaseBattle {
			t.Fatalf("stage %d left battle before the success delay", k+1)
		}

		now = now.Add(time.Millisecond)
		m.Advance(now)
		if k == quest.MonsterCount-1 {
			break
		}
		seen = append(seen, m.State().String())

		now = now.Add(DefaultTimings.Run)
		m.Advance(now)
	}
	seen = append(seen, m.State().String())

	want := []string{
		"BATTLE_1", "RUN_1", "BATTLE_2", "RUN_2", "BATTLE_3", "RUN_3",
		"BATTLE_4", "RUN_4", "BATTLE_5", "VICTORY",
	}
	if !slices.Equal(seen, want) {
		t.Fatalf("sequence = %v\nwant %v", seen, want)
	}

	var completed []Event
	for _, e := range m.Drain() {
		if e.Kind == EventCompleted {
			completed = append(completed, e)
		}
	}
	if len(completed) != 1 || !completed[0].Win || completed[0].Attempts != 1 {
		t.Errorf("completed events = %+v", completed)
	}

	snap := m.Snapshot()
	if snap.Reward == nil || snap.Reward.Value != "Dinner" {
		t.Errorf("victory snapshot reward = %+v", snap.Reward)
	}
	if snap.Music != MusicVictory || snap.Stage != quest.MonsterCount {
		t.Errorf("victory snapshot = %+v", snap)
	}
}

func TestWrongAnswerShowsGameOver(t *testing.T) {
	m := started(t, testGame())

	out, err := m.Submit("wrong", t0)
	if err != nil {
		t.Fatal(err)
	}
	if out.Correct {
		t.Fatal("decoy accepted as correct")
	}
	if m.WrongAnswers() != 1 {
		t.Errorf("wrong answers = %d, want 1", m.WrongAnswers())
	}
	if _, err := m.Submit("right", t0.Add(100*time.Millisecond)); !errors.Is(err, ErrNotAccepting) {
		t.Errorf("submit during wrong feedback = %v, want ErrNotAccepting", err)
	}
	if m.GameOver() {
		t.Fatal("overlay shown before delay")
	}

	m.Advance(t0.Add(DefaultTimings.Overlay))
	if !m.GameOver() {
		t.Fatal("overlay not shown after delay")
	}
	if got := m.State().String(); got != "BATTLE_1" {
		t.Errorf("state = %s, want BATTLE_1", got)
	}

	var lost bool
	for _, e := range m.Drain() {
		if e.Kind == EventCompleted && !e.Win && e.Attempts == 1 {
			lost = true
		}
	}
	if !lost {
		t.Error("missing completed(win=false) event")
	}
}

func TestRestart(t *testing.T) {
	m := started(t, testGame())

	if err := m.Restart(t0); !errors.Is(err, ErrNotAccepting) {
		t.Fatalf("restart mid-battle = %v, want ErrNotAccepting", err)
	}

	_, _ = m.Submit("right", t0)
	now := t0.Add(10 * time.Second)
	m.Advance(now)
	_, _ = m.Submit("nope", now)
	now = now.Add(time.Second)

	if err := m.Restart(now); err != nil {
		t.Fatal(err)
	}
	if got := m.State().String(); got != "INTRO" {
		t.Errorf("state = %s, want INTRO", got)
	}
	if m.StageIndex() != 0 || m.WrongAnswers() != 0 || m.GameOver() || m.Attempts() != 2 {
		t.Errorf("after restart stage=%d wrong=%d over=%v attempts=%d",
			m.StageIndex(), m.WrongAnswers(), m.GameOver(), m.Attempts())
	}
	if _, ok := m.NextWake(); ok {
		t.Error("timers survived restart")
	}

	if err := m.Start(now); err != nil {
		t.Fatal(err)
	}
	if got := m.State().String(); got != "BATTLE_1" {
		t.Errorf("state = %s, want BATTLE_1", got)
	}
}

func TestSubmitRejectedWhileResolving(t *testing.T) {
	m := started(t, testGame())

	if _, err := m.Submit("right", t0); err != nil {
		t.Fatal(err)
	}
	for _, d := range []time.Duration{0, 200 * time.Millisecond, time.Second} {
		if _, err := m.Submit("right", t0.Add(d)); !errors.Is(err, ErrNotAccepting) {
			t.Errorf("submit at +%v = %v, want ErrNotAccepting", d, err)
		}
	}

	m.Advance(t0.Add(2 * time.Second))
	if m.State().Phase != PhaseRun {
		t.Fatalf("state = %s, want RUN_1", m.State())
	}
	if _, err := m.Submit("right", t0.Add(2*time.Second)); !errors.Is(err, ErrNotAccepting) {
		t.Errorf("submit during run = %v, want ErrNotAccepting", err)
	}
}

func TestLateAdvanceCatchesUp(t *testing.T) {
	m := started(t, testGame())
	if _, err := m.Submit("right", t0); err != nil {
		t.Fatal(err)
	}

	m.Advance(t0.Add(time.Minute))
	if got := m.State().String(); got != "BATTLE_2" {
		t.Errorf("state = %s, want BATTLE_2", got)
	}
	if _, ok := m.NextWake(); ok {
		t.Error("deadlines left after catching up")
	}
}

func TestOptionsAreAnswerAndDecoy(t *testing.T) {
	for range 20 {
		m := New(Options{})
		if err := m.Load(testGame()); err != nil {
			t.Fatal(err)
		}
		if err := m.Start(t0); err != nil {
			t.Fatal(err)
		}
		opts := m.Options()
		slices.Sort(opts)
		if !slices.Equal(opts, []string{"Right", "Wrong"}) {
			t.Fatalf("options = %v", opts)
		}
	}
}

func TestFreeTextStage(t *testing.T) {
	g := testGame()
	g.Monsters[0].WrongAnswer = ""
	m := started(t, g)

	if m.Options() != nil {
		t.Fatalf("options = %v, want nil", m.Options())
	}
	snap := m.Snapshot()
	if snap.Battle == nil || snap.Battle.Mode != InputText {
		t.Fatalf("battle view = %+v", snap.Battle)
	}

	if _, err := m.Submit("", t0); !errors.Is(err, ErrEmptyAnswer) {
		t.Errorf("blank submit = %v, want ErrEmptyAnswer", err)
	}
	if err := m.SetInput("RIGHT"); err != nil {
		t.Fatal(err)
	}
	out, err := m.Submit("", t0)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Correct {
		t.Error("buffered answer not accepted")
	}
}

func TestLoadRejectsBrokenGame(t *testing.T) {
	g := testGame()
	g.Monsters = g.Monsters[:1]

	m := New(Options{Shuffle: noShuffle})
	err := m.Load(g)
	var ve *quest.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Load = %v, want a validation error", err)
	}
	if m.State().Phase != PhaseInit {
		t.Errorf("phase = %s, want init", m.State().Phase)
	}
	if err := m.Start(t0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Start = %v, want ErrNotLoaded", err)
	}
	m.Advance(t0.Add(time.Minute))
}

func TestNotFound(t *testing.T) {
	m := New(Options{})
	m.LoadFailed()

	if err := m.Start(t0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Start = %v, want ErrNotLoaded", err)
	}
	if err := m.Load(testGame()); !errors.Is(err, ErrNotAccepting) {
		t.Errorf("Load after failure = %v, want ErrNotAccepting", err)
	}
	if !m.Snapshot().NotFound {
		t.Error("snapshot should report not found")
	}
}

func TestRosterAndBackgrounds(t *testing.T) {
	wantBG := []string{"/sprites/bg1.jpg", "/sprites/bg1.jpg", "/sprites/bg2.jpg", "/sprites/bg2.jpg", "/sprites/bg3.jpg"}
	for i, want := range wantBG {
		if got := Background(i); got != want {
			t.Errorf("Background(%d) = %s, want %s", i, got, want)
		}
		if Roster(i).Name == "" {
			t.Errorf("Roster(%d) is empty", i)
		}
	}
	if Roster(4).Name != "Mpruy" {
		t.Errorf("final boss = %q", Roster(4).Name)
	}
	if Knight("").Stand != Knight(quest.CharacterFemale).Stand {
		t.Error("legacy character type should use the female sprites")
	}
	if Knight(quest.CharacterMale).Stand == Knight(quest.CharacterFemale).Stand {
		t.Error("male and female sprites should differ")
	}
}
