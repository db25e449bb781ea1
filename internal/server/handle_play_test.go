package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ayangquest/questapi/internal/analytics"
	"github.com/ayangquest/questapi/internal/player"
)

func startPlay(t *testing.T, e *testEnv, gameID string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/play/"+gameID+"/sessions", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[PlayResponse](t, w)
	if resp.Snapshot.State != "INTRO" {
		t.Fatalf("new session state = %q, want INTRO", resp.Snapshot.State)
	}
	if resp.Snapshot.Intro == nil || resp.Snapshot.Intro.PlayerName != "Ayang" {
		t.Fatalf("intro view missing: %+v", resp.Snapshot.Intro)
	}
	return resp.SessionID
}

// waitFor polls the session until cond holds or a second passes.
func waitFor(t *testing.T, e *testEnv, path string, cond func(player.Snapshot) bool) player.Snapshot {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		w := e.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get state: expected 200, got %d", w.Code)
		}
		snap := decode[PlayResponse](t, w).Snapshot
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached, last state %s", snap.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func inState(want string) func(player.Snapshot) bool {
	return func(s player.Snapshot) bool { return s.State == want }
}

func answer(t *testing.T, e *testEnv, path, text string) PlayResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, path+"/answer", AnswerRequest{Answer: text})
	if w.Code != http.StatusOK {
		t.Fatalf("answer %q: expected 200, got %d: %s", text, w.Code, w.Body.String())
	}
	return decode[PlayResponse](t, w)
}

func TestPlayThroughToVictory(t *testing.T) {
	e := newTestEnv(t)
	sid := startPlay(t, e, DemoGameID)
	path := "/api/play/demo/sessions/" + sid

	w := e.do(t, http.MethodGet, path+"/victory-card.png", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("card before victory: expected 409, got %d", w.Code)
	}

	w = e.do(t, http.MethodPost, path+"/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	snap := decode[PlayResponse](t, w).Snapshot
	if snap.State != "BATTLE_1" || snap.Music != player.MusicBattle {
		t.Fatalf("after start: %s music %s", snap.State, snap.Music)
	}
	if snap.Battle == nil || !slices.Equal(snap.Battle.Options, []string{"Bandung", "Jakarta"}) {
		t.Fatalf("battle options = %+v", snap.Battle)
	}

	answers := []string{"Bandung", "nasi goreng", "March", "Tea"}
	for i, a := range answers {
		resp := answer(t, e, path, a)
		if resp.Outcome == nil || !resp.Outcome.Correct || resp.Outcome.Stage != i+1 {
			t.Fatalf("stage %d outcome = %+v", i+1, resp.Outcome)
		}
		waitFor(t, e, path, inState(fmt.Sprintf("BATTLE_%d", i+2)))
	}

	// The last stage has no decoy and takes free text from the input buffer.
	snap = waitFor(t, e, path, inState("BATTLE_5"))
	if snap.Battle.Mode != player.InputText {
		t.Fatalf("stage 5 mode = %q, want text", snap.Battle.Mode)
	}
	if w := e.do(t, http.MethodPut, path+"/input", InputRequest{Input: "  ayang "}); w.Code != http.StatusOK {
		t.Fatalf("input: expected 200, got %d", w.Code)
	}
	answer(t, e, path, "")

	snap = waitFor(t, e, path, inState("VICTORY"))
	if snap.Reward == nil || snap.Reward.Value != "Dinner is on me this Friday." {
		t.Errorf("victory reward = %+v", snap.Reward)
	}
	if snap.Music != player.MusicVictory {
		t.Errorf("music = %q, want victory", snap.Music)
	}

	w = e.do(t, http.MethodGet, path+"/victory-card.png?download=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("card: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("content-disposition = %q", cd)
	}

	kinds := e.sink.kinds()
	for _, want := range []analytics.Kind{analytics.KindGamePlayed, analytics.KindGameCompleted} {
		if !slices.Contains(kinds, want) {
			t.Errorf("expected %s event, got %v", want, kinds)
		}
	}
}

func TestPlayWrongAnswerAndRestart(t *testing.T) {
	e := newTestEnv(t)
	sid := startPlay(t, e, DemoGameID)
	path := "/api/play/demo/sessions/" + sid

	e.do(t, http.MethodPost, path+"/start", nil)

	resp := answer(t, e, path, "Jakarta")
	if resp.Outcome == nil || resp.Outcome.Correct {
		t.Fatalf("outcome = %+v, want incorrect", resp.Outcome)
	}
	if !resp.Snapshot.Flags.Attack || resp.Snapshot.WrongAnswers != 1 {
		t.Errorf("flags after wrong answer: %+v", resp.Snapshot)
	}

	// Further answers are refused while the wrong answer resolves.
	w := e.do(t, http.MethodPost, path+"/answer", AnswerRequest{Answer: "Bandung"})
	if w.Code != http.StatusConflict {
		t.Errorf("answer while wrong: expected 409, got %d", w.Code)
	}

	snap := waitFor(t, e, path, func(s player.Snapshot) bool { return s.Flags.GameOver })
	if snap.State != "BATTLE_1" {
		t.Errorf("game over should stay on the battle, got %s", snap.State)
	}

	w = e.do(t, http.MethodPost, path+"/restart", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restart: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	snap = decode[PlayResponse](t, w).Snapshot
	if snap.State != "INTRO" || snap.Attempts != 2 || snap.Flags.GameOver {
		t.Errorf("after restart: %+v", snap)
	}
}

func TestPlayRejectsEmptyAnswer(t *testing.T) {
	e := newTestEnv(t)
	sid := startPlay(t, e, DemoGameID)
	path := "/api/play/demo/sessions/" + sid
	e.do(t, http.MethodPost, path+"/start", nil)

	w := e.do(t, http.MethodPost, path+"/answer", AnswerRequest{Answer: "   "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank answer: expected 400, got %d", w.Code)
	}

	w = e.do(t, http.MethodPost, path+"/start", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("second start: expected 409, got %d", w.Code)
	}
}

func TestPlayUnknownGame(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/play/missing/sessions", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	resp := decode[PlayNotFoundResponse](t, w)
	if !resp.Snapshot.NotFound || resp.Error != "game not found" {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestPlayDamagedGame(t *testing.T) {
	e := newTestEnv(t)

	// A legacy record written before validation existed.
	g := DemoGame(time.Now())
	g.ID = "short"
	g.Monsters = g.Monsters[:1]
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.games.db.Exec(
		`INSERT INTO games (id, creator_name, created_at, data) VALUES (?, ?, ?, jsonb(?))`,
		g.ID, g.CreatorName, g.CreatedAt, string(data),
	); err != nil {
		t.Fatalf("insert: %v", err)
	}

	w := e.do(t, http.MethodPost, "/api/play/short/sessions", nil)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	if n := e.sessions.Len(); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}
}

func TestPlaySessionScopedToGame(t *testing.T) {
	e := newTestEnv(t)
	sid := startPlay(t, e, DemoGameID)

	if w := e.do(t, http.MethodGet, "/api/play/other/sessions/"+sid, nil); w.Code != http.StatusNotFound {
		t.Errorf("other game: expected 404, got %d", w.Code)
	}

	if w := e.do(t, http.MethodDelete, "/api/play/demo/sessions/"+sid, nil); w.Code != http.StatusNoContent {
		t.Fatalf("close: expected 204, got %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/api/play/demo/sessions/"+sid, nil); w.Code != http.StatusNotFound {
		t.Errorf("after close: expected 404, got %d", w.Code)
	}
	if n := e.sessions.Len(); n != 0 {
		t.Errorf("sessions left = %d", n)
	}
}

func TestPlayEventsStream(t *testing.T) {
	e := newTestEnv(t)
	sid := startPlay(t, e, DemoGameID)
	path := "/api/play/demo/sessions/" + sid

	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path+"/events", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}

	lines := bufio.NewScanner(res.Body)
	lines.Buffer(make([]byte, 0, 64*1024), 1<<20)
	nextData := func() string {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok {
				return data
			}
		}
		return ""
	}

	if first := nextData(); !strings.Contains(first, `"state":"INTRO"`) {
		t.Fatalf("first event = %q", first)
	}

	e.do(t, http.MethodPost, path+"/start", nil)
	if got := nextData(); !strings.Contains(got, `"state":"BATTLE_1"`) {
		t.Errorf("after start event = %q", got)
	}

	e.do(t, http.MethodDelete, path, nil)
	for {
		data := nextData()
		if data == "" {
			t.Fatal("stream ended without a closed update")
		}
		if strings.Contains(data, `"closed":true`) {
			break
		}
	}
}

func TestPlaySocket(t *testing.T) {
	e := newTestEnv(t)
	sid := startPlay(t, e, DemoGameID)

	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):] + "/api/play/demo/sessions/" + sid + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, PlayCommand{Type: "start"}); err != nil {
		t.Fatalf("write start: %v", err)
	}
	for {
		var msg PlayMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == "update" && msg.Update.Snapshot.State == "BATTLE_1" {
			break
		}
	}

	if err := wsjson.Write(ctx, conn, PlayCommand{Type: "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		var msg PlayMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == "error" {
			if msg.Error != errUnknownCommand.Error() {
				t.Errorf("error = %q", msg.Error)
			}
			break
		}
	}

	conn.Close(websocket.StatusNormalClosure, "done")
}
