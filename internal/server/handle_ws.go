package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ayangquest/questapi/internal/player"
)

// PlayCommand is a client message on the play websocket.
type PlayCommand struct {
	Type   string `json:"type"` // start, answer, input, restart, state
	Answer string `json:"answer,omitempty"`
	Input  string `json:"input,omitempty"`
}

// PlayMessage is a server message on the play websocket.
type PlayMessage struct {
	Type    string          `json:"type"` // update, error
	Update  *PlayUpdate     `json:"update,omitempty"`
	Outcome *player.Outcome `json:"outcome,omitempty"`
	Error   string          `json:"error,omitempty"`
}

var errUnknownCommand = errors.New("unknown command")

func applyCommand(m *player.Machine, cmd PlayCommand, now time.Time) (*player.Outcome, error) {
	switch cmd.Type {
	case "start":
		return nil, m.Start(now)
	case "answer":
		out, err := m.Submit(cmd.Answer, now)
		if err != nil {
			return nil, err
		}
		return &out, nil
	case "input":
		return nil, m.SetInput(cmd.Input)
	case "restart":
		return nil, m.Restart(now)
	case "state":
		m.Advance(now)
		return nil, nil
	}
	return nil, errUnknownCommand
}

// handlePlaySocket is the bidirectional alternative to the REST and SSE play
// endpoints: commands come in as JSON and every broker update is pushed out.
func handlePlaySocket(broker *Broker, sessions *SessionManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := chi.URLParam(r, "gameID")
		sessionID := chi.URLParam(r, "sessionID")
		if _, _, err := sessions.View(gameID, sessionID); err != nil {
			writeError(w, http.StatusNotFound, "play session not found")
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
		defer cancel()

		ch := broker.Subscribe(sessionID)
		defer broker.Unsubscribe(sessionID, ch)

		replies := make(chan PlayMessage, 4)
		go func() {
			defer cancel()
			for {
				var cmd PlayCommand
				if err := wsjson.Read(ctx, conn, &cmd); err != nil {
					logger.Debug("websocket read ended", "error", err)
					return
				}
				var outcome *player.Outcome
				snap, err := sessions.Do(gameID, sessionID, func(m *player.Machine, now time.Time) error {
					var err error
					outcome, err = applyCommand(m, cmd, now)
					return err
				})
				msg := PlayMessage{Type: "update", Update: &PlayUpdate{Snapshot: snap}, Outcome: outcome}
				if err != nil {
					msg = PlayMessage{Type: "error", Error: err.Error()}
				}
				select {
				case replies <- msg:
				case <-ctx.Done():
					return
				}
				if errors.Is(err, ErrNotFound) {
					return
				}
			}
		}()

		for {
			var msg PlayMessage
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case msg = <-replies:
			case data := <-ch:
				var u PlayUpdate
				if err := json.Unmarshal(data, &u); err != nil {
					continue
				}
				msg = PlayMessage{Type: "update", Update: &u}
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
			if msg.Update != nil && msg.Update.Closed {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
		}
	}
}
