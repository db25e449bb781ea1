package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayangquest/questapi/internal/card"
	"github.com/ayangquest/questapi/internal/player"
	"github.com/ayangquest/questapi/internal/quest"
)

// PlayResponse is returned by every play session endpoint.
type PlayResponse struct {
	SessionID string          `json:"sessionId"`
	Snapshot  player.Snapshot `json:"snapshot"`
	Outcome   *player.Outcome `json:"outcome,omitempty"`
}

// PlayNotFoundResponse is the 404 body for an unknown game: the error plus
// the not-found screen.
type PlayNotFoundResponse struct {
	Error    string          `json:"error"`
	Snapshot player.Snapshot `json:"snapshot"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type InputRequest struct {
	Input string `json:"input"`
}

func writePlayError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "play session not found")
	case errors.Is(err, player.ErrNotAccepting):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, player.ErrEmptyAnswer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, new(*quest.ValidationError)):
		logger.Warn("stored game is unplayable", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "game is damaged and cannot be played")
	default:
		logger.Error("play operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func handleCreatePlay(store GameStore, sessions *SessionManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := store.GetGame(r.Context(), chi.URLParam(r, "gameID"))
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, PlayNotFoundResponse{
				Error:    "game not found",
				Snapshot: sessions.NotFoundSnapshot(),
			})
			return
		}
		if err != nil {
			logger.Error("loading game failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		id, snap, err := sessions.Create(g)
		if err != nil {
			writePlayError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, PlayResponse{SessionID: id, Snapshot: snap})
	}
}

func handlePlayState(sessions *SessionManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		snap, _, err := sessions.View(chi.URLParam(r, "gameID"), sessionID)
		if err != nil {
			writePlayError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, PlayResponse{SessionID: sessionID, Snapshot: snap})
	}
}

func handleClosePlay(sessions *SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Close(chi.URLParam(r, "gameID"), chi.URLParam(r, "sessionID")); err != nil {
			writeError(w, http.StatusNotFound, "play session not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// playAction runs fn against the session machine and replies with the new
// snapshot.
func playAction(sessions *SessionManager, logger *slog.Logger, fn func(r *http.Request, m *player.Machine, now time.Time) (*player.Outcome, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		var outcome *player.Outcome
		snap, err := sessions.Do(chi.URLParam(r, "gameID"), sessionID, func(m *player.Machine, now time.Time) error {
			var err error
			outcome, err = fn(r, m, now)
			return err
		})
		if err != nil {
			writePlayError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, PlayResponse{SessionID: sessionID, Snapshot: snap, Outcome: outcome})
	}
}

func handlePlayStart(sessions *SessionManager, logger *slog.Logger) http.HandlerFunc {
	return playAction(sessions, logger, func(_ *http.Request, m *player.Machine, now time.Time) (*player.Outcome, error) {
		return nil, m.Start(now)
	})
}

func handlePlayRestart(sessions *SessionManager, logger *slog.Logger) http.HandlerFunc {
	return playAction(sessions, logger, func(_ *http.Request, m *player.Machine, now time.Time) (*player.Outcome, error) {
		return nil, m.Restart(now)
	})
}

func handlePlayAnswer(sessions *SessionManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnswerRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		playAction(sessions, logger, func(_ *http.Request, m *player.Machine, now time.Time) (*player.Outcome, error) {
			out, err := m.Submit(req.Answer, now)
			if err != nil {
				return nil, err
			}
			return &out, nil
		})(w, r)
	}
}

func handlePlayInput(sessions *SessionManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req InputRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		playAction(sessions, logger, func(_ *http.Request, m *player.Machine, _ time.Time) (*player.Outcome, error) {
			return nil, m.SetInput(req.Input)
		})(w, r)
	}
}

// handleVictoryCard renders the shareable PNG once the session has won.
func handleVictoryCard(sessions *SessionManager, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, g, err := sessions.View(chi.URLParam(r, "gameID"), chi.URLParam(r, "sessionID"))
		if err != nil {
			writePlayError(w, logger, err)
			return
		}
		if snap.Phase != player.PhaseVictory.String() {
			writeError(w, http.StatusConflict, "victory card is available after winning")
			return
		}

		png, err := card.Render(card.Summary{
			PlayerName:   g.PlayerName,
			CreatorName:  g.CreatorName,
			Attempts:     snap.Attempts,
			WrongAnswers: snap.WrongAnswers,
			Reward:       g.Reward,
		})
		if err != nil {
			logger.Error("rendering victory card failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if r.URL.Query().Get("download") == "1" {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "ayangquest-"+g.ID+".png"))
		}
		w.Write(png)
	}
}
