package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayangquest/questapi/internal/builder"
	"github.com/ayangquest/questapi/internal/imaging"
	"github.com/ayangquest/questapi/internal/quest"
)

// CreateGameRequest is the one-shot alternative to the draft wizard. It
// carries every wizard field at once.
type CreateGameRequest = builder.Draft

type CreateGameResponse struct {
	Game quest.Game `json:"game"`
	Link string     `json:"link"`
}

func handleCreateGame(c creation, images imaging.Normalizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateGameRequest
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.CharacterType = req.CharacterType.OrDefault()
		if len(req.Monsters) == 0 {
			req.Monsters = quest.EmptyMonsters()
		}
		req.PlayerAvatar = images.NormalizeDataURL(req.PlayerAvatar)
		req.CreatorAvatar = images.NormalizeDataURL(req.CreatorAvatar)
		if req.Reward.Type == quest.RewardImage {
			req.Reward.Value = images.NormalizeDataURL(req.Reward.Value)
		}

		if err := builder.ValidateDraft(req); err != nil {
			writeDraftError(w, c.logger, err)
			return
		}

		g := builder.Assemble(req, c.newID(), c.now())
		if err := c.store.CreateGame(r.Context(), g); err != nil {
			writeDraftError(w, c.logger, errors.Join(builder.ErrSaveFailed, err))
			return
		}
		c.created(g)

		writeJSON(w, http.StatusCreated, CreateGameResponse{Game: g, Link: c.linker.Link(g.ID)})
	}
}

func handleGetGame(store GameStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := store.GetGame(r.Context(), chi.URLParam(r, "gameID"))
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "game not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, g)
	}
}
