package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ayangquest/questapi/internal/analytics"
	"github.com/ayangquest/questapi/internal/builder"
	"github.com/ayangquest/questapi/internal/imaging"
	"github.com/ayangquest/questapi/internal/media"
	"github.com/ayangquest/questapi/internal/metrics"
	"github.com/ayangquest/questapi/internal/quest"
)

// DraftResponse is the wizard view returned by every draft endpoint.
type DraftResponse struct {
	ID         string             `json:"id"`
	Step       builder.Step       `json:"step"`
	Draft      builder.Draft      `json:"draft"`
	CanAdvance bool               `json:"canAdvance"`
	Errors     []quest.FieldError `json:"errors,omitempty"`
	Result     *builder.Result    `json:"result,omitempty"`
}

type IdentityRequest struct {
	CreatorName string `json:"creatorName"`
	PlayerName  string `json:"playerName"`
	OpeningText string `json:"openingText"`
}

type AvatarsRequest struct {
	PlayerAvatar  string              `json:"playerAvatar"`
	CreatorAvatar string              `json:"creatorAvatar"`
	CharacterType quest.CharacterType `json:"characterType"`
}

type MonsterRequest struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	WrongAnswer string `json:"wrongAnswer"`
}

type MonstersRequest struct {
	Monsters []MonsterRequest `json:"monsters"`
}

type RewardRequest struct {
	Type  quest.RewardType `json:"type"`
	Value string           `json:"value"`
}

// creation bundles what persisting a finished game needs.
type creation struct {
	store   GameStore
	linker  builder.Linker
	newID   func() string
	now     func() time.Time
	sink    analytics.Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func (c creation) committer() builder.Committer {
	return builder.Committer{Store: c.store, NewID: c.newID, Now: c.now, Linker: c.linker}
}

func (c creation) created(g quest.Game) {
	c.sink.Record(analytics.GameCreated(g.ID, g.CreatorName))
	if c.metrics != nil {
		c.metrics.GamesCreated.Inc()
	}
	c.logger.Info("game created", "game_id", g.ID)
}

func draftView(id string, w *builder.Wizard) DraftResponse {
	return DraftResponse{
		ID:         id,
		Step:       w.Step(),
		Draft:      w.Draft(),
		CanAdvance: w.CanAdvance(),
		Errors:     w.StepErrors(),
		Result:     w.Result(),
	}
}

// writeDraftError maps wizard and store failures to HTTP statuses.
func writeDraftError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var serr *builder.StepError
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "draft not found")
	case errors.As(err, &serr):
		writeFieldErrors(w, http.StatusUnprocessableEntity, "please complete every required field", serr.Fields)
	case errors.Is(err, builder.ErrWrongStep):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "game is too large to save, try smaller images")
	case errors.Is(err, imaging.ErrNotImage):
		writeError(w, http.StatusUnsupportedMediaType, "file is not a supported image")
	case errors.Is(err, builder.ErrSaveFailed):
		logger.Error("saving game failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not save game, please try again")
	default:
		logger.Error("draft operation failed", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// draftAction decodes nothing; fn mutates the wizard.
func draftAction(drafts *DraftStore, logger *slog.Logger, fn func(r *http.Request, w *builder.Wizard) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "draftID")
		var resp DraftResponse
		err := drafts.With(id, func(wz *builder.Wizard) error {
			if err := fn(r, wz); err != nil {
				return err
			}
			resp = draftView(id, wz)
			return nil
		})
		if err != nil {
			writeDraftError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// draftUpdate decodes a JSON body of type T before calling fn.
func draftUpdate[T any](drafts *DraftStore, logger *slog.Logger, fn func(ctx context.Context, req T, w *builder.Wizard) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := readJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		draftAction(drafts, logger, func(r *http.Request, wz *builder.Wizard) error {
			return fn(r.Context(), req, wz)
		})(w, r)
	}
}

func handleCreateDraft(drafts *DraftStore, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := drafts.Create()
		var resp DraftResponse
		if err := drafts.With(id, func(wz *builder.Wizard) error {
			resp = draftView(id, wz)
			return nil
		}); err != nil {
			writeDraftError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

func handleGetDraft(drafts *DraftStore, logger *slog.Logger) http.HandlerFunc {
	return draftAction(drafts, logger, func(*http.Request, *builder.Wizard) error { return nil })
}

func handleDeleteDraft(drafts *DraftStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := drafts.Delete(chi.URLParam(r, "draftID")); err != nil {
			writeError(w, http.StatusNotFound, "draft not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleSetIdentity(drafts *DraftStore, logger *slog.Logger) http.HandlerFunc {
	return draftUpdate(drafts, logger, func(_ context.Context, req IdentityRequest, wz *builder.Wizard) error {
		return wz.SetIdentity(req.CreatorName, req.PlayerName, req.OpeningText)
	})
}

func handleSetAvatars(drafts *DraftStore, images imaging.Normalizer, logger *slog.Logger) http.HandlerFunc {
	return draftUpdate(drafts, logger, func(_ context.Context, req AvatarsRequest, wz *builder.Wizard) error {
		if err := wz.SetPlayerAvatar(images.NormalizeDataURL(req.PlayerAvatar)); err != nil {
			return err
		}
		if err := wz.SetCreatorAvatar(images.NormalizeDataURL(req.CreatorAvatar)); err != nil {
			return err
		}
		if req.CharacterType != "" {
			return wz.SetCharacter(req.CharacterType)
		}
		return nil
	})
}

func handleToggleCharacter(drafts *DraftStore, logger *slog.Logger) http.HandlerFunc {
	return draftAction(drafts, logger, func(_ *http.Request, wz *builder.Wizard) error {
		return wz.ToggleCharacter()
	})
}

func handleSetMonsters(drafts *DraftStore, logger *slog.Logger) http.HandlerFunc {
	return draftUpdate(drafts, logger, func(_ context.Context, req MonstersRequest, wz *builder.Wizard) error {
		if len(req.Monsters) != quest.MonsterCount {
			return &builder.StepError{Step: builder.StepMonsters, Fields: []quest.FieldError{
				{Field: "monsters", Message: fmt.Sprintf("must have exactly %d entries", quest.MonsterCount)},
			}}
		}
		for i, m := range req.Monsters {
			if err := wz.SetMonster(i, m.Question, m.Answer, m.WrongAnswer); err != nil {
				return err
			}
		}
		return nil
	})
}

func handleSetMonster(drafts *DraftStore, logger *slog.Logger) http.HandlerFunc {
	return draftUpdate(drafts, logger, func(ctx context.Context, req MonsterRequest, wz *builder.Wizard) error {
		i, err := strconv.Atoi(chi.URLParamFromCtx(ctx, "index"))
		if err != nil {
			return fmt.Errorf("monster index must be a number")
		}
		return wz.SetMonster(i, req.Question, req.Answer, req.WrongAnswer)
	})
}

func handleSetReward(drafts *DraftStore, images imaging.Normalizer, logger *slog.Logger) http.HandlerFunc {
	return draftUpdate(drafts, logger, func(_ context.Context, req RewardRequest, wz *builder.Wizard) error {
		if err := wz.SetRewardType(req.Type); err != nil {
			return err
		}
		value := req.Value
		if req.Type == quest.RewardImage {
			value = images.NormalizeDataURL(value)
		}
		return wz.SetRewardValue(value)
	})
}

// handleUploadImage accepts a multipart "file" for the player avatar, the
// creator avatar or the reward picture, normalizes it and stores the
// resulting reference in the draft.
func handleUploadImage(drafts *DraftStore, images imaging.Normalizer, pub media.Publisher, maxBytes int64, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := chi.URLParam(r, "role")
		if role != "player" && role != "creator" && role != "reward" {
			writeError(w, http.StatusNotFound, "unknown image role")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
			return
		}
		defer file.Close()

		raw, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "image is too large")
			return
		}
		jpeg, err := images.NormalizeBytes(raw)
		if err != nil {
			writeDraftError(w, logger, err)
			return
		}
		ref, err := pub.Publish(r.Context(), jpeg, "image/jpeg")
		if err != nil {
			logger.Error("publishing image failed", "error", err)
			writeError(w, http.StatusInternalServerError, "could not process image")
			return
		}

		draftAction(drafts, logger, func(_ *http.Request, wz *builder.Wizard) error {
			switch role {
			case "player":
				return wz.SetPlayerAvatar(ref)
			case "creator":
				return wz.SetCreatorAvatar(ref)
			}
			if err := wz.SetRewardType(quest.RewardImage); err != nil {
				return err
			}
			return wz.SetRewardValue(ref)
		})(w, r)
	}
}

func handleDraftNext(drafts *DraftStore, logger *slog.Logger) http.HandlerFunc {
	return draftAction(drafts, logger, func(_ *http.Request, wz *builder.Wizard) error {
		return wz.Next()
	})
}

func handleDraftBack(drafts *DraftStore, logger *slog.Logger) http.HandlerFunc {
	return draftAction(drafts, logger, func(_ *http.Request, wz *builder.Wizard) error {
		return wz.Back()
	})
}

func handleDraftReset(drafts *DraftStore, logger *slog.Logger) http.HandlerFunc {
	return draftAction(drafts, logger, func(_ *http.Request, wz *builder.Wizard) error {
		wz.Reset()
		return nil
	})
}

func handleDraftCommit(drafts *DraftStore, c creation) http.HandlerFunc {
	return draftAction(drafts, c.logger, func(r *http.Request, wz *builder.Wizard) error {
		res, err := wz.Commit(r.Context(), c.committer())
		if err != nil {
			return err
		}
		c.created(res.Game)
		return nil
	})
}
