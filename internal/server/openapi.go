package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/ayangquest/questapi/internal/analytics"
	"github.com/ayangquest/questapi/internal/quest"
)

// HealthResponse documents the /healthz body: one status per dependency.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

// Path and query parameters of the documented routes.

type draftParams struct {
	DraftID string `path:"draftID"`
}

type imageParams struct {
	DraftID string `path:"draftID"`
	Role    string `path:"role" enum:"player,creator,reward"`
}

type gameParams struct {
	GameID string `path:"gameID"`
}

type playParams struct {
	GameID    string `path:"gameID"`
	SessionID string `path:"sessionID"`
}

type cardParams struct {
	GameID    string `path:"gameID"`
	SessionID string `path:"sessionID"`
	Download  bool   `query:"download"`
}

type dashboardParams struct {
	Range string `query:"range" enum:"7D,30D,1Y" default:"7D"`
}

type identityParams struct {
	DraftID string `path:"draftID"`
	IdentityRequest
}

type avatarsParams struct {
	DraftID string `path:"draftID"`
	AvatarsRequest
}

type monstersParams struct {
	DraftID string `path:"draftID"`
	MonstersRequest
}

type oneMonsterParams struct {
	DraftID string `path:"draftID"`
	Index   int    `path:"index" minimum:"0" maximum:"4"`
	MonsterRequest
}

type rewardParams struct {
	DraftID string `path:"draftID"`
	RewardRequest
}

type answerParams struct {
	GameID    string `path:"gameID"`
	SessionID string `path:"sessionID"`
	AnswerRequest
}

type inputParams struct {
	GameID    string `path:"gameID"`
	SessionID string `path:"sessionID"`
	InputRequest
}

func newOpenAPISpec() (*openapi3.Spec, error) {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "AyangQuest API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Create, share and play personalized quiz adventures.")

	var errs []error
	add := func(oc openapi.OperationContext) {
		if err := r.AddOperation(oc); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", oc.Method(), oc.PathPattern(), err))
		}
	}

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	add(getHealthz)

	// POST /api/drafts
	createDraft, _ := r.NewOperationContext(http.MethodPost, "/api/drafts")
	createDraft.SetSummary("Start a game draft")
	createDraft.SetDescription("Opens a builder wizard at the identity step.")
	createDraft.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	add(createDraft)

	// GET /api/drafts/{draftID}
	getDraft, _ := r.NewOperationContext(http.MethodGet, "/api/drafts/{draftID}")
	getDraft.AddReqStructure(draftParams{})
	getDraft.SetSummary("Get draft")
	getDraft.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getDraft.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	add(getDraft)

	// DELETE /api/drafts/{draftID}
	deleteDraft, _ := r.NewOperationContext(http.MethodDelete, "/api/drafts/{draftID}")
	deleteDraft.AddReqStructure(draftParams{})
	deleteDraft.SetSummary("Discard draft")
	deleteDraft.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	deleteDraft.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	add(deleteDraft)

	// PUT /api/drafts/{draftID}/identity
	putIdentity, _ := r.NewOperationContext(http.MethodPut, "/api/drafts/{draftID}/identity")
	putIdentity.SetSummary("Set names and opening text")
	putIdentity.AddReqStructure(identityParams{})
	putIdentity.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putIdentity.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	add(putIdentity)

	// PUT /api/drafts/{draftID}/avatars
	putAvatars, _ := r.NewOperationContext(http.MethodPut, "/api/drafts/{draftID}/avatars")
	putAvatars.SetSummary("Set avatars and knight")
	putAvatars.SetDescription("Image data URLs are scaled down and re-encoded as JPEG.")
	putAvatars.AddReqStructure(avatarsParams{})
	putAvatars.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putAvatars.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	add(putAvatars)

	// POST /api/drafts/{draftID}/character/toggle
	toggleChar, _ := r.NewOperationContext(http.MethodPost, "/api/drafts/{draftID}/character/toggle")
	toggleChar.AddReqStructure(draftParams{})
	toggleChar.SetSummary("Toggle knight")
	toggleChar.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	add(toggleChar)

	// POST /api/drafts/{draftID}/images/{role}
	uploadImage, _ := r.NewOperationContext(http.MethodPost, "/api/drafts/{draftID}/images/{role}")
	uploadImage.AddReqStructure(imageParams{})
	uploadImage.SetSummary("Upload an image")
	uploadImage.SetDescription("Multipart field \"file\". Role is player, creator or reward.")
	uploadImage.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	uploadImage.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnsupportedMediaType))
	uploadImage.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusRequestEntityTooLarge))
	add(uploadImage)

	// PUT /api/drafts/{draftID}/monsters
	putMonsters, _ := r.NewOperationContext(http.MethodPut, "/api/drafts/{draftID}/monsters")
	putMonsters.SetSummary("Set all five questions")
	putMonsters.AddReqStructure(monstersParams{})
	putMonsters.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putMonsters.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	add(putMonsters)

	// PUT /api/drafts/{draftID}/monsters/{index}
	putMonster, _ := r.NewOperationContext(http.MethodPut, "/api/drafts/{draftID}/monsters/{index}")
	putMonster.SetSummary("Set one question")
	putMonster.AddReqStructure(oneMonsterParams{})
	putMonster.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	putMonster.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	add(putMonster)

	// PUT /api/drafts/{draftID}/reward
	putReward, _ := r.NewOperationContext(http.MethodPut, "/api/drafts/{draftID}/reward")
	putReward.SetSummary("Set the reward")
	putReward.AddReqStructure(rewardParams{})
	putReward.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	add(putReward)

	// POST /api/drafts/{draftID}/next
	draftNext, _ := r.NewOperationContext(http.MethodPost, "/api/drafts/{draftID}/next")
	draftNext.AddReqStructure(draftParams{})
	draftNext.SetSummary("Advance the wizard")
	draftNext.SetDescription("Refused with field errors while the current step is incomplete.")
	draftNext.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	draftNext.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	add(draftNext)

	// POST /api/drafts/{draftID}/back
	draftBack, _ := r.NewOperationContext(http.MethodPost, "/api/drafts/{draftID}/back")
	draftBack.AddReqStructure(draftParams{})
	draftBack.SetSummary("Go back one step")
	draftBack.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	draftBack.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	add(draftBack)

	// POST /api/drafts/{draftID}/reset
	draftReset, _ := r.NewOperationContext(http.MethodPost, "/api/drafts/{draftID}/reset")
	draftReset.AddReqStructure(draftParams{})
	draftReset.SetSummary("Start over")
	draftReset.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	add(draftReset)

	// POST /api/drafts/{draftID}/commit
	draftCommit, _ := r.NewOperationContext(http.MethodPost, "/api/drafts/{draftID}/commit")
	draftCommit.AddReqStructure(draftParams{})
	draftCommit.SetSummary("Save the game")
	draftCommit.SetDescription("Persists the game and returns the share link in result.")
	draftCommit.AddRespStructure(DraftResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	draftCommit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	draftCommit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusRequestEntityTooLarge))
	draftCommit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	add(draftCommit)

	// POST /api/games
	createGame, _ := r.NewOperationContext(http.MethodPost, "/api/games")
	createGame.SetSummary("Create a game in one request")
	createGame.AddReqStructure(CreateGameRequest{})
	createGame.AddRespStructure(CreateGameResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	createGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	add(createGame)

	// GET /api/games/{gameID}
	getGame, _ := r.NewOperationContext(http.MethodGet, "/api/games/{gameID}")
	getGame.AddReqStructure(gameParams{})
	getGame.SetSummary("Get game")
	getGame.AddRespStructure(quest.Game{}, openapi.WithHTTPStatus(http.StatusOK))
	getGame.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	add(getGame)

	// POST /api/play/{gameID}/sessions
	createPlay, _ := r.NewOperationContext(http.MethodPost, "/api/play/{gameID}/sessions")
	createPlay.AddReqStructure(gameParams{})
	createPlay.SetSummary("Start a playthrough")
	createPlay.SetDescription("Loads the game into a new play session. Unknown games return the not-found screen.")
	createPlay.AddRespStructure(PlayResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	createPlay.AddRespStructure(PlayNotFoundResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	add(createPlay)

	// GET /api/play/{gameID}/sessions/{sessionID}
	getPlay, _ := r.NewOperationContext(http.MethodGet, "/api/play/{gameID}/sessions/{sessionID}")
	getPlay.AddReqStructure(playParams{})
	getPlay.SetSummary("Get play state")
	getPlay.AddRespStructure(PlayResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getPlay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	add(getPlay)

	// DELETE /api/play/{gameID}/sessions/{sessionID}
	closePlay, _ := r.NewOperationContext(http.MethodDelete, "/api/play/{gameID}/sessions/{sessionID}")
	closePlay.AddReqStructure(playParams{})
	closePlay.SetSummary("End a playthrough")
	closePlay.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	add(closePlay)

	// POST /api/play/{gameID}/sessions/{sessionID}/start
	startPlay, _ := r.NewOperationContext(http.MethodPost, "/api/play/{gameID}/sessions/{sessionID}/start")
	startPlay.AddReqStructure(playParams{})
	startPlay.SetSummary("Start the adventure")
	startPlay.AddRespStructure(PlayResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	startPlay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	add(startPlay)

	// POST /api/play/{gameID}/sessions/{sessionID}/answer
	answerPlay, _ := r.NewOperationContext(http.MethodPost, "/api/play/{gameID}/sessions/{sessionID}/answer")
	answerPlay.SetSummary("Answer the current monster")
	answerPlay.SetDescription("An empty answer submits the free-text buffer.")
	answerPlay.AddReqStructure(answerParams{})
	answerPlay.AddRespStructure(PlayResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	answerPlay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	answerPlay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	add(answerPlay)

	// PUT /api/play/{gameID}/sessions/{sessionID}/input
	inputPlay, _ := r.NewOperationContext(http.MethodPut, "/api/play/{gameID}/sessions/{sessionID}/input")
	inputPlay.SetSummary("Update the free-text buffer")
	inputPlay.AddReqStructure(inputParams{})
	inputPlay.AddRespStructure(PlayResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	add(inputPlay)

	// POST /api/play/{gameID}/sessions/{sessionID}/restart
	restartPlay, _ := r.NewOperationContext(http.MethodPost, "/api/play/{gameID}/sessions/{sessionID}/restart")
	restartPlay.AddReqStructure(playParams{})
	restartPlay.SetSummary("Try again")
	restartPlay.AddRespStructure(PlayResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	restartPlay.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	add(restartPlay)

	// GET /api/play/{gameID}/sessions/{sessionID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/play/{gameID}/sessions/{sessionID}/events")
	getEvents.AddReqStructure(playParams{})
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of play updates.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	add(getEvents)

	// GET /api/play/{gameID}/sessions/{sessionID}/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/play/{gameID}/sessions/{sessionID}/ws")
	getWS.AddReqStructure(playParams{})
	getWS.SetSummary("Play over WebSocket")
	getWS.SetDescription("Accepts start, answer, input, restart and state commands and pushes every update.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols))
	add(getWS)

	// GET /api/play/{gameID}/sessions/{sessionID}/victory-card.png
	getCard, _ := r.NewOperationContext(http.MethodGet, "/api/play/{gameID}/sessions/{sessionID}/victory-card.png")
	getCard.AddReqStructure(cardParams{})
	getCard.SetSummary("Victory card")
	getCard.SetDescription("PNG summary of a won playthrough. Add download=1 to save it as a file.")
	getCard.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK), openapi.WithContentType("image/png"))
	getCard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	add(getCard)

	// POST /api/analytics/pageview
	postPageView, _ := r.NewOperationContext(http.MethodPost, "/api/analytics/pageview")
	postPageView.SetSummary("Record a page view")
	postPageView.AddReqStructure(PageViewRequest{})
	postPageView.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusAccepted))
	add(postPageView)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with email and password. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	add(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.SetDescription("Clears admin session and cookie.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	add(postLogout)

	// GET /api/admin/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getMe.SetSummary("Current admin")
	getMe.SetDescription("Returns the currently authenticated admin. Requires admin_session cookie.")
	getMe.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	add(getMe)

	// GET /api/admin/dashboard
	getDashboard, _ := r.NewOperationContext(http.MethodGet, "/api/admin/dashboard")
	getDashboard.AddReqStructure(dashboardParams{})
	getDashboard.SetSummary("Analytics dashboard")
	getDashboard.SetDescription("Totals, daily series and top visitor locations. Query range is 7D, 30D or 1Y.")
	getDashboard.AddRespStructure(analytics.Summary{}, openapi.WithHTTPStatus(http.StatusOK))
	getDashboard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getDashboard.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	add(getDashboard)

	return r.Spec, errors.Join(errs...)
}

func handleOpenAPI() http.HandlerFunc {
	spec, err := newOpenAPISpec()
	if err != nil {
		panic(fmt.Sprintf("building openapi document: %v", err))
	}
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
