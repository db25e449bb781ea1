package server

import (
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/ayangquest/questapi/internal/analytics"
	"github.com/ayangquest/questapi/internal/builder"
	"github.com/ayangquest/questapi/internal/handler/health"
	"github.com/ayangquest/questapi/internal/imaging"
	"github.com/ayangquest/questapi/internal/media"
	"github.com/ayangquest/questapi/internal/metrics"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Games    GameStore
	Admin    AdminStore
	Drafts   *DraftStore
	Sessions *SessionManager
	Broker   *Broker
	Sink     analytics.Sink
	// Dashboard is nil when analytics storage is not configured.
	Dashboard Summarizer
	Metrics   *metrics.Metrics
	Images    imaging.Normalizer
	Media     media.Publisher
	Linker    builder.Linker
	NewGameID func() string
	Checks    map[string]health.Checker

	AdminSessionTTL time.Duration
	UploadMaxBytes  int64
	SPADir          string
}

func addRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	c := creation{
		store:   d.Games,
		linker:  d.Linker,
		newID:   d.NewGameID,
		now:     time.Now,
		sink:    d.Sink,
		metrics: d.Metrics,
		logger:  logger,
	}

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("AyangQuest API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, d.Checks).Routes())
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	// Builder wizard. Drafts live in memory until committed.
	r.Route("/api/drafts", func(r chi.Router) {
		r.Post("/", handleCreateDraft(d.Drafts, logger))
		r.Route("/{draftID}", func(r chi.Router) {
			r.Get("/", handleGetDraft(d.Drafts, logger))
			r.Delete("/", handleDeleteDraft(d.Drafts))
			r.Put("/identity", handleSetIdentity(d.Drafts, logger))
			r.Put("/avatars", handleSetAvatars(d.Drafts, d.Images, logger))
			r.Post("/character/toggle", handleToggleCharacter(d.Drafts, logger))
			r.Post("/images/{role}", handleUploadImage(d.Drafts, d.Images, d.Media, d.UploadMaxBytes, logger))
			r.Put("/monsters", handleSetMonsters(d.Drafts, logger))
			r.Put("/monsters/{index}", handleSetMonster(d.Drafts, logger))
			r.Put("/reward", handleSetReward(d.Drafts, d.Images, logger))
			r.Post("/next", handleDraftNext(d.Drafts, logger))
			r.Post("/back", handleDraftBack(d.Drafts, logger))
			r.Post("/reset", handleDraftReset(d.Drafts, logger))
			r.Post("/commit", handleDraftCommit(d.Drafts, c))
		})
	})

	r.Post("/api/games", handleCreateGame(c, d.Images))
	r.Get("/api/games/{gameID}", handleGetGame(d.Games))

	// Player. Sessions are scoped to the game they were opened for.
	r.Route("/api/play/{gameID}/sessions", func(r chi.Router) {
		r.Post("/", handleCreatePlay(d.Games, d.Sessions, logger))
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", handlePlayState(d.Sessions, logger))
			r.Delete("/", handleClosePlay(d.Sessions))
			r.Post("/start", handlePlayStart(d.Sessions, logger))
			r.Post("/answer", handlePlayAnswer(d.Sessions, logger))
			r.Put("/input", handlePlayInput(d.Sessions, logger))
			r.Post("/restart", handlePlayRestart(d.Sessions, logger))
			r.Get("/events", handleEvents(d.Broker, d.Sessions))
			r.Get("/ws", handlePlaySocket(d.Broker, d.Sessions, logger))
			r.Get("/victory-card.png", handleVictoryCard(d.Sessions, logger))
		})
	})

	r.Post("/api/analytics/pageview", handlePageView(d.Sink))

	// Admin auth and dashboard.
	r.Post("/api/admin/login", handleAdminLogin(d.Admin, d.AdminSessionTTL, logger))
	r.Post("/api/admin/logout", handleAdminLogout(d.Admin, logger))
	r.Group(func(r chi.Router) {
		r.Use(adminAuthMiddleware(d.Admin, logger))
		r.Get("/api/admin/me", handleAdminMe())
		r.Get("/api/admin/dashboard", handleDashboard(d.Dashboard, logger))
	})

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
