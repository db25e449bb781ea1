package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ayangquest/questapi/internal/analytics"
	"github.com/ayangquest/questapi/internal/builder"
	"github.com/ayangquest/questapi/internal/config"
	"github.com/ayangquest/questapi/internal/database"
	"github.com/ayangquest/questapi/internal/gameid"
	"github.com/ayangquest/questapi/internal/handler/health"
	"github.com/ayangquest/questapi/internal/imaging"
	"github.com/ayangquest/questapi/internal/media"
	"github.com/ayangquest/questapi/internal/metrics"
	"github.com/ayangquest/questapi/internal/migrations"
	"github.com/ayangquest/questapi/internal/player"
	"github.com/ayangquest/questapi/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	dashLoc, err := time.LoadLocation(cfg.DashboardTZ)
	if err != nil {
		return fmt.Errorf("loading DASHBOARD_TZ: %w", err)
	}

	checks := map[string]health.Checker{}
	m := metrics.New()

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	checks["sqlite"] = dbChecker{db}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	// --- Redis (optional) ---
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		checks["redis"] = redisChecker{rdb}
		logger.Info("connected to redis")
	}

	// --- Game store ---
	var games server.GameStore
	switch cfg.GameStore {
	case "redis":
		games = server.NewRedisStore(rdb, cfg.GameMaxPayload, cfg.RedisGameTTL)
	default:
		games = server.NewDocStore(db, cfg.GameMaxPayload)
	}
	logger.Info("game store selected", "kind", cfg.GameStore)

	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, games); err != nil {
			return fmt.Errorf("seeding demo game: %w", err)
		}
	}

	// --- Admin ---
	admin := server.NewAdminDocStore(db, cfg.AdminSessionTTL)
	if cfg.AdminEmail != "" {
		if err := admin.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("creating admin account: %w", err)
		}
		logger.Info("admin account ready", "email", cfg.AdminEmail)
	}

	// --- Media ---
	var pub media.Publisher = media.Inline{}
	if cfg.MinIO.Enabled() {
		store, err := media.NewMinIO(ctx, logger, media.MinIOConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
			PublicURL: cfg.MinIO.PublicURL,
		})
		if err != nil {
			return fmt.Errorf("connecting to minio: %w", err)
		}
		pub = store
		checks["minio"] = store
		logger.Info("connected to minio", "endpoint", cfg.MinIO.Endpoint)
	}

	// --- Analytics (optional) ---
	var (
		sink  analytics.Sink = analytics.Nop{}
		queue *analytics.Queue
		dash  server.Summarizer
	)
	if cfg.Analytics.Enabled() {
		adb, err := openAnalytics(ctx, cfg.Analytics, cfg.DBPath, db)
		if err != nil {
			return fmt.Errorf("connecting to analytics db: %w", err)
		}
		if adb != db {
			defer adb.Close()
		}
		if err := migrations.RunAnalytics(ctx, adb, cfg.Analytics.Driver); err != nil {
			return fmt.Errorf("running analytics migrations: %w", err)
		}

		repo := analytics.NewRepository(adb, analytics.Dialect(cfg.Analytics.Driver))
		var geo analytics.Locator
		if cfg.Analytics.GeoLookupURL != "" {
			geo = analytics.NewGeolocator(logger, cfg.Analytics.GeoLookupURL, rdb)
		}
		queue = analytics.NewQueue(logger, repo, geo, cfg.Analytics.Buffer, m)
		sink = queue
		dash = analytics.NewDashboard(repo, dashLoc)
		checks["analytics"] = repo
		logger.Info("analytics enabled", "driver", cfg.Analytics.Driver)
	}

	// --- Live state ---
	broker := server.NewBroker()
	drafts := server.NewDraftStore(cfg.DraftIdle)
	sessions := server.NewSessionManager(server.SessionConfig{
		Broker:  broker,
		Sink:    sink,
		Metrics: m,
		Logger:  logger,
		Player:  player.Options{Timings: player.DefaultTimings},
		Idle:    cfg.SessionIdle,
	})

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Games:     games,
		Admin:     admin,
		Drafts:    drafts,
		Sessions:  sessions,
		Broker:    broker,
		Sink:      sink,
		Dashboard: dash,
		Metrics:   m,
		Images:    imaging.New(cfg.ImageMaxWidth, cfg.ImageQuality),
		Media:     pub,
		Linker:    builder.Linker{Origin: cfg.PublicOrigin, PlayPath: cfg.PlayPath},
		NewGameID: gameid.New,
		Checks:    checks,

		AdminSessionTTL: cfg.AdminSessionTTL,
		UploadMaxBytes:  cfg.UploadMaxBytes,
		SPADir:          cfg.SPADir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error { return drafts.Run(gctx, logger) })
	g.Go(func() error { return sessions.Run(gctx) })
	g.Go(func() error { return purgeAdminSessions(gctx, logger, admin) })
	if queue != nil {
		g.Go(func() error { return queue.Run(gctx) })
	}

	return g.Wait()
}

// openAnalytics reuses the main database when the analytics DSN points at it.
func openAnalytics(ctx context.Context, cfg config.Analytics, dbPath string, db *sql.DB) (*sql.DB, error) {
	if cfg.Driver == "postgres" {
		return database.OpenPostgres(ctx, cfg.DSN)
	}
	if cfg.DSN == dbPath {
		return db, nil
	}
	return database.Open(ctx, cfg.DSN)
}

func purgeAdminSessions(ctx context.Context, logger *slog.Logger, admin *server.AdminDocStore) error {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := admin.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Warn("purging admin sessions failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged admin sessions", "count", n)
			}
		}
	}
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }

// redisChecker adapts *redis.Client to health.Checker.
type redisChecker struct{ client *redis.Client }

func (r redisChecker) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
