package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string     `env:"DB_PATH" envDefault:"data/ayangquest.db"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	SPADir   string     `env:"SPA_DIR" envDefault:"../web/dist"`

	PublicOrigin string `env:"PUBLIC_ORIGIN" envDefault:"http://localhost:8080"`
	PlayPath     string `env:"PLAY_PATH" envDefault:"play"`

	GameStore       string        `env:"GAME_STORE" envDefault:"sqlite"`
	GameMaxPayload  int           `env:"GAME_MAX_PAYLOAD_BYTES" envDefault:"1048576"`
	RedisURL        string        `env:"REDIS_URL"`
	RedisGameTTL    time.Duration `env:"REDIS_GAME_TTL" envDefault:"0s"`
	SeedDemo        bool          `env:"SEED_DEMO" envDefault:"true"`
	DraftIdle       time.Duration `env:"DRAFT_IDLE_TIMEOUT" envDefault:"2h"`
	SessionIdle     time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	ImageMaxWidth   int           `env:"IMAGE_MAX_WIDTH" envDefault:"300"`
	ImageQuality    int           `env:"IMAGE_QUALITY" envDefault:"60"`
	UploadMaxBytes  int64         `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
	DashboardTZ     string        `env:"DASHBOARD_TZ" envDefault:"Asia/Jakarta"`
	AdminEmail      string        `env:"ADMIN_EMAIL"`
	AdminPassword   string        `env:"ADMIN_PASSWORD"`
	AdminSessionTTL time.Duration `env:"ADMIN_SESSION_TTL" envDefault:"168h"`

	Analytics Analytics `envPrefix:"ANALYTICS_"`
	MinIO     MinIO     `envPrefix:"MINIO_"`
}

// Analytics is disabled when DSN is empty.
type Analytics struct {
	Driver       string `env:"DRIVER" envDefault:"sqlite"`
	DSN          string `env:"DSN"`
	Buffer       int    `env:"BUFFER" envDefault:"256"`
	GeoLookupURL string `env:"GEO_LOOKUP_URL"`
}

func (a Analytics) Enabled() bool { return a.DSN != "" }

// MinIO is disabled when Endpoint is empty; images are then kept inline.
type MinIO struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"ayangquest"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
	PublicURL string `env:"PUBLIC_URL"`
}

func (m MinIO) Enabled() bool { return m.Endpoint != "" }

// Load reads the environment, after seeding it from dotenvFiles when they
// exist. Variables already set in the environment win.
func Load(dotenvFiles ...string) (*Config, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	switch c.GameStore {
	case "sqlite":
	case "redis":
		if c.RedisURL == "" {
			return errors.New("GAME_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown GAME_STORE %q", c.GameStore)
	}
	switch c.Analytics.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown ANALYTICS_DRIVER %q", c.Analytics.Driver)
	}
	if c.GameMaxPayload <= 0 {
		return errors.New("GAME_MAX_PAYLOAD_BYTES must be positive")
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	return nil
}
