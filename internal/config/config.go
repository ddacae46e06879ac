package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Storage backends, picked from whichever connection setting is present.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	Port       int    `env:"PORT" envDefault:"3000" validate:"min=1,max=65535"`
	AdminToken string `env:"ADMIN_TOKEN"`

	DatabaseURL string `env:"DATABASE_URL"`
	DBPath      string `env:"DB_PATH"`

	RPName             string        `env:"RP_NAME" envDefault:"Open Kounter" validate:"required"`
	ChallengeTTL       time.Duration `env:"CHALLENGE_TTL" envDefault:"5m" validate:"gt=0"`
	ManagementTokenTTL time.Duration `env:"MANAGEMENT_TOKEN_TTL" envDefault:"5m" validate:"gt=0"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m" validate:"gt=0"`

	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	// TrustProxy honours X-Forwarded-Proto and X-Forwarded-Host when
	// deriving the relying party.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`
}

var validate = validator.New()

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Backend names the storage backend. DATABASE_URL wins over DB_PATH; with
// neither set data lives in memory only.
func (c Config) Backend() string {
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.DBPath != "":
		return BackendSQLite
	default:
		return BackendMemory
	}
}
