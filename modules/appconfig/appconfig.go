package appconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"streamhub/modules/db/postgres"
	"streamhub/modules/db/redis"
	"streamhub/modules/hmac"
	"streamhub/modules/keys"
	"streamhub/modules/middleware/ratelimit"
	"streamhub/modules/server"
	"streamhub/modules/telemetry"

	"github.com/caarlos0/env/v11"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"

	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type (
	Config struct {
		Env string `env:"ENV" envDefault:"dev"`

		// postgres, or memory for a throwaway single-node instance
		Store string `env:"STORE" envDefault:"postgres"`

		Log  LogConfig  `envPrefix:"LOG_"`
		HTTP HTTPConfig `envPrefix:"HTTP_"`

		// --- core infra ----
		HMAC     hmac.HMACConfig         `envPrefix:"HMAC_"`
		Keys     keys.Config             `envPrefix:"KEYS_"`
		Token    TokenConfig             `envPrefix:"TOKEN_"`
		Redis    redis.RedisConfig       `envPrefix:"REDIS_"`
		Postgres postgres.PostgresConfig `envPrefix:"POSTGRES_"`

		CursorTTL     time.Duration `env:"CURSOR_TTL" envDefault:"24h"`
		StreamURLBase string        `env:"STREAM_URL_BASE" envDefault:"rtmp://localhost/stream/"`

		// --- middlewares ----
		RateLimit ratelimit.RestHTTPConfig `envPrefix:"RATE_LIMIT_"`

		// --- otel ----
		// OTEL_* names follow the OpenTelemetry conventions, so no prefix
		Otel telemetry.Config
	}

	LogConfig struct {
		Level  string `env:"LEVEL" envDefault:"info"`
		Format string `env:"FORMAT" envDefault:"text"`
	}

	HTTPConfig struct {
		Host            string        `env:"HOST" envDefault:"0.0.0.0"`
		Port            int           `env:"PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	}

	TokenConfig struct {
		TTL    time.Duration `env:"TTL" envDefault:"1h"`
		Leeway time.Duration `env:"LEEWAY" envDefault:"0s"`
		Issuer string        `env:"ISSUER" envDefault:"streamhub"`
	}
)

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(c *Config) error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	switch c.Env {
	case EnvDev, EnvProd:
	default:
		invalid("ENV must be %q or %q", EnvDev, EnvProd)
	}
	if c.Env == EnvProd && c.HMAC.Secret == hmac.DevSecret {
		invalid("HMAC_SECRET must be set in %s", EnvProd)
	}
	if len(c.HMAC.Secret) < hmac.MinKeyLen {
		invalid("HMAC_SECRET shorter than %d bytes", hmac.MinKeyLen)
	}
	if c.Token.TTL <= 0 {
		invalid("TOKEN_TTL must be positive")
	}
	if c.Token.Leeway < 0 {
		invalid("TOKEN_LEEWAY must not be negative")
	}
	if c.CursorTTL <= 0 {
		invalid("CURSOR_TTL must be positive")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > server.MAX_TCP_PORT {
		invalid("HTTP_PORT %d out of range", c.HTTP.Port)
	}
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		invalid("STORE must be %q or %q", StorePostgres, StoreMemory)
	}
	if c.Env == EnvProd && c.Store == StoreMemory {
		invalid("STORE=%s is not allowed in %s", StoreMemory, EnvProd)
	}
	switch c.RateLimit.Backend {
	case ratelimit.BackendMemory:
	case ratelimit.BackendRedis:
		if !c.Redis.Enabled() {
			invalid("RATE_LIMIT_BACKEND=redis needs REDIS_URL")
		}
	default:
		invalid("RATE_LIMIT_BACKEND must be %q or %q", ratelimit.BackendMemory, ratelimit.BackendRedis)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		invalid("LOG_LEVEL: %v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "pretty":
	default:
		invalid("LOG_FORMAT must be text, json or pretty")
	}
	return errors.Join(errs...)
}

// ParseLevel accepts the slog level names, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(s))
	return l, err
}
