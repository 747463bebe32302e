package appconfig

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"streamhub/modules/hmac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.Env)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, time.Hour, cfg.Token.TTL)
	assert.Equal(t, 24*time.Hour, cfg.CursorTTL)
	assert.Equal(t, "rtmp://localhost/stream/", cfg.StreamURLBase)
	assert.Equal(t, "auth-key", cfg.Keys.AuthKeyID)
	assert.Equal(t, "mediamtx-key", cfg.Keys.PublishKeyID)
	assert.Equal(t, hmac.DevSecret, cfg.HMAC.Secret)
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Otel.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("HMAC_SECRET", strings.Repeat("s", 40))
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("TOKEN_TTL", "15m")
	t.Setenv("STREAM_URL_BASE", "rtmp://relay.example/live/")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("RATE_LIMIT_ROUTE_0_PATTERN", "/api/auth/login")
	t.Setenv("RATE_LIMIT_ROUTE_0_POLICY_0_METHOD", "POST")
	t.Setenv("RATE_LIMIT_ROUTE_0_POLICY_0_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.Equal(t, 15*time.Minute, cfg.Token.TTL)
	assert.Equal(t, "rtmp://relay.example/live/", cfg.StreamURLBase)
	require.Len(t, cfg.RateLimit.Routes, 1)
	require.Len(t, cfg.RateLimit.Routes[0].EndpointRules, 1)
	assert.Equal(t, int64(3), cfg.RateLimit.Routes[0].EndpointRules[0].Limit)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"prod on dev secret":   {"ENV": "prod"},
		"short secret":         {"HMAC_SECRET": "short"},
		"zero ttl":             {"TOKEN_TTL": "0s"},
		"negative cursor ttl":  {"CURSOR_TTL": "-1h"},
		"port out of range":    {"HTTP_PORT": "70000"},
		"unknown env":          {"ENV": "staging"},
		"unknown store":        {"STORE": "sqlite"},
		"memory store in prod": {"ENV": "prod", "HMAC_SECRET": strings.Repeat("s", 40), "STORE": "memory"},
		"redis without url":    {"RATE_LIMIT_BACKEND": "redis"},
		"bad log level":        {"LOG_LEVEL": "loud"},
		"bad log format":       {"LOG_FORMAT": "xml"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	l, err = ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
}
