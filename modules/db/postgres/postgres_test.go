package postgres

import (
	"io/fs"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfigURL(t *testing.T) {
	cfg := PoolConfig{
		Host:         "db.internal",
		Port:         6432,
		User:         "app",
		Password:     "p@ss/word",
		Database:     "streamhub",
		SSLMode:      "require",
		PoolMaxConns: 8,
	}
	u := cfg.URL()

	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:6432", u.Host)
	assert.Equal(t, "/streamhub", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss/word", pw)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "8", u.Query().Get("pool_max_conns"))

	parsed, err := url.Parse(u.String())
	require.NoError(t, err)
	pw, _ = parsed.User.Password()
	assert.Equal(t, "p@ss/word", pw)

	assert.NotContains(t, cfg.Redacted(), "p@ss")
}

func TestMigratorDropsPoolParameters(t *testing.T) {
	u := PoolConfig{Host: "h", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable", PoolMaxConns: 5}.URL()
	m := NewMigrator(u)

	assert.Empty(t, m.db.DatabaseURL.Query().Get("pool_max_conns"))
	assert.Equal(t, "disable", m.db.DatabaseURL.Query().Get("sslmode"))
	assert.Equal(t, "5", u.Query().Get("pool_max_conns"), "caller's URL must not change")
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		body, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- migrate:up", e.Name())
		assert.Contains(t, string(body), "-- migrate:down", e.Name())
		assert.True(t, strings.HasSuffix(e.Name(), ".sql"))
	}
}
