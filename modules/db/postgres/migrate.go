package postgres

import (
	"bytes"
	"embed"
	"log/slog"
	"net/url"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded migrations to one database.
type Migrator struct {
	db *dbmate.DB
}

func NewMigrator(u *url.URL) *Migrator {
	// pgx pool parameters are not understood by lib/pq, which dbmate uses.
	clean := *u
	q := clean.Query()
	q.Del("pool_max_conns")
	clean.RawQuery = q.Encode()

	m := dbmate.New(&clean)
	m.FS = migrationsFS
	m.MigrationsDir = []string{"migrations"}
	m.AutoDumpSchema = false
	m.Log = slogWriter{}
	return &Migrator{db: m}
}

// Up creates the database when missing and applies pending migrations.
func (m *Migrator) Up() error { return m.db.CreateAndMigrate() }

// Down rolls back the most recent migration.
func (m *Migrator) Down() error { return m.db.Rollback() }

// Pending counts migrations not yet applied.
func (m *Migrator) Pending() (int, error) { return m.db.Status(true) }

type slogWriter struct{}

func (slogWriter) Write(p []byte) (int, error) {
	if msg := bytes.TrimSpace(p); len(msg) > 0 {
		slog.Info("migrate", slog.String("msg", string(msg)))
	}
	return len(p), nil
}
