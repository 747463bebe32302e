// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"streamhub/modules/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"
)

var _ db.ConnectionPool = (*PostgresConnectionPool)(nil)

type PostgresConnectionPool struct {
	writer  bob.DB
	readers []bob.DB

	migrator *Migrator
}

func New(
	ctx context.Context,
	config *PostgresConfig,
	opts PostgresOptions,
) (*PostgresConnectionPool, error) {
	writer, err := initDBFromConfig(ctx, &config.WriteConfig, opts.WriterOptions...)
	if err != nil {
		return nil, err
	}

	var readers []bob.DB
	for _, r := range config.ReadConfigs {
		reader, err := initDBFromConfig(ctx, &r, opts.ReaderOptions...)
		if err != nil {
			// A replica that cannot be reached at boot is skipped; reads fall
			// back to the primary when none are left.
			slog.WarnContext(ctx, "skipping postgres replica", slog.String("url", r.Redacted()), slog.Any("error", err))
			continue
		}
		readers = append(readers, reader)
	}

	return &PostgresConnectionPool{
		writer:   writer,
		readers:  readers,
		migrator: NewMigrator(config.WriteConfig.URL()),
	}, nil
}

func initDBFromConfig(
	ctx context.Context,
	config *PoolConfig,
	opts ...PgxConfigOption,
) (bob.DB, error) {
	slog.DebugContext(ctx, "postgres pool", slog.String("url", config.Redacted()))
	poolConfig, err := pgxpool.ParseConfig(config.URL().String())
	if err != nil {
		return bob.DB{}, err
	}

	for _, opt := range opts {
		if opt != nil {
			opt(poolConfig)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return bob.DB{}, err
	}
	return bob.NewDB(stdlib.OpenDBFromPool(pool)), nil
}

func (p *PostgresConnectionPool) HealthCheck(ctx context.Context) error {
	_, err := p.writer.ExecContext(ctx, "SELECT 1")
	return err
}

func (p *PostgresConnectionPool) MigrateUp() error {
	return p.migrator.Up()
}

func (p *PostgresConnectionPool) MigrateDown() error {
	return p.migrator.Down()
}

func (p *PostgresConnectionPool) PendingMigrations() (int, error) {
	return p.migrator.Pending()
}

// Reader picks a replica at random and falls back to the primary.
func (p *PostgresConnectionPool) Reader() db.Querier {
	if len(p.readers) == 0 {
		return p.Writer()
	}
	return p.readers[rand.IntN(len(p.readers))]
}

func (p *PostgresConnectionPool) Writer() db.Querier {
	return p.writer
}

func (p *PostgresConnectionPool) WithTimeoutTx(ctx context.Context, timeout time.Duration, fn db.TxFn) error {
	ctx, stop := context.WithTimeout(ctx, timeout)
	defer stop()

	return p.WithTx(ctx, fn)
}

// WithTx runs fn at READ COMMITTED; row locks taken inside fn
// (SELECT ... FOR UPDATE) serialise competing writers.
func (p *PostgresConnectionPool) WithTx(ctx context.Context, fn db.TxFn) error {
	return p.writer.RunInTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	}, func(ctx context.Context, exec bob.Executor) error {
		return fn(ctx, exec)
	})
}

func (p *PostgresConnectionPool) Shutdown(_ context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error
	if err := p.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, reader := range p.readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	// single, flat join
	return errors.Join(errs...)
}
