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

package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamhub/core/stream/domain"
	"streamhub/modules/db"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"
)

var _ domain.StreamWriteStore = (*PostgresStreamWriter)(nil)

type (
	// PostgresStreamWriter prepares its statements once on the primary and
	// rebinds them to each transaction.
	PostgresStreamWriter struct {
		table string
		txm   db.TxManager

		createStmt bob.QueryStmt[createStreamArgs, StreamRow, []StreamRow]
		updateStmt bob.QueryStmt[updateStreamArgs, StreamRow, []StreamRow]
		statusStmt bob.QueryStmt[statusArgs, StreamRow, []StreamRow]
		deleteStmt bob.QueryStmt[deleteStreamArgs, int64, []int64]
	}

	createStreamArgs struct {
		Title       string `db:"title"`
		Description string `db:"description"`
		Owner       string `db:"owner_username"`
	}

	updateStreamArgs struct {
		ID          int64  `db:"id"`
		Title       string `db:"title"`
		Description string `db:"description"`
		Version     int64  `db:"version_number"`
	}

	statusArgs struct {
		ID      int64  `db:"id"`
		Status  string `db:"status"`
		Rank    int    `db:"status_rank"`
		Version int64  `db:"version_number"`
	}

	deleteStreamArgs struct {
		ID      int64 `db:"id"`
		Version int64 `db:"version_number"`
	}
)

func NewPostgresStreamWriter(ctx context.Context, pool db.ConnectionPool, table string) (*PostgresStreamWriter, error) {
	if table == "" {
		table = DefaultTable
	}
	primary, ok := pool.Writer().(bob.DB)
	if !ok {
		return nil, fmt.Errorf("stream writer: primary is %T, want bob.DB", pool.Writer())
	}
	w := &PostgresStreamWriter{table: table, txm: pool}

	insertQuery := psql.Insert(
		im.Into(table, "title", "description", "owner_username", "status", "status_rank"),
		im.Values(
			bob.Named("title"),
			bob.Named("description"),
			bob.Named("owner_username"),
			psql.Arg(string(domain.StatusCreated)),
			psql.Arg(domain.StatusCreated.Rank()),
		),
		im.Returning(streamColumns...),
	)
	var err error
	w.createStmt, err = bob.PrepareQuery[createStreamArgs](ctx, primary, insertQuery, scan.StructMapper[StreamRow]())
	if err != nil {
		return nil, fmt.Errorf("prepare create stream: %w", err)
	}

	updateQuery := psql.Update(
		um.Table(table),
		um.SetCol("title").To(bob.Named("title")),
		um.SetCol("description").To(bob.Named("description")),
		um.SetCol("updated_at").To(psql.Raw("CURRENT_TIMESTAMP")),
		um.SetCol("version_number").To(psql.Raw("version_number + 1")),
		um.Where(psql.Quote("id").EQ(bob.Named("id"))),
		um.Where(psql.Quote("version_number").EQ(bob.Named("version_number"))),
		um.Returning(streamColumns...),
	)
	w.updateStmt, err = bob.PrepareQuery[updateStreamArgs](ctx, primary, updateQuery, scan.StructMapper[StreamRow]())
	if err != nil {
		return nil, fmt.Errorf("prepare update stream: %w", err)
	}

	statusQuery := psql.Update(
		um.Table(table),
		um.SetCol("status").To(bob.Named("status")),
		um.SetCol("status_rank").To(bob.Named("status_rank")),
		um.SetCol("updated_at").To(psql.Raw("CURRENT_TIMESTAMP")),
		um.SetCol("version_number").To(psql.Raw("version_number + 1")),
		um.Where(psql.Quote("id").EQ(bob.Named("id"))),
		um.Where(psql.Quote("version_number").EQ(bob.Named("version_number"))),
		um.Returning(streamColumns...),
	)
	w.statusStmt, err = bob.PrepareQuery[statusArgs](ctx, primary, statusQuery, scan.StructMapper[StreamRow]())
	if err != nil {
		return nil, fmt.Errorf("prepare set stream status: %w", err)
	}

	deleteQuery := psql.Delete(
		dm.From(table),
		dm.Where(psql.Quote("id").EQ(bob.Named("id"))),
		dm.Where(psql.Quote("version_number").EQ(bob.Named("version_number"))),
		dm.Returning("id"),
	)
	w.deleteStmt, err = bob.PrepareQuery[deleteStreamArgs](ctx, primary, deleteQuery, scan.SingleColumnMapper[int64])
	if err != nil {
		return nil, fmt.Errorf("prepare delete stream: %w", err)
	}

	return w, nil
}

func (w *PostgresStreamWriter) WithTx(
	ctx context.Context,
	fn func(ctx context.Context, tx domain.StreamWriteTx) error,
) error {
	return w.txm.WithTx(ctx, w.bind(fn))
}

func (w *PostgresStreamWriter) WithTimeoutTx(
	ctx context.Context,
	timeout time.Duration,
	fn func(ctx context.Context, tx domain.StreamWriteTx) error,
) error {
	return w.txm.WithTimeoutTx(ctx, timeout, w.bind(fn))
}

func (w *PostgresStreamWriter) bind(fn func(ctx context.Context, tx domain.StreamWriteTx) error) db.TxFn {
	return func(ctx context.Context, q db.Querier) error {
		tx, ok := q.(bob.Tx)
		if !ok {
			return fmt.Errorf("querier is not a transaction")
		}
		return fn(ctx, &streamWriterTx{parent: w, tx: tx})
	}
}

type streamWriterTx struct {
	parent *PostgresStreamWriter
	tx     bob.Tx
}

var _ domain.StreamWriteTx = (*streamWriterTx)(nil)

func (t *streamWriterTx) CreateStream(ctx context.Context, owner, title, description string) (*domain.Stream, error) {
	row, err := inTxQueryStmt(ctx, t.parent.createStmt, t.tx).One(ctx, createStreamArgs{
		Title:       title,
		Description: description,
		Owner:       owner,
	})
	if err != nil {
		return nil, wrapStreamError(err)
	}
	s := toStream(row)
	return &s, nil
}

func (t *streamWriterTx) GetStreamForUpdate(ctx context.Context, id int64) (*domain.Stream, error) {
	query := psql.Select(
		sm.Columns(streamColumns...),
		sm.From(t.parent.table),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
		sm.ForUpdate(),
	)
	row, err := bob.One(ctx, t.tx, query, scan.StructMapper[StreamRow]())
	if err != nil {
		return nil, wrapStreamError(err)
	}
	s := toStream(row)
	return &s, nil
}

// versioned turns "no row matched id+version" into ErrPrecondition; the row
// was already locked by GetStreamForUpdate, so a miss means a stale version.
func versioned(err error) error {
	err = wrapStreamError(err)
	if errors.Is(err, domain.ErrStreamNotFound) {
		return domain.ErrPrecondition
	}
	return err
}

func (t *streamWriterTx) UpdateStream(ctx context.Context, p *domain.UpdateStreamParams) (*domain.Stream, error) {
	row, err := inTxQueryStmt(ctx, t.parent.updateStmt, t.tx).One(ctx, updateStreamArgs{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Version:     p.Version,
	})
	if err != nil {
		return nil, versioned(err)
	}
	s := toStream(row)
	return &s, nil
}

func (t *streamWriterTx) SetStatus(ctx context.Context, id int64, status domain.Status, version int64) (*domain.Stream, error) {
	row, err := inTxQueryStmt(ctx, t.parent.statusStmt, t.tx).One(ctx, statusArgs{
		ID:      id,
		Status:  string(status),
		Rank:    status.Rank(),
		Version: version,
	})
	if err != nil {
		return nil, versioned(err)
	}
	s := toStream(row)
	return &s, nil
}

func (t *streamWriterTx) DeleteStream(ctx context.Context, id int64, version int64) error {
	_, err := inTxQueryStmt(ctx, t.parent.deleteStmt, t.tx).One(ctx, deleteStreamArgs{ID: id, Version: version})
	if err != nil {
		return versioned(err)
	}
	return nil
}
