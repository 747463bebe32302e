package pg

import (
	"context"
	"log/slog"
	"time"

	"streamhub/core/stream/domain"
	"streamhub/modules/db"

	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"
)

var _ domain.StreamReadStore = (*PostgresStreamReader)(nil)

// PostgresStreamReader resolves pool.Reader() per query so reads spread
// across replicas.
type PostgresStreamReader struct {
	table string
	pool  db.ReaderConnectionManager
}

func NewPostgresStreamReader(pool db.ReaderConnectionManager, table string) *PostgresStreamReader {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStreamReader{table: table, pool: pool}
}

func (r *PostgresStreamReader) GetStreamByID(ctx context.Context, id int64) (*domain.Stream, error) {
	query := psql.Select(
		sm.Columns(streamColumns...),
		sm.From(r.table),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)
	row, err := bob.One(ctx, r.pool.Reader(), query, scan.StructMapper[StreamRow]())
	if err != nil {
		return nil, wrapStreamError(err)
	}
	s := toStream(row)
	return &s, nil
}

// ListStreams orders by (status_rank ASC, created_at DESC, id DESC). The
// mixed directions rule out a row-value comparison, so the "strictly after"
// predicate is spelled out per column.
func (r *PostgresStreamReader) ListStreams(
	ctx context.Context,
	filter domain.ListFilter,
	after *domain.StreamKey,
	limit int,
) ([]domain.Stream, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidData
	}

	query := psql.Select(
		sm.Columns(streamColumns...),
		sm.From(r.table),
		sm.OrderBy("status_rank").Asc(),
		sm.OrderBy("created_at").Desc(),
		sm.OrderBy("id").Desc(),
		sm.Limit(limit),
	)
	for _, mod := range filterMods(filter, after) {
		query.Apply(mod)
	}

	streams, err := bob.Allx[streamTransformer](ctx, r.pool.Reader(), query, scan.StructMapper[StreamRow]())
	if err != nil {
		slog.ErrorContext(ctx, "ListStreams query error", slog.Any("err", err))
		return nil, wrapStreamError(err)
	}
	return streams, nil
}

func filterMods(filter domain.ListFilter, after *domain.StreamKey) []bob.Mod[*dialect.SelectQuery] {
	var mods []bob.Mod[*dialect.SelectQuery]
	if filter.Owner != "" {
		mods = append(mods, sm.Where(psql.Quote("owner_username").EQ(psql.Arg(filter.Owner))))
	}
	if filter.Status != "" {
		mods = append(mods, sm.Where(psql.Quote("status").EQ(psql.Arg(string(filter.Status)))))
	}
	if after != nil {
		mods = append(mods, sm.Where(afterKey(*after)))
	}
	return mods
}

func afterKey(k domain.StreamKey) bob.Expression {
	rank := psql.Quote("status_rank")
	created := psql.Quote("created_at")
	id := psql.Quote("id")
	createdAt := time.UnixMicro(k.CreatedAt).UTC()

	return psql.Group(
		rank.GT(psql.Arg(k.Rank)).Or(
			psql.Group(rank.EQ(psql.Arg(k.Rank)).And(created.LT(psql.Arg(createdAt)))),
			psql.Group(rank.EQ(psql.Arg(k.Rank)).And(created.EQ(psql.Arg(createdAt))).And(id.LT(psql.Arg(k.ID)))),
		),
	)
}
