package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"streamhub/core/account/domain"
	"streamhub/modules/db"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"
)

const DefaultTable = "users"

var _ domain.UserStore = (*PostgresUserStore)(nil)

var userColumns = []any{"id", "username", "password_hash", "roles", "created_at", "version_number"}

// UserRow stores roles as a comma separated list.
type UserRow struct {
	ID           uuid.UUID `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Roles        string    `db:"roles"`
	CreatedAt    time.Time `db:"created_at"`
	Version      int64     `db:"version_number"`
}

func toUser(row UserRow) domain.User {
	var roles []string
	for r := range strings.SplitSeq(row.Roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return domain.User{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		Roles:        roles,
		CreatedAt:    row.CreatedAt,
		Version:      row.Version,
	}
}

func wrapUserError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return domain.ErrDuplicateUsername
		case "23514": // check_violation
			return domain.ErrInvalidData
		}
	}
	return err
}

// PostgresUserStore writes to the primary and reads logins from the primary
// too, so a user can log in right after registering.
type PostgresUserStore struct {
	table string
	pool  db.ConnectionManager
}

func NewPostgresUserStore(pool db.ConnectionManager, table string) *PostgresUserStore {
	if table == "" {
		table = DefaultTable
	}
	return &PostgresUserStore{table: table, pool: pool}
}

func (s *PostgresUserStore) CreateUser(ctx context.Context, u domain.User) (*domain.User, error) {
	query := psql.Insert(
		im.Into(s.table, "id", "username", "password_hash", "roles"),
		im.Values(
			psql.Arg(u.ID),
			psql.Arg(u.Username),
			psql.Arg(u.PasswordHash),
			psql.Arg(strings.Join(u.Roles, ",")),
		),
		im.Returning(userColumns...),
	)
	row, err := bob.One(ctx, s.pool.Writer(), query, scan.StructMapper[UserRow]())
	if err != nil {
		return nil, wrapUserError(err)
	}
	created := toUser(row)
	return &created, nil
}

func (s *PostgresUserStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := psql.Select(
		sm.Columns(userColumns...),
		sm.From(s.table),
		sm.Where(psql.Quote("username").EQ(psql.Arg(username))),
	)
	row, err := bob.One(ctx, s.pool.Writer(), query, scan.StructMapper[UserRow]())
	if err != nil {
		return nil, wrapUserError(err)
	}
	u := toUser(row)
	return &u, nil
}
