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
	"database/sql"
	"errors"
	"time"

	"streamhub/core/stream/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stephenafamo/bob"
)

const DefaultTable = "streams"

var streamColumns = []any{
	"id", "title", "description", "status", "owner_username",
	"created_at", "updated_at", "version_number",
}

type StreamRow struct {
	ID            int64     `db:"id"`
	Title         string    `db:"title"`
	Description   string    `db:"description"`
	Status        string    `db:"status"`
	OwnerUsername string    `db:"owner_username"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
	Version       int64     `db:"version_number"`
}

func toStream(row StreamRow) domain.Stream {
	return domain.Stream{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Status:      domain.Status(row.Status),
		Owner:       row.OwnerUsername,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		Version:     row.Version,
	}
}

type streamTransformer struct{}

func (streamTransformer) TransformScanned(rows []StreamRow) ([]domain.Stream, error) {
	out := make([]domain.Stream, len(rows))
	for i, r := range rows {
		out[i] = toStream(r)
	}
	return out, nil
}

// wrapStreamError maps driver errors onto domain errors.
func wrapStreamError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrStreamNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation: owner vanished
			return domain.ErrInvalidData
		case "23514": // check_violation
			return domain.ErrInvalidData
		case "40001": // serialization_failure
			return domain.ErrPrecondition
		}
	}
	return err
}

func inTxQueryStmt[Arg any, T any, Ts ~[]T](
	ctx context.Context,
	stmt bob.QueryStmt[Arg, T, Ts],
	tx bob.Tx,
) bob.QueryStmt[Arg, T, Ts] {
	txStmt := stmt
	txStmt.Stmt = bob.InTx(ctx, stmt.Stmt, tx)
	return txStmt
}
