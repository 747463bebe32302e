package pg

import (
	"database/sql"
	"testing"

	"streamhub/core/account/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestToUserSplitsRoles(t *testing.T) {
	u := toUser(UserRow{Username: "alice", Roles: "ROLE_USER, ROLE_ADMIN,"})
	assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN"}, u.Roles)

	assert.Empty(t, toUser(UserRow{}).Roles)
}

func TestWrapUserError(t *testing.T) {
	assert.ErrorIs(t, wrapUserError(sql.ErrNoRows), domain.ErrUserNotFound)
	assert.ErrorIs(t, wrapUserError(&pgconn.PgError{Code: "23505"}), domain.ErrDuplicateUsername)
	assert.ErrorIs(t, wrapUserError(&pgconn.PgError{Code: "23514"}), domain.ErrInvalidData)
	assert.NoError(t, wrapUserError(nil))
}
