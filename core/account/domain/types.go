package domain

import (
	"context"
	"strconv"
	"time"

	"streamhub/modules/token"

	"github.com/gofrs/uuid/v5"
)

const RoleUser = "ROLE_USER"

type (
	Application struct {
		users    UserStore
		issuer   AuthIssuer
		hashCost int
		dummy    []byte
	}

	User struct {
		ID           uuid.UUID
		Username     string
		PasswordHash string
		Roles        []string
		CreatedAt    time.Time

		Version int64
	}

	LoginResult struct {
		Token     string
		TokenType string
		Username  string
		ExpiresAt time.Time
	}

	// UserStore persists accounts. Usernames are unique.
	UserStore interface {
		// CreateUser returns ErrDuplicateUsername when the name is taken.
		CreateUser(ctx context.Context, u User) (*User, error)
		// GetUserByUsername returns ErrUserNotFound when absent.
		GetUserByUsername(ctx context.Context, username string) (*User, error)
	}

	// AuthIssuer mints auth-domain tokens; satisfied by *token.Issuer.
	AuthIssuer interface {
		IssueWithExpiry(subject string, claims token.Claims) (string, time.Time, error)
	}
)

func (u *User) V() string {
	return strconv.FormatInt(u.Version, 10)
}
