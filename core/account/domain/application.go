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

package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"streamhub/modules/token"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLen = 6
	MaxPasswordLen = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,50}$`)

type Option func(*Application)

// WithHashCost sets the bcrypt cost; out-of-range values keep the default.
func WithHashCost(cost int) Option {
	return func(a *Application) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			a.hashCost = cost
		}
	}
}

func NewApp(users UserStore, issuer AuthIssuer, opts ...Option) (*Application, error) {
	app := &Application{users: users, issuer: issuer, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	// Compared against when the username is unknown so that a miss costs
	// the same as a wrong password.
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.Must(uuid.NewV4()).String()), app.hashCost)
	if err != nil {
		return nil, fmt.Errorf("account: prepare dummy hash: %w", err)
	}
	app.dummy = dummy
	return app, nil
}

func validCredentials(username, password string) bool {
	return usernamePattern.MatchString(username) &&
		len(password) >= MinPasswordLen && len(password) <= MaxPasswordLen
}

func (app *Application) Register(ctx context.Context, username, password string) (*User, error) {
	if !validCredentials(username, password) {
		return nil, ErrInvalidData
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), app.hashCost)
	if err != nil {
		slog.ErrorContext(ctx, "hash password", slog.Any("error", err))
		return nil, ErrUnhandled
	}
	id, err := uuid.NewV7()
	if err != nil {
		slog.ErrorContext(ctx, "generate user id", slog.Any("error", err))
		return nil, ErrUnhandled
	}

	created, err := app.users.CreateUser(ctx, User{
		ID:           id,
		Username:     username,
		PasswordHash: string(hash),
		Roles:        []string{RoleUser},
	})
	if err == nil {
		slog.InfoContext(ctx, "registered user", slog.String("username", username))
		return created, nil
	}
	if errors.Is(err, ErrDuplicateUsername) {
		slog.InfoContext(ctx, "duplicate username", slog.String("username", username))
		return nil, ErrDuplicateUsername
	}
	slog.ErrorContext(ctx, "unexpected error", slog.Any("error", err))
	return nil, ErrUnhandled
}

// Login checks the password and issues an auth token whose subject is the
// username. Unknown users and wrong passwords fail the same way.
func (app *Application) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" || len(password) > MaxPasswordLen {
		return nil, ErrInvalidCredentials
	}

	u, err := app.users.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, ErrUserNotFound):
		_ = bcrypt.CompareHashAndPassword(app.dummy, []byte(password))
		slog.InfoContext(ctx, "login failed", slog.String("username", username))
		return nil, ErrInvalidCredentials
	case err != nil:
		slog.ErrorContext(ctx, "unexpected error", slog.Any("error", err))
		return nil, ErrUnhandled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		slog.InfoContext(ctx, "login failed", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}

	signed, exp, err := app.issuer.IssueWithExpiry(u.Username, token.Claims{Roles: u.Roles})
	if err != nil {
		slog.ErrorContext(ctx, "auth token signing failed", slog.Any("error", err))
		return nil, err
	}
	slog.InfoContext(ctx, "user logged in", slog.String("username", username))
	return &LoginResult{Token: signed, TokenType: "Bearer", Username: u.Username, ExpiresAt: exp}, nil
}

// Me returns the account behind an authenticated principal.
func (app *Application) Me(ctx context.Context, username string) (*User, error) {
	if username == "" {
		return nil, ErrInvalidData
	}
	u, err := app.users.GetUserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	slog.ErrorContext(ctx, "unexpected error", slog.Any("error", err))
	return nil, ErrUnhandled
}
