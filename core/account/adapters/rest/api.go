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

package rest

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"streamhub/core/account/domain"
	"streamhub/modules/api/serde"
	"streamhub/modules/etag"
	"streamhub/modules/middleware/auth"
	"streamhub/modules/middleware/problem"
)

// AccountAPI serves registration, login and the caller's own profile.
type AccountAPI struct {
	app          *domain.Application
	authenticate func(http.Handler) http.Handler
	authKeys     http.Handler
}

func NewAccountAPI(app *domain.Application, authenticate func(http.Handler) http.Handler, authKeys http.Handler) *AccountAPI {
	return &AccountAPI{app: app, authenticate: authenticate, authKeys: authKeys}
}

func (a *AccountAPI) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", a.Register)
	mux.HandleFunc("POST /api/auth/login", a.Login)
	mux.Handle("GET /api/auth/me", a.authenticate(http.HandlerFunc(a.Me)))
	if a.authKeys != nil {
		mux.Handle("GET /api/auth/jwks", a.authKeys)
	}
}

type (
	credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	userResponse struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Roles     []string  `json:"roles"`
		CreatedAt time.Time `json:"createdAt"`
	}

	loginResponse struct {
		Token     string    `json:"token"`
		TokenType string    `json:"tokenType"`
		Username  string    `json:"username"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
)

func mapUser(u *domain.User) userResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userResponse{ID: u.ID.String(), Username: u.Username, Roles: roles, CreatedAt: u.CreatedAt.UTC()}
}

// ProblemFromDomainError maps account domain errors to problem details.
func ProblemFromDomainError(err error) *problem.Problem {
	switch {
	case errors.Is(err, domain.ErrDuplicateUsername):
		return problem.Conflict("username is already taken", problem.WithInvalidParam("username", "already taken"))
	case errors.Is(err, domain.ErrInvalidCredentials):
		return problem.Unauthorized("invalid username or password")
	case errors.Is(err, domain.ErrUserNotFound):
		return problem.NotFound("user not found")
	case errors.Is(err, domain.ErrInvalidData):
		return problem.UnprocessableEntity("invalid account data",
			problem.WithInvalidParam("username", "3 to 50 characters of letters, digits, '_', '.' or '-'"),
			problem.WithInvalidParam("password", "6 to 72 bytes"),
		)
	default:
		return problem.Internal("server error")
	}
}

func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var body credentials
	if err := serde.ParseJsonBody(r.Body, &body); err != nil {
		slog.DebugContext(r.Context(), "invalid request body", slog.Any("error", err))
		problem.Write(w, problem.BadRequest("invalid request body", problem.WithInvalidParam("body", "malformed JSON")))
		return body, false
	}
	return body, true
}

// Register answers 201 with the new account.
func (a *AccountAPI) Register(w http.ResponseWriter, r *http.Request) {
	body, ok := readCredentials(w, r)
	if !ok {
		return
	}
	u, err := a.app.Register(r.Context(), body.Username, body.Password)
	if err != nil {
		problem.Write(w, ProblemFromDomainError(err))
		return
	}
	w.Header().Set("ETag", etag.Header(u))
	serde.WriteJSON(w, http.StatusCreated, mapUser(u))
}

// Login exchanges credentials for an auth-domain bearer token.
func (a *AccountAPI) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := readCredentials(w, r)
	if !ok {
		return
	}
	res, err := a.app.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		problem.Write(w, ProblemFromDomainError(err))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	serde.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		TokenType: res.TokenType,
		Username:  res.Username,
		ExpiresAt: res.ExpiresAt.UTC(),
	})
}

func (a *AccountAPI) Me(w http.ResponseWriter, r *http.Request) {
	u, err := a.app.Me(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		problem.Write(w, ProblemFromDomainError(err))
		return
	}
	w.Header().Set("ETag", etag.Header(u))
	serde.WriteJSON(w, http.StatusOK, mapUser(u))
}
