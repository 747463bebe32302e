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

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"streamhub/modules/middleware/problem"
	"streamhub/modules/token"
)

const unauthorizedDetail = "invalid or missing bearer token"

type principalKey struct{}

// Verifier checks a compact token; satisfied by *token.Verifier.
type Verifier interface {
	Verify(raw string) (*token.Claims, error)
}

// WithPrincipal stores verified claims in ctx.
func WithPrincipal(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, principalKey{}, claims)
}

// PrincipalFrom returns the claims stored by Bearer, if any.
func PrincipalFrom(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(principalKey{}).(*token.Claims)
	return c, ok && c != nil
}

// Subject returns the authenticated subject or "".
func Subject(ctx context.Context) string {
	if c, ok := PrincipalFrom(ctx); ok {
		return c.Subject
	}
	return ""
}

// BearerToken extracts the credentials of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, cred, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	cred = strings.TrimSpace(cred)
	return cred, cred != ""
}

// Bearer rejects requests without a valid auth-domain token. Every failure
// gets the same 401 response; the reason is only logged at debug level.
func Bearer(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				slog.DebugContext(r.Context(), "bearer token missing")
				Unauthorized(w)
				return
			}
			claims, err := v.Verify(raw)
			if err != nil || claims.Subject == "" {
				slog.DebugContext(r.Context(), "bearer token rejected", slog.Any("error", err))
				Unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), claims)))
		})
	}
}

// Unauthorized writes the 401 problem shared by every authentication failure.
func Unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="streamhub"`)
	problem.Write(w, problem.Unauthorized(unauthorizedDetail))
}
