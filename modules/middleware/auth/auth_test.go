package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"streamhub/modules/clock"
	"streamhub/modules/keys/keystest"
	"streamhub/modules/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*token.Issuer, *token.Issuer, http.Handler, *clock.FakeClock) {
	t.Helper()
	authPair, publishPair := keystest.Pairs(t)
	clk := clock.Fake(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))

	authIssuer, err := token.NewIssuer(authPair, token.WithIssuerClock(clk), token.WithTTL(time.Minute))
	require.NoError(t, err)
	publishIssuer, err := token.NewIssuer(publishPair, token.WithIssuerClock(clk))
	require.NoError(t, err)
	verifier, err := token.NewVerifierForPair(authPair, token.WithVerifierClock(clk))
	require.NoError(t, err)

	h := Bearer(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := PrincipalFrom(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(c.Subject))
	}))
	return authIssuer, publishIssuer, h, clk
}

func call(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBearerAcceptsAuthToken(t *testing.T) {
	issuer, _, h, _ := setup(t)
	raw, err := issuer.Issue("alice", token.Claims{Roles: []string{"ROLE_USER"}})
	require.NoError(t, err)

	rec := call(h, "Bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())

	rec = call(h, "bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBearerFailuresLookTheSame(t *testing.T) {
	issuer, publishIssuer, h, clk := setup(t)
	publish, err := publishIssuer.IssuePublish(42)
	require.NoError(t, err)

	expiring, err := issuer.Issue("bob", token.Claims{})
	require.NoError(t, err)
	clk.Advance(2 * time.Minute)
	fresh, err := issuer.Issue("alice", token.Claims{})
	require.NoError(t, err)

	cases := map[string]string{
		"missing":          "",
		"wrong scheme":     "Basic " + fresh,
		"empty credential": "Bearer ",
		"garbage":          "Bearer not.a.token",
		"tampered":         "Bearer " + fresh[:len(fresh)-2] + "xx",
		"expired":          "Bearer " + expiring,
		"publish domain":   "Bearer " + publish,
	}

	var bodies []string
	for name, authz := range cases {
		t.Run(name, func(t *testing.T) {
			rec := call(h, authz)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, unauthorizedDetail, body["detail"])
			bodies = append(bodies, rec.Body.String())
		})
	}
	for _, b := range bodies[1:] {
		assert.Equal(t, bodies[0], b)
	}
}

func TestSubjectWithoutPrincipal(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, Subject(req.Context()))

	ctx := WithPrincipal(req.Context(), &token.Claims{})
	_, ok := PrincipalFrom(ctx)
	assert.True(t, ok)
}
