package ratelimit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"streamhub/modules/clock"
	rl "streamhub/modules/ratelimit"
	"streamhub/modules/token"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct{}

// tokens look like "valid-<subject>"
func (stubVerifier) Verify(raw string) (*token.Claims, error) {
	sub, ok := strings.CutPrefix(raw, "valid-")
	if !ok {
		return nil, errors.New("bad token")
	}
	return &token.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}, nil
}

func newHandler(t *testing.T, cfg RestHTTPConfig) (http.Handler, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	mux := http.NewServeMux()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	mux.Handle("POST /api/auth/login", ok)
	mux.Handle("POST /api/stream", ok)
	mux.Handle("GET /api/stream/{streamId}", ok)

	cfg = cfg.WithDefaults()
	policy, err := ParsePolicy(rl.TokenBucketFactory(clk), &cfg, MuxRouteInfo(mux), KeyStrategies(stubVerifier{}, cfg.TrustForwardedFor))
	require.NoError(t, err)
	return NewRateLimitMiddleware(policy)(mux), clk
}

func do(h http.Handler, method, path, remote, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remote
	if authz != "" {
		req.Header.Set("Authorization", "Bearer "+authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestLoginLimitedPerAddress(t *testing.T) {
	h, clk := newHandler(t, RestHTTPConfig{AllowIfNoMatch: true})

	for i := range 10 {
		rec := do(h, http.MethodPost, "/api/auth/login", "10.0.0.1:5555", "")
		require.Equal(t, http.StatusNoContent, rec.Code, "attempt %d", i)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := do(h, http.MethodPost, "/api/auth/login", "10.0.0.1:6666", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "6", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(h, http.MethodPost, "/api/auth/login", "10.0.0.2:5555", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	clk.Advance(7 * time.Second)
	rec = do(h, http.MethodPost, "/api/auth/login", "10.0.0.1:5555", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStreamCreationLimitedPerSubject(t *testing.T) {
	h, _ := newHandler(t, RestHTTPConfig{AllowIfNoMatch: true})

	for range 30 {
		require.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/api/stream", "10.0.0.1:1", "valid-alice").Code)
	}
	// same user from another address is still limited
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPost, "/api/stream", "10.0.0.9:1", "valid-alice").Code)
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/api/stream", "10.0.0.1:1", "valid-bob").Code)
	// an invalid token is counted against the address instead
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodPost, "/api/stream", "10.0.0.1:1", "forged").Code)
}

func TestDefaultPolicyCoversPatternRoutes(t *testing.T) {
	h, _ := newHandler(t, RestHTTPConfig{
		DefaultPolicy: EndpointRule{Limit: 2, Window: time.Minute, KeyStrategy: SubjectKeyStrategy},
	})

	assert.Equal(t, http.StatusNoContent, do(h, http.MethodGet, "/api/stream/1", "10.0.0.1:1", "valid-alice").Code)
	// different ids share the {streamId} pattern budget
	assert.Equal(t, http.StatusNoContent, do(h, http.MethodGet, "/api/stream/2", "10.0.0.1:1", "valid-alice").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(h, http.MethodGet, "/api/stream/3", "10.0.0.1:1", "valid-alice").Code)
}

func TestUnknownRoutePassesThrough(t *testing.T) {
	h, _ := newHandler(t, RestHTTPConfig{})
	rec := do(h, http.MethodGet, "/nope", "10.0.0.1:1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRemoteIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	assert.Equal(t, rl.Key("ip:192.0.2.7"), RemoteIPKeyFunc(false)(req))
	assert.Equal(t, rl.Key("ip:203.0.113.5"), RemoteIPKeyFunc(true)(req))

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, rl.Key("ip:192.0.2.7"), RemoteIPKeyFunc(true)(req))
}

func TestParsePolicyRejectsBadConfig(t *testing.T) {
	factory := rl.TokenBucketFactory(clock.Fake(time.Now()))
	strategies := KeyStrategies(stubVerifier{}, false)

	cases := map[string]RestHTTPConfig{
		"unknown strategy": {Routes: []Route{{Pattern: "/a", EndpointRules: []EndpointRule{
			{Method: "GET", Limit: 1, Window: time.Second, KeyStrategy: "cookie"},
		}}}},
		"duplicate method": {Routes: []Route{{Pattern: "/a", EndpointRules: []EndpointRule{
			{Method: "get", Limit: 1, Window: time.Second, KeyStrategy: RemoteIpKeyStrategy},
			{Method: "GET", Limit: 1, Window: time.Second, KeyStrategy: RemoteIpKeyStrategy},
		}}}},
		"zero window": {Routes: []Route{{Pattern: "/a", EndpointRules: []EndpointRule{
			{Method: "GET", Limit: 1, KeyStrategy: RemoteIpKeyStrategy},
		}}}},
		"relative pattern": {Routes: []Route{{Pattern: "a"}}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePolicy(factory, &cfg, nil, strategies)
			assert.ErrorIs(t, err, ErrBadPolicy)
		})
	}
}
