package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"streamhub/modules/clock"
	"streamhub/modules/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPairs = sync.OnceValues(func() (map[keys.Domain]keys.KeyPair, error) {
	auth, err := keys.Generate(keys.DomainAuth, "auth-key", keys.MinBits)
	if err != nil {
		return nil, err
	}
	publish, err := keys.Generate(keys.DomainPublish, "mediamtx-key", keys.MinBits)
	if err != nil {
		return nil, err
	}
	return map[keys.Domain]keys.KeyPair{keys.DomainAuth: auth, keys.DomainPublish: publish}, nil
})

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	clock    *clock.FakeClock
	issuers  map[keys.Domain]*Issuer
	verifier map[keys.Domain]*Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pairs, err := testPairs()
	require.NoError(t, err)

	f := &fixture{
		clock:    clock.Fake(epoch),
		issuers:  map[keys.Domain]*Issuer{},
		verifier: map[keys.Domain]*Verifier{},
	}
	for d, p := range pairs {
		iss, err := NewIssuer(p, WithIssuerClock(f.clock), WithTTL(15*time.Minute), WithIssuerName("streamhub"))
		require.NoError(t, err)
		ver, err := NewVerifierForPair(p, WithVerifierClock(f.clock))
		require.NoError(t, err)
		f.issuers[d] = iss
		f.verifier[d] = ver
	}
	return f
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	f := newFixture(t)

	in := Claims{
		Roles: []string{"ROLE_USER", "ROLE_ADMIN"},
		Extra: map[string]any{"display": "Alice", "tier": "gold"},
	}
	raw, err := f.issuers[keys.DomainAuth].Issue("alice", in)
	require.NoError(t, err)
	assert.Len(t, strings.Split(raw, "."), 3)

	got, err := f.verifier[keys.DomainAuth].Verify(raw)
	require.NoError(t, err)

	assert.Equal(t, "alice", got.Subject)
	assert.Equal(t, in.Roles, got.Roles)
	assert.Equal(t, in.Extra, got.Extra)
	assert.Empty(t, got.Permissions)
	assert.Equal(t, "streamhub", got.Issuer)
	require.NotNil(t, got.IssuedAt)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, got.IssuedAt.Time.Equal(epoch))
	assert.True(t, got.ExpiresAt.Time.Equal(epoch.Add(15*time.Minute)))
}

func TestIssueIsDeterministic(t *testing.T) {
	f := newFixture(t)

	a, err := f.issuers[keys.DomainAuth].Issue("bob", Claims{Roles: []string{"ROLE_USER"}})
	require.NoError(t, err)
	b, err := f.issuers[keys.DomainAuth].Issue("bob", Claims{Roles: []string{"ROLE_USER"}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIssueWithExpiryReportsStampedExp(t *testing.T) {
	f := newFixture(t)

	raw, exp, err := f.issuers[keys.DomainAuth].IssueWithExpiry("carol", Claims{})
	require.NoError(t, err)
	assert.True(t, exp.Equal(epoch.Add(15*time.Minute)))

	got, err := f.verifier[keys.DomainAuth].Verify(raw)
	require.NoError(t, err)
	assert.True(t, got.ExpiresAt.Time.Equal(exp))
}

func TestHeaderCarriesAlgorithmAndKeyID(t *testing.T) {
	f := newFixture(t)

	raw, err := f.issuers[keys.DomainPublish].IssuePublish(7)
	require.NoError(t, err)

	remote, err := f.verifier[keys.DomainPublish].Verify(raw)
	require.NoError(t, err)
	assert.Empty(t, remote.Subject)

	header := decodeSegment(t, strings.Split(raw, ".")[0])
	assert.Contains(t, header, `"alg":"RS256"`)
	assert.Contains(t, header, `"kid":"mediamtx-key"`)
}

func TestPublishPermissionForStream42(t *testing.T) {
	f := newFixture(t)

	raw, err := f.issuers[keys.DomainPublish].IssuePublish(42)
	require.NoError(t, err)

	got, err := f.verifier[keys.DomainPublish].Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, []Permission{{Action: "publish", Path: "stream/42"}}, got.Permissions)
	assert.True(t, got.Allows("publish", "stream/42"))
	assert.False(t, got.Allows("publish", "stream/43"))

	payload := decodeSegment(t, strings.Split(raw, ".")[1])
	assert.Contains(t, payload, `"permissions":[{"action":"publish","path":"stream/42"}]`)
}

func TestDomainIsolation(t *testing.T) {
	f := newFixture(t)

	authTok, err := f.issuers[keys.DomainAuth].Issue("alice", Claims{Roles: []string{"ROLE_USER"}})
	require.NoError(t, err)
	publishTok, err := f.issuers[keys.DomainPublish].IssuePublish(1)
	require.NoError(t, err)

	_, err = f.verifier[keys.DomainPublish].Verify(authTok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.ErrorIs(t, err, ErrVerification)

	_, err = f.verifier[keys.DomainAuth].Verify(publishTok)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDomainIsolationWithSameKeyID(t *testing.T) {
	f := newFixture(t)
	pairs, err := testPairs()
	require.NoError(t, err)

	// a verifier that trusts the publish key under the auth key id
	impostor, err := NewVerifier(keys.DomainAuth, "auth-key", pairs[keys.DomainPublish].Public(), WithVerifierClock(f.clock))
	require.NoError(t, err)

	raw, err := f.issuers[keys.DomainAuth].Issue("alice", Claims{})
	require.NoError(t, err)
	_, err = impostor.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestExpiredTokenWithValidSignature(t *testing.T) {
	f := newFixture(t)

	raw, err := f.issuers[keys.DomainAuth].Issue("alice", Claims{})
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute) // exactly at expiry
	_, err = f.verifier[keys.DomainAuth].Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)

	f.clock.Advance(time.Hour)
	_, err = f.verifier[keys.DomainAuth].Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)
	assert.ErrorIs(t, err, ErrVerification)
}

func TestLeewayIsOptIn(t *testing.T) {
	f := newFixture(t)
	pairs, err := testPairs()
	require.NoError(t, err)

	lenient, err := NewVerifierForPair(pairs[keys.DomainAuth], WithVerifierClock(f.clock), WithLeeway(time.Minute))
	require.NoError(t, err)

	raw, err := f.issuers[keys.DomainAuth].Issue("alice", Claims{})
	require.NoError(t, err)

	f.clock.Advance(15*time.Minute + 30*time.Second)
	_, err = f.verifier[keys.DomainAuth].Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)

	_, err = lenient.Verify(raw)
	assert.NoError(t, err)
}

func TestSingleByteMutationFailsVerification(t *testing.T) {
	f := newFixture(t)

	raw, err := f.issuers[keys.DomainPublish].IssuePublish(42)
	require.NoError(t, err)

	for i := range len(raw) {
		if raw[i] == '.' {
			continue
		}
		mutated := []byte(raw)
		mutated[i] = flip(raw[i])

		_, err := f.verifier[keys.DomainPublish].Verify(string(mutated))
		require.Error(t, err, "offset %d", i)
		if !assert.True(t,
			isOneOf(err, ErrInvalidSignature, ErrMalformedToken),
			"offset %d: %v", i, err,
		) {
			return
		}
	}
}

func TestMalformedInput(t *testing.T) {
	f := newFixture(t)
	v := f.verifier[keys.DomainAuth]

	for name, raw := range map[string]string{
		"empty":         "",
		"two segments":  "abc.def",
		"four segments": "a.b.c.d",
		"bad base64":    "!!!.???.***",
		"not json":      "bm90LWpzb24.bm90LWpzb24.c2ln",
		"garbage":       "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(raw)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestIssueRejectsSubjectMisuse(t *testing.T) {
	f := newFixture(t)

	_, err := f.issuers[keys.DomainAuth].Issue("", Claims{})
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = f.issuers[keys.DomainPublish].Issue("alice", Claims{})
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = f.issuers[keys.DomainAuth].IssuePublish(1)
	assert.ErrorIs(t, err, ErrWrongDomain)

	_, err = f.issuers[keys.DomainPublish].IssuePublish(0)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestExtraCannotOverrideRegisteredClaims(t *testing.T) {
	f := newFixture(t)

	raw, err := f.issuers[keys.DomainAuth].Issue("alice", Claims{
		Extra: map[string]any{"sub": "mallory", "exp": 1, "roles": []string{"ROLE_ADMIN"}},
	})
	require.NoError(t, err)

	got, err := f.verifier[keys.DomainAuth].Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Subject)
	assert.False(t, got.HasRole("ROLE_ADMIN"))
	assert.Empty(t, got.Extra)
}

func TestConcurrentIssueAndVerify(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			raw, err := f.issuers[keys.DomainPublish].IssuePublish(id)
			if !assert.NoError(t, err) {
				return
			}
			got, err := f.verifier[keys.DomainPublish].Verify(raw)
			if assert.NoError(t, err) {
				assert.Equal(t, []Permission{PublishPermission(id)}, got.Permissions)
			}
		}(int64(i + 1))
	}
	wg.Wait()
}

func BenchmarkIssue(b *testing.B) {
	pairs, err := testPairs()
	require.NoError(b, err)
	iss, err := NewIssuer(pairs[keys.DomainPublish])
	require.NoError(b, err)

	for b.Loop() {
		if _, err := iss.IssuePublish(42); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkVerify(b *testing.B) {
	pairs, err := testPairs()
	require.NoError(b, err)
	iss, err := NewIssuer(pairs[keys.DomainPublish])
	require.NoError(b, err)
	ver, err := NewVerifierForPair(pairs[keys.DomainPublish])
	require.NoError(b, err)
	raw, err := iss.IssuePublish(42)
	require.NoError(b, err)

	for b.Loop() {
		if _, err := ver.Verify(raw); err != nil {
			b.Fatal(err)
		}
	}
}

func decodeSegment(t *testing.T, seg string) string {
	t.Helper()
	b, err := base64.RawURLEncoding.DecodeString(seg)
	require.NoError(t, err)
	return string(b)
}

func flip(c byte) byte {
	if c == 'A' {
		return 'B'
	}
	return 'A'
}

func isOneOf(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
