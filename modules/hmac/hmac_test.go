package hmac

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	current = []byte("0123456789abcdef0123456789abcdef")
	retired = []byte("fedcba9876543210fedcba9876543210")
)

func TestSignVerify(t *testing.T) {
	s, err := NewHMACSigner(current)
	require.NoError(t, err)

	tok, err := s.Sign([]byte(`{"k":1}`))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(tok, "."))

	payload, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, string(payload))
}

func TestVerifyRejectsTampering(t *testing.T) {
	s, err := NewHMACSigner(current)
	require.NoError(t, err)
	tok, err := s.Sign([]byte(`{"k":1}`))
	require.NoError(t, err)

	payloadB64, sig, _ := strings.Cut(tok, ".")
	forged, err := s.Sign([]byte(`{"k":2}`))
	require.NoError(t, err)
	forgedPayload, _, _ := strings.Cut(forged, ".")

	for name, bad := range map[string]string{
		"swapped payload": forgedPayload + "." + sig,
		"no separator":    payloadB64 + sig,
		"extra segment":   tok + ".x",
		"empty":           "",
		"bad signature":   payloadB64 + ".AAAA",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Verify(bad)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestPreviousSecretsStillVerify(t *testing.T) {
	old, err := NewHMACSigner(retired)
	require.NoError(t, err)
	tok, err := old.Sign([]byte("cursor"))
	require.NoError(t, err)

	rotated, err := FromConfig(HMACConfig{Secret: string(current), PreviousSecrets: []string{string(retired)}})
	require.NoError(t, err)
	got, err := rotated.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "cursor", string(got))

	strict, err := NewHMACSigner(current)
	require.NoError(t, err)
	_, err = strict.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestKeyLength(t *testing.T) {
	_, err := NewHMACSigner(nil)
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = NewHMACSigner([]byte("short"))
	assert.ErrorIs(t, err, ErrShortKey)
}
