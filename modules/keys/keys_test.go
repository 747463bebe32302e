package keys

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTagsDomainAndKeyID(t *testing.T) {
	pair, err := Generate(DomainPublish, "mediamtx-key", MinBits)
	require.NoError(t, err)

	assert.Equal(t, DomainPublish, pair.Domain())
	assert.Equal(t, "mediamtx-key", pair.KeyID())
	assert.Equal(t, MinBits, pair.Bits())
	assert.Equal(t, pair.Public(), pair.Signer().Public())
}

func TestGenerateRejectsWeakAndInvalidInput(t *testing.T) {
	_, err := Generate(DomainAuth, "auth-key", 1024)
	assert.ErrorIs(t, err, ErrWeakKey)

	_, err = Generate(Domain("other"), "k", MinBits)
	assert.ErrorIs(t, err, ErrUnknownDomain)

	_, err = Generate(DomainAuth, "", MinBits)
	assert.ErrorIs(t, err, ErrEmptyKeyID)
}

func TestKeyPairFormattingHidesPrivateKey(t *testing.T) {
	pair, err := Generate(DomainAuth, "auth-key", MinBits)
	require.NoError(t, err)

	d := pair.private.D.String()
	for _, s := range []string{fmt.Sprint(pair), fmt.Sprintf("%+v", pair), fmt.Sprintf("%#v", pair)} {
		assert.NotContains(t, s, d)
		assert.Contains(t, s, "auth-key")
	}
}

func TestLoadOrGeneratePersistsThenReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "publish.pem")

	first, generated, err := LoadOrGenerate(DomainPublish, "mediamtx-key", path, MinBits)
	require.NoError(t, err)
	assert.True(t, generated)

	second, generated, err := LoadOrGenerate(DomainPublish, "mediamtx-key", path, MinBits)
	require.NoError(t, err)
	assert.False(t, generated)
	assert.True(t, first.Public().Equal(second.Public()))
}

func TestLoadOrGenerateWithoutPathIsEphemeral(t *testing.T) {
	a, generated, err := LoadOrGenerate(DomainAuth, "auth-key", "", MinBits)
	require.NoError(t, err)
	assert.True(t, generated)

	b, _, err := LoadOrGenerate(DomainAuth, "auth-key", "", MinBits)
	require.NoError(t, err)
	assert.False(t, a.Public().Equal(b.Public()))
}

func TestNewKeyringEnforcesOnePairPerDomain(t *testing.T) {
	auth, err := Generate(DomainAuth, "auth-key", MinBits)
	require.NoError(t, err)
	publish, err := Generate(DomainPublish, "mediamtx-key", MinBits)
	require.NoError(t, err)

	kr, err := NewKeyring(auth, publish)
	require.NoError(t, err)
	got, err := kr.Pair(DomainPublish)
	require.NoError(t, err)
	assert.Equal(t, "mediamtx-key", got.KeyID())

	_, err = NewKeyring(auth)
	assert.ErrorIs(t, err, ErrMissingDomain)

	_, err = NewKeyring(auth, auth)
	assert.ErrorIs(t, err, ErrDuplicateDomain)

	// same private key reused under the publish domain
	shared, err := New(DomainPublish, "other-key", auth.private)
	require.NoError(t, err)
	_, err = NewKeyring(auth, shared)
	assert.ErrorIs(t, err, ErrSharedKey)

	sameKid, err := Generate(DomainPublish, "auth-key", MinBits)
	require.NoError(t, err)
	_, err = NewKeyring(auth, sameKid)
	assert.ErrorIs(t, err, ErrSharedKey)
}
