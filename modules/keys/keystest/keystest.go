// Package keystest provides throwaway key pairs for tests. Generation runs
// once per test binary.
package keystest

import (
	"sync"
	"testing"

	"streamhub/modules/keys"
)

var pairs = sync.OnceValues(func() ([2]keys.KeyPair, error) {
	auth, err := keys.Generate(keys.DomainAuth, "auth-key", keys.MinBits)
	if err != nil {
		return [2]keys.KeyPair{}, err
	}
	publish, err := keys.Generate(keys.DomainPublish, "mediamtx-key", keys.MinBits)
	if err != nil {
		return [2]keys.KeyPair{}, err
	}
	return [2]keys.KeyPair{auth, publish}, nil
})

// Pairs returns the shared auth and publish pairs.
func Pairs(tb testing.TB) (auth, publish keys.KeyPair) {
	tb.Helper()
	p, err := pairs()
	if err != nil {
		tb.Fatalf("generate test keys: %v", err)
	}
	return p[0], p[1]
}

// Keyring wraps Pairs in a keyring.
func Keyring(tb testing.TB) *keys.Keyring {
	tb.Helper()
	auth, publish := Pairs(tb)
	ring, err := keys.NewKeyring(auth, publish)
	if err != nil {
		tb.Fatalf("build test keyring: %v", err)
	}
	return ring
}
