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

// Package keys owns the asymmetric key material of every signing domain.
//
// A KeyPair is created once at process start and is read-only afterwards,
// so it can be shared by any number of concurrent issuers and verifiers.
// The private half never leaves the package except through Signer, which
// is only handed to the token issuer of the same domain.
package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// MinBits is the smallest RSA modulus accepted for any domain.
	MinBits = 2048

	// Algorithm is the JWS algorithm every domain signs with.
	Algorithm = "RS256"
)

type Domain string

const (
	DomainAuth    Domain = "auth"
	DomainPublish Domain = "publish"
)

var (
	ErrUnknownDomain = errors.New("unknown signing domain")
	ErrEmptyKeyID    = errors.New("empty key identifier")
	ErrWeakKey       = errors.New("rsa key is weaker than 2048 bits")
	ErrNotRSAKey     = errors.New("pem block is not an rsa private key")
)

func (d Domain) Valid() bool {
	return d == DomainAuth || d == DomainPublish
}

func (d Domain) String() string { return string(d) }

// KeyPair is an immutable RSA key pair bound to one signing domain.
type KeyPair struct {
	domain  Domain
	keyID   string
	private *rsa.PrivateKey
}

func (k KeyPair) Domain() Domain { return k.domain }
func (k KeyPair) KeyID() string { return k.keyID }

func (k KeyPair) Bits() int {
	if k.private == nil {
		return 0
	}
	return k.private.N.BitLen()
}

// Public returns the exportable half of the pair.
func (k KeyPair) Public() *rsa.PublicKey {
	if k.private == nil {
		return nil
	}
	return &k.private.PublicKey
}

// Signer exposes the private key for signing only.
func (k KeyPair) Signer() crypto.Signer {
	if k.private == nil {
		return nil
	}
	return k.private
}

// IsZero reports whether the pair was never initialised.
func (k KeyPair) IsZero() bool { return k.private == nil }

// String keeps private material out of fmt verbs.
func (k KeyPair) String() string {
	return fmt.Sprintf("keys.KeyPair{domain=%s kid=%s bits=%d}", k.domain, k.keyID, k.Bits())
}

func (k KeyPair) GoString() string { return k.String() }

func (k KeyPair) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("domain", string(k.domain)),
		slog.String("kid", k.keyID),
		slog.Int("bits", k.Bits()),
	)
}

// New wraps an existing private key.
func New(domain Domain, keyID string, private *rsa.PrivateKey) (KeyPair, error) {
	if !domain.Valid() {
		return KeyPair{}, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
	if keyID == "" {
		return KeyPair{}, ErrEmptyKeyID
	}
	if private == nil || private.N.BitLen() < MinBits {
		return KeyPair{}, ErrWeakKey
	}
	if err := private.Validate(); err != nil {
		return KeyPair{}, fmt.Errorf("validate rsa key: %w", err)
	}
	return KeyPair{domain: domain, keyID: keyID, private: private}, nil
}

// Generate creates a fresh pair of the given size.
func Generate(domain Domain, keyID string, bits int) (KeyPair, error) {
	if bits < MinBits {
		return KeyPair{}, ErrWeakKey
	}
	private, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating rsa key for %s: %w", domain, err)
	}
	return New(domain, keyID, private)
}

// LoadPEM reads a PKCS#1 or PKCS#8 encoded RSA private key.
func LoadPEM(domain Domain, keyID, path string) (KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, fmt.Errorf("reading private key: %w", err)
	}
	private, err := parsePrivateKey(raw)
	if err != nil {
		return KeyPair{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return New(domain, keyID, private)
}

// SavePEM writes the private key as PKCS#8 with owner-only permissions.
func SavePEM(pair KeyPair, path string) error {
	der, err := x509.MarshalPKCS8PrivateKey(pair.private)
	if err != nil {
		return fmt.Errorf("encoding private key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, block, 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}
	return nil
}

// LoadOrGenerate loads the key at path, or generates and persists one when
// the file does not exist yet. An empty path always generates an ephemeral
// key that lives for the process lifetime.
func LoadOrGenerate(domain Domain, keyID, path string, bits int) (KeyPair, bool, error) {
	if path == "" {
		pair, err := Generate(domain, keyID, bits)
		return pair, true, err
	}

	pair, err := LoadPEM(domain, keyID, path)
	if err == nil {
		return pair, false, nil
	}
	// An existing but unreadable file is corruption, not first boot.
	if _, statErr := os.Stat(path); statErr == nil {
		return KeyPair{}, false, err
	}

	pair, err = Generate(domain, keyID, bits)
	if err != nil {
		return KeyPair{}, false, err
	}
	if err := SavePEM(pair, path); err != nil {
		return KeyPair{}, false, err
	}
	return pair, true, nil
}

func parsePrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no pem block found")
	}
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrNotRSAKey
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotRSAKey, block.Type)
	}
}
