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

// Package token issues and verifies compact RS256 JWTs for one signing
// domain at a time. An Issuer or Verifier is built from a single domain's
// key material and has no way to reach another domain's keys.
package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"streamhub/modules/clock"
	"streamhub/modules/keys"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultTTL = time.Hour

type (
	// Config is parsed with the TOKEN_ prefix.
	Config struct {
		TTL    time.Duration `env:"TTL" envDefault:"1h"`
		Leeway time.Duration `env:"LEEWAY" envDefault:"0s"`
		Issuer string        `env:"ISSUER" envDefault:"streamhub"`
	}

	// Recorder receives issuance and verification outcomes.
	Recorder interface {
		Issued(domain keys.Domain)
		Rejected(domain keys.Domain, reason string)
	}

	Issuer struct {
		domain  keys.Domain
		keyID   string
		private *rsa.PrivateKey

		ttl      time.Duration
		clock    clock.Clock
		issuer   string
		recorder Recorder
	}

	IssuerOption func(*Issuer)
)

func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

func WithIssuerClock(c clock.Clock) IssuerOption {
	return func(i *Issuer) {
		if c != nil {
			i.clock = c
		}
	}
}

func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) { i.issuer = name }
}

func WithIssuerRecorder(r Recorder) IssuerOption {
	return func(i *Issuer) { i.recorder = r }
}

func NewIssuer(pair keys.KeyPair, opts ...IssuerOption) (*Issuer, error) {
	if pair.IsZero() {
		return nil, fmt.Errorf("%w: empty key pair", ErrSigningFailure)
	}
	private, ok := pair.Signer().(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s key is not rsa", ErrSigningFailure, pair.Domain())
	}

	i := &Issuer{
		domain:  pair.Domain(),
		keyID:   pair.KeyID(),
		private: private,
		ttl:     DefaultTTL,
		clock:   clock.RealClockProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i, nil
}

func (i *Issuer) Domain() keys.Domain { return i.domain }
func (i *Issuer) KeyID() string { return i.keyID }
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs claims for subject. It stamps iat, exp and iss and leaves the
// rest of claims untouched. Auth tokens require a subject; publish tokens
// must not carry one.
func (i *Issuer) Issue(subject string, claims Claims) (string, error) {
	signed, _, err := i.IssueWithExpiry(subject, claims)
	return signed, err
}

// IssueWithExpiry is Issue that also reports the exp it stamped.
func (i *Issuer) IssueWithExpiry(subject string, claims Claims) (string, time.Time, error) {
	switch i.domain {
	case keys.DomainAuth:
		if subject == "" {
			return "", time.Time{}, fmt.Errorf("%w: auth token without subject", ErrInvalidClaims)
		}
	case keys.DomainPublish:
		if subject != "" {
			return "", time.Time{}, fmt.Errorf("%w: publish token with subject", ErrInvalidClaims)
		}
	}

	now := i.clock.Now()
	claims.Subject = subject
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	if i.issuer != "" {
		claims.Issuer = i.issuer
	}

	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = i.keyID

	signed, err := t.SignedString(i.private)
	if err != nil {
		return "", time.Time{}, errors.Join(ErrSigningFailure, err)
	}
	if i.recorder != nil {
		i.recorder.Issued(i.domain)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// IssuePublish mints the capability a media relay needs to accept a
// publisher on stream/<streamID>.
func (i *Issuer) IssuePublish(streamID int64) (string, error) {
	if i.domain != keys.DomainPublish {
		return "", ErrWrongDomain
	}
	if streamID <= 0 {
		return "", fmt.Errorf("%w: stream id %d", ErrInvalidClaims, streamID)
	}
	return i.Issue("", Claims{Permissions: []Permission{PublishPermission(streamID)}})
}
