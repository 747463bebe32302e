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

package hmac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// MinKeyLen matches the SHA-256 block output; shorter secrets are refused.
const MinKeyLen = 32

// DevSecret lets a local checkout start without configuration. Production
// refuses to run with it.
const DevSecret = "streamhub-dev-cursor-secret-do-not-deploy"

type HMACConfig struct {
	Secret string `env:"SECRET" envDefault:"streamhub-dev-cursor-secret-do-not-deploy"`

	// Retired secrets still accepted by Verify while old cursors drain.
	PreviousSecrets []string `env:"PREVIOUS_SECRETS" envSeparator:","`
}

// HMACSigner produces tokens of the form base64url(payload) "." base64url(mac).
type HMACSigner struct {
	key      []byte
	previous [][]byte
}

var (
	ErrMissingKey   = errors.New("missing hmac key")
	ErrShortKey     = errors.New("hmac key shorter than 32 bytes")
	ErrInvalidToken = errors.New("invalid token")
)

func NewHMACSigner(secKey []byte, previous ...[]byte) (*HMACSigner, error) {
	if len(secKey) == 0 {
		return nil, ErrMissingKey
	}
	if len(secKey) < MinKeyLen {
		return nil, ErrShortKey
	}
	s := &HMACSigner{key: secKey}
	for _, p := range previous {
		if len(p) > 0 {
			s.previous = append(s.previous, p)
		}
	}
	return s, nil
}

// FromConfig builds a signer from env configuration.
func FromConfig(cfg HMACConfig) (*HMACSigner, error) {
	prev := make([][]byte, 0, len(cfg.PreviousSecrets))
	for _, p := range cfg.PreviousSecrets {
		prev = append(prev, []byte(strings.TrimSpace(p)))
	}
	return NewHMACSigner([]byte(cfg.Secret), prev...)
}

func (h *HMACSigner) Sign(payload []byte) (string, error) {
	payloadB64 := base64.RawURLEncoding.EncodeToString(payload)
	sigB64 := base64.RawURLEncoding.EncodeToString(mac(h.key, payloadB64))
	return payloadB64 + "." + sigB64, nil
}

func (h *HMACSigner) Verify(token string) ([]byte, error) {
	payloadB64, sigB64, ok := strings.Cut(token, ".")
	if !ok || strings.Contains(sigB64, ".") {
		return nil, ErrInvalidToken
	}
	got, err := base64.RawURLEncoding.Strict().DecodeString(sigB64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !h.matches(payloadB64, got) {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.Strict().DecodeString(payloadB64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return payload, nil
}

func (h *HMACSigner) matches(payloadB64 string, got []byte) bool {
	if hmac.Equal(mac(h.key, payloadB64), got) {
		return true
	}
	for _, k := range h.previous {
		if hmac.Equal(mac(k, payloadB64), got) {
			return true
		}
	}
	return false
}

func mac(key []byte, payloadB64 string) []byte {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(payloadB64))
	return m.Sum(nil)
}
