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

// Package jwks publishes the public half of a signing domain as a JSON Web
// Key Set and verifies tokens against such a set the way an external relay
// does, without access to this process's key material.
package jwks

import (
	"encoding/json"
	"fmt"
	"net/http"

	"streamhub/modules/keys"

	"github.com/go-jose/go-jose/v4"
)

const UseSignature = "sig"

// Publisher serves the discovery document of exactly one domain. The key
// pair never changes during the process lifetime, so the encoded document
// is computed once.
type Publisher struct {
	domain keys.Domain
	set    jose.JSONWebKeySet
	doc    []byte
}

func NewPublisher(pair keys.KeyPair) (*Publisher, error) {
	if pair.IsZero() {
		return nil, fmt.Errorf("jwks: empty key pair")
	}
	jwk := jose.JSONWebKey{
		Key:       pair.Public(),
		KeyID:     pair.KeyID(),
		Algorithm: keys.Algorithm,
		Use:       UseSignature,
	}
	if !jwk.IsPublic() || !jwk.Valid() {
		return nil, fmt.Errorf("jwks: %s key is not a valid public key", pair.Domain())
	}

	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}}
	doc, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("jwks: encode %s key set: %w", pair.Domain(), err)
	}
	return &Publisher{domain: pair.Domain(), set: set, doc: doc}, nil
}

func (p *Publisher) Domain() keys.Domain { return p.domain }

// KeySet returns a copy of the published set.
func (p *Publisher) KeySet() jose.JSONWebKeySet {
	return jose.JSONWebKeySet{Keys: append([]jose.JSONWebKey(nil), p.set.Keys...)}
}

func (p *Publisher) MarshalJSON() ([]byte, error) {
	return append([]byte(nil), p.doc...), nil
}

func (p *Publisher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.doc)
}
