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

package token

import (
	"encoding/json"
	"slices"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

const ActionPublish = "publish"

// names owned by the typed fields below; Extra can never override them
var reservedClaims = []string{"iss", "sub", "aud", "exp", "nbf", "iat", "jti", "roles", "permissions"}

type (
	// Claims is the payload of both signing domains.
	//
	// Auth tokens carry Subject and Roles, publish tokens carry exactly one
	// Permission and no subject. Extra is an open mapping merged into the
	// payload next to the registered names.
	Claims struct {
		jwt.RegisteredClaims
		Roles       []string     `json:"roles,omitempty"`
		Permissions []Permission `json:"permissions,omitempty"`

		Extra map[string]any `json:"-"`
	}

	// Permission is the capability shape understood by the media relay.
	Permission struct {
		Action string `json:"action"`
		Path   string `json:"path"`
	}
)

func PublishPermission(streamID int64) Permission {
	return Permission{Action: ActionPublish, Path: "stream/" + strconv.FormatInt(streamID, 10)}
}

// HasRole reports whether the token grants role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// Allows reports whether the token grants action on path.
func (c *Claims) Allows(action, path string) bool {
	return slices.Contains(c.Permissions, Permission{Action: action, Path: path})
}

func (c Claims) MarshalJSON() ([]byte, error) {
	// alias drops the method set so json.Marshal does not recurse
	type alias Claims
	base, err := json.Marshal(alias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return base, nil
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if slices.Contains(reservedClaims, k) {
			continue
		}
		m[k] = v
	}
	return json.Marshal(m)
}

func (c *Claims) UnmarshalJSON(b []byte) error {
	type alias Claims
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	for _, k := range reservedClaims {
		delete(m, k)
	}
	if len(m) > 0 {
		a.Extra = make(map[string]any, len(m))
		for k, raw := range m {
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			a.Extra[k] = v
		}
	}

	*c = Claims(a)
	return nil
}
