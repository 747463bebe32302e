package jwks

import (
	"encoding/json"
	"fmt"

	"streamhub/modules/clock"
	"streamhub/modules/token"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// RemoteVerifier checks tokens using nothing but a discovery document.
type RemoteVerifier struct {
	jwks  *keyfunc.JWKS
	clock clock.Clock
}

func NewRemoteVerifier(doc []byte, c clock.Clock) (*RemoteVerifier, error) {
	set, err := keyfunc.NewJSON(json.RawMessage(doc))
	if err != nil {
		return nil, fmt.Errorf("jwks: load key set: %w", err)
	}
	if c == nil {
		c = clock.RealClockProvider()
	}
	return &RemoteVerifier{jwks: set, clock: c}, nil
}

// KeyIDs lists the key identifiers in the loaded document.
func (v *RemoteVerifier) KeyIDs() []string {
	return v.jwks.KIDs()
}

func (v *RemoteVerifier) Verify(raw string) (*token.Claims, error) {
	claims := &token.Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", token.Classify(err), err)
	}
	return claims, nil
}
