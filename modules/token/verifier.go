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

var (
	errUnexpectedMethod = errors.New("unexpected signing method")
	errUnknownKey       = errors.New("unknown key id")
)

type (
	Verifier struct {
		domain   keys.Domain
		keyID    string
		public   *rsa.PublicKey
		clock    clock.Clock
		leeway   time.Duration
		recorder Recorder
	}

	VerifierOption func(*Verifier)
)

func WithVerifierClock(c clock.Clock) VerifierOption {
	return func(v *Verifier) {
		if c != nil {
			v.clock = c
		}
	}
}

// WithLeeway allows a grace period past exp. Zero by default.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.leeway = d
		}
	}
}

func WithVerifierRecorder(r Recorder) VerifierOption {
	return func(v *Verifier) { v.recorder = r }
}

func NewVerifier(domain keys.Domain, keyID string, public *rsa.PublicKey, opts ...VerifierOption) (*Verifier, error) {
	if !domain.Valid() {
		return nil, fmt.Errorf("%w: %q", keys.ErrUnknownDomain, domain)
	}
	if keyID == "" {
		return nil, keys.ErrEmptyKeyID
	}
	if public == nil {
		return nil, errors.New("token verifier: nil public key")
	}
	v := &Verifier{
		domain: domain,
		keyID:  keyID,
		public: public,
		clock:  clock.RealClockProvider(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// NewVerifierForPair only takes the public half of pair.
func NewVerifierForPair(pair keys.KeyPair, opts ...VerifierOption) (*Verifier, error) {
	return NewVerifier(pair.Domain(), pair.KeyID(), pair.Public(), opts...)
}

func (v *Verifier) Domain() keys.Domain { return v.domain }

// Verify checks signature and expiry and returns the decoded claims.
// Every failure matches ErrVerification and exactly one of
// ErrMalformedToken, ErrInvalidSignature or ErrExpired.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, v.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		verr := Classify(err)
		if v.recorder != nil {
			v.recorder.Rejected(v.domain, verr.Error())
		}
		return nil, fmt.Errorf("%w: %w", verr, err)
	}
	return claims, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, errUnexpectedMethod
	}
	kid, _ := t.Header["kid"].(string)
	if kid != v.keyID {
		return nil, errUnknownKey
	}
	return v.public, nil
}

// Classify maps a golang-jwt parse error onto the verification taxonomy.
func Classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		// missing exp, bad nbf/iat and similar claim shape problems
		return ErrMalformedToken
	}
}
