package token

import "errors"

var (
	// ErrVerification is matched by every verification failure so callers can
	// treat them identically.
	ErrVerification = errors.New("token verification failed")

	ErrMalformedToken   = &verificationError{msg: "malformed token"}
	ErrInvalidSignature = &verificationError{msg: "invalid token signature"}
	ErrExpired          = &verificationError{msg: "token expired"}

	// ErrSigningFailure means the key material is unusable. Never retry it.
	ErrSigningFailure = errors.New("token signing failure")

	ErrInvalidClaims = errors.New("invalid token claims")
	ErrWrongDomain   = errors.New("operation not available for this signing domain")
)

type verificationError struct {
	msg string
}

func (e *verificationError) Error() string { return e.msg }

func (e *verificationError) Is(target error) bool {
	return target == ErrVerification
}
