package domain

import "errors"

var (
	ErrDuplicateUsername  = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidData        = errors.New("invalid data provided for account operations")
	ErrUnhandled          = errors.New("unexpected error")
)
