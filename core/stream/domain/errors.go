package domain

import (
	"errors"

	"streamhub/modules/pagination"
)

var (
	ErrStreamNotFound    = errors.New("stream not found")
	ErrAccessDenied      = errors.New("stream belongs to another user")
	ErrInvalidTransition = errors.New("stream status transition not allowed")
	ErrPrecondition      = errors.New("stream was modified concurrently")
	ErrInvalidData       = errors.New("invalid data provided for stream operations")
	ErrUnhandled         = errors.New("unexpected error")

	ErrInvalidCursor = pagination.ErrInvalidCursor
	ErrInvalidLimit  = pagination.ErrInvalidLimit
)
