package domain

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

const writeTimeout = 2 * time.Second

// withOwnedStream loads and locks the stream, checks the caller owns it and,
// when ifMatch is set, that the caller saw the current version.
func (app *Application) withOwnedStream(
	ctx context.Context,
	caller string,
	id int64,
	ifMatch *int64,
	fn func(ctx context.Context, tx StreamWriteTx, current *Stream) error,
) error {
	if id <= 0 || caller == "" {
		return ErrInvalidData
	}
	return app.writer.WithTimeoutTx(ctx, writeTimeout, func(ctx context.Context, tx StreamWriteTx) error {
		current, err := tx.GetStreamForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Owner != caller {
			return ErrAccessDenied
		}
		if ifMatch != nil && *ifMatch != current.Version {
			return ErrPrecondition
		}
		return fn(ctx, tx, current)
	})
}

func mapWriteError(ctx context.Context, err error) error {
	for _, known := range []error{ErrStreamNotFound, ErrAccessDenied, ErrPrecondition, ErrInvalidTransition, ErrInvalidData} {
		if errors.Is(err, known) {
			return known
		}
	}
	slog.ErrorContext(ctx, "unexpected error", slog.Any("error", err))
	return ErrUnhandled
}

func (app *Application) UpdateStream(ctx context.Context, caller string, id int64, title, description string, ifMatch *int64) (*Stream, error) {
	title, description, err := validateText(title, description)
	if err != nil {
		return nil, err
	}
	var updated *Stream
	err = app.withOwnedStream(ctx, caller, id, ifMatch, func(ctx context.Context, tx StreamWriteTx, current *Stream) error {
		s, err := tx.UpdateStream(ctx, &UpdateStreamParams{
			ID:          id,
			Title:       title,
			Description: description,
			Version:     current.Version,
		})
		if err != nil {
			return err
		}
		updated = s
		return nil
	})
	if err != nil {
		return nil, mapWriteError(ctx, err)
	}
	return updated, nil
}

// SetStatus moves a stream along its lifecycle. Asking for the status the
// stream already has is a no-op.
func (app *Application) SetStatus(ctx context.Context, caller string, id int64, status Status) (*Stream, error) {
	if !status.Valid() {
		return nil, ErrInvalidData
	}
	var result *Stream
	err := app.withOwnedStream(ctx, caller, id, nil, func(ctx context.Context, tx StreamWriteTx, current *Stream) error {
		if current.Status == status {
			result = current
			return nil
		}
		if !current.Status.CanTransition(status) {
			return ErrInvalidTransition
		}
		s, err := tx.SetStatus(ctx, id, status, current.Version)
		if err != nil {
			return err
		}
		result = s
		return nil
	})
	if err != nil {
		return nil, mapWriteError(ctx, err)
	}
	slog.InfoContext(ctx, "stream status", slog.Int64("stream_id", id), slog.String("status", string(result.Status)))
	return result, nil
}

func (app *Application) DeleteStream(ctx context.Context, caller string, id int64, ifMatch *int64) error {
	err := app.withOwnedStream(ctx, caller, id, ifMatch, func(ctx context.Context, tx StreamWriteTx, current *Stream) error {
		return tx.DeleteStream(ctx, id, current.Version)
	})
	if err != nil {
		return mapWriteError(ctx, err)
	}
	slog.InfoContext(ctx, "deleted stream", slog.Int64("stream_id", id))
	return nil
}
