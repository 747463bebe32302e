package domain

import (
	"context"
	"errors"
	"log/slog"
)

func (app *Application) GetStream(ctx context.Context, id int64) (*Stream, error) {
	if id <= 0 {
		return nil, ErrInvalidData
	}
	s, err := app.reader.GetStreamByID(ctx, id)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, ErrStreamNotFound) {
		return nil, ErrStreamNotFound
	}
	slog.ErrorContext(ctx, "unexpected error", slog.Any("error", err))
	return nil, ErrUnhandled
}

// IssuePublishToken mints a fresh publish token for a stream the caller owns.
func (app *Application) IssuePublishToken(ctx context.Context, caller string, id int64) (*StreamAccess, error) {
	s, err := app.GetStream(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Owner != caller {
		return nil, ErrAccessDenied
	}
	tok, err := app.issuer.IssuePublish(s.ID)
	if err != nil {
		slog.ErrorContext(ctx, "publish token signing failed", slog.Any("error", err))
		return nil, err
	}
	return &StreamAccess{Stream: *s, StreamURL: app.streamURL(s.ID), PublishToken: tok}, nil
}
