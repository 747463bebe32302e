package domain

import (
	"context"
	"errors"
	"log/slog"

	"streamhub/modules/pagination"
)

// ListStreams returns one page of streams matching filter. The cursor is only
// accepted by a listing with the same filter.
func (app *Application) ListStreams(ctx context.Context, filter ListFilter, cursor string, limit int) (pagination.Page[Stream], error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return pagination.Page[Stream]{}, ErrInvalidData
	}

	fetch := func(ctx context.Context, after *StreamKey, n int) ([]Stream, error) {
		return app.reader.ListStreams(ctx, filter, after, n)
	}
	page, err := pagination.Paginate(ctx, app.cursors, pagination.Request{
		Cursor: cursor,
		Limit:  limit,
		Scope:  filter.Fingerprint(),
	}, fetch, Stream.Key)
	if err == nil {
		return page, nil
	}
	if errors.Is(err, ErrInvalidCursor) || errors.Is(err, ErrInvalidLimit) {
		slog.DebugContext(ctx, "rejected listing request", slog.Any("error", err))
		return pagination.Page[Stream]{}, err
	}
	slog.ErrorContext(ctx, "unexpected error", slog.Any("error", err))
	return pagination.Page[Stream]{}, ErrUnhandled
}
