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

package domain

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"streamhub/modules/token"
)

const (
	MaxTitleLen       = 200
	MaxDescriptionLen = 2000
)

func validateText(title, description string) (string, string, error) {
	title = strings.TrimSpace(title)
	if title == "" || utf8.RuneCountInString(title) > MaxTitleLen {
		return "", "", ErrInvalidData
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return "", "", ErrInvalidData
	}
	return title, description, nil
}

// CreateStream stores a new stream in the CREATED state and hands back a
// publish token for it. The insert is rolled back when signing fails.
func (app *Application) CreateStream(ctx context.Context, owner, title, description string) (*StreamAccess, error) {
	if owner == "" {
		return nil, ErrInvalidData
	}
	title, description, err := validateText(title, description)
	if err != nil {
		slog.DebugContext(ctx, "invalid stream data", slog.String("owner", owner))
		return nil, err
	}

	var access *StreamAccess
	err = app.writer.WithTx(ctx, func(ctx context.Context, tx StreamWriteTx) error {
		s, err := tx.CreateStream(ctx, owner, title, description)
		if err != nil {
			return err
		}
		tok, err := app.issuer.IssuePublish(s.ID)
		if err != nil {
			return err
		}
		access = &StreamAccess{Stream: *s, StreamURL: app.streamURL(s.ID), PublishToken: tok}
		return nil
	})
	if err == nil {
		slog.InfoContext(ctx, "created stream", slog.Int64("stream_id", access.Stream.ID), slog.String("owner", owner))
		return access, nil
	}
	if errors.Is(err, token.ErrSigningFailure) {
		slog.ErrorContext(ctx, "publish token signing failed", slog.Any("error", err))
		return nil, err
	}
	slog.ErrorContext(ctx, "unexpected error", slog.Any("error", err))
	return nil, ErrUnhandled
}
