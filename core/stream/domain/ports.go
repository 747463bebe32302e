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
	"time"
)

// StreamReadStore is bound to a read replica when one is configured.
type StreamReadStore interface {
	// GetStreamByID returns ErrStreamNotFound when no such stream exists.
	GetStreamByID(ctx context.Context, id int64) (*Stream, error)

	// ListStreams returns up to limit streams matching the filter in listing
	// order, strictly after the given key, or from the start when after is
	// nil.
	ListStreams(ctx context.Context, filter ListFilter, after *StreamKey, limit int) ([]Stream, error)
}

// StreamWriteStore is bound to the primary. Mutations that depend on the
// current row (owner checks, lifecycle rules) run inside WithTx so that the
// check and the write see the same version.
type StreamWriteStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx StreamWriteTx) error) error
	WithTimeoutTx(ctx context.Context, timeout time.Duration, fn func(ctx context.Context, tx StreamWriteTx) error) error
}

// StreamWriteTx is only valid inside the WithTx callback that produced it.
type StreamWriteTx interface {
	CreateStream(ctx context.Context, owner, title, description string) (*Stream, error)

	// GetStreamForUpdate locks the row until the transaction ends.
	GetStreamForUpdate(ctx context.Context, id int64) (*Stream, error)

	// UpdateStream, SetStatus and DeleteStream return ErrPrecondition when
	// the stored version differs from the given one.
	UpdateStream(ctx context.Context, params *UpdateStreamParams) (*Stream, error)
	SetStatus(ctx context.Context, id int64, status Status, version int64) (*Stream, error)
	DeleteStream(ctx context.Context, id int64, version int64) error
}

// PublishIssuer mints publish-domain tokens; satisfied by *token.Issuer.
type PublishIssuer interface {
	IssuePublish(streamID int64) (string, error)
}
