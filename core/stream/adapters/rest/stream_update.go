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

package rest

import (
	"errors"
	"log/slog"
	"net/http"

	"streamhub/core/stream/domain"
	"streamhub/modules/api/serde"
	"streamhub/modules/middleware/problem"
)

// UpdateStream replaces title and description (PUT semantics). If-Match is
// optional; when present a stale version answers 412 with the current ETag.
func (a *StreamAPI) UpdateStream(w http.ResponseWriter, r *http.Request) {
	id, prob := parseStreamID(r)
	if prob != nil {
		problem.Write(w, prob)
		return
	}
	ifMatch, prob := parseIfMatch(r)
	if prob != nil {
		problem.Write(w, prob)
		return
	}
	var body streamRequest
	if err := serde.ParseJsonBody(r.Body, &body); err != nil {
		slog.DebugContext(r.Context(), "invalid request body", slog.Any("error", err))
		problem.Write(w, problem.BadRequest("invalid request body", problem.WithInvalidParam("body", "malformed JSON")))
		return
	}

	updated, err := a.app.UpdateStream(r.Context(), caller(r), id, body.Title, body.Description, ifMatch)
	if err != nil {
		if errors.Is(err, domain.ErrPrecondition) {
			a.writePreconditionFailed(w, r, id, err)
			return
		}
		prob := ProblemFromDomainError(err)
		if errors.Is(err, domain.ErrInvalidData) {
			problem.WithInvalidParam("title", "1 to 200 characters")(prob)
		}
		problem.Write(w, prob)
		return
	}
	writeStream(w, http.StatusOK, updated, mapStream(*updated))
}

// DeleteStream removes a stream owned by the caller and answers 204.
func (a *StreamAPI) DeleteStream(w http.ResponseWriter, r *http.Request) {
	id, prob := parseStreamID(r)
	if prob != nil {
		problem.Write(w, prob)
		return
	}
	ifMatch, prob := parseIfMatch(r)
	if prob != nil {
		problem.Write(w, prob)
		return
	}
	if err := a.app.DeleteStream(r.Context(), caller(r), id, ifMatch); err != nil {
		if errors.Is(err, domain.ErrPrecondition) {
			a.writePreconditionFailed(w, r, id, err)
			return
		}
		problem.Write(w, ProblemFromDomainError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusChange moves a stream owned by the caller to status.
func (a *StreamAPI) statusChange(status domain.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, prob := parseStreamID(r)
		if prob != nil {
			problem.Write(w, prob)
			return
		}
		updated, err := a.app.SetStatus(r.Context(), caller(r), id, status)
		if err != nil {
			if errors.Is(err, domain.ErrPrecondition) {
				a.writePreconditionFailed(w, r, id, err)
				return
			}
			problem.Write(w, ProblemFromDomainError(err))
			return
		}
		writeStream(w, http.StatusOK, updated, mapStream(*updated))
	}
}
