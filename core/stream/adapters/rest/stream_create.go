package rest

import (
	"log/slog"
	"net/http"

	"streamhub/modules/api/serde"
	"streamhub/modules/middleware/problem"
)

// CreateStream creates a stream owned by the caller and answers 201 with
// the publish URL and a publish token for it.
func (a *StreamAPI) CreateStream(w http.ResponseWriter, r *http.Request) {
	var body streamRequest
	if err := serde.ParseJsonBody(r.Body, &body); err != nil {
		slog.DebugContext(r.Context(), "invalid request body", slog.Any("error", err))
		problem.Write(w, problem.BadRequest("invalid request body", problem.WithInvalidParam("body", "malformed JSON")))
		return
	}

	access, err := a.app.CreateStream(r.Context(), caller(r), body.Title, body.Description)
	if err != nil {
		problem.Write(w, ProblemFromDomainError(err))
		return
	}
	w.Header().Set("Location", "/api/stream/"+itoa(access.Stream.ID))
	serde.WriteJSON(w, http.StatusCreated, mapAccess(access))
}
