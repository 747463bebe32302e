package rest

import (
	"net/http"

	"streamhub/core/stream/domain"
	"streamhub/modules/api/serde"
	"streamhub/modules/middleware/problem"
	"streamhub/modules/pagination"
)

// listing serves one of the stream collections. The query takes an optional
// opaque cursor and a limit (default 10, capped at 100).
func (a *StreamAPI) listing(filterOf func(*http.Request) domain.ListFilter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, err := pagination.ParseLimit(q.Get("limit"))
		if err != nil {
			problem.Write(w, ProblemFromDomainError(err))
			return
		}
		page, err := a.app.ListStreams(r.Context(), filterOf(r), q.Get("cursor"), limit)
		if err != nil {
			problem.Write(w, ProblemFromDomainError(err))
			return
		}
		serde.WriteJSON(w, http.StatusOK, mapPage(page))
	}
}
