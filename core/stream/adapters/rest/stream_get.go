package rest

import (
	"net/http"
	"strconv"

	"streamhub/modules/api/serde"
	"streamhub/modules/middleware/problem"
)

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// GetStream returns one stream with its ETag.
func (a *StreamAPI) GetStream(w http.ResponseWriter, r *http.Request) {
	id, prob := parseStreamID(r)
	if prob != nil {
		problem.Write(w, prob)
		return
	}
	s, err := a.app.GetStream(r.Context(), id)
	if err != nil {
		problem.Write(w, ProblemFromDomainError(err))
		return
	}
	resp := mapStream(*s)
	resp.Protocol = ProtocolRTMP
	writeStream(w, http.StatusOK, s, resp)
}

// GetStreamToken mints a fresh publish token for a stream the caller owns.
func (a *StreamAPI) GetStreamToken(w http.ResponseWriter, r *http.Request) {
	id, prob := parseStreamID(r)
	if prob != nil {
		problem.Write(w, prob)
		return
	}
	access, err := a.app.IssuePublishToken(r.Context(), caller(r), id)
	if err != nil {
		problem.Write(w, ProblemFromDomainError(err))
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	serde.WriteJSON(w, http.StatusOK, mapAccess(access))
}
