package rest

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"streamhub/core/stream/domain"
	"streamhub/modules/api/serde"
	"streamhub/modules/etag"
	"streamhub/modules/middleware/auth"
	"streamhub/modules/middleware/problem"
	"streamhub/modules/pagination"
	"streamhub/modules/token"
)

const ProtocolRTMP = "RTMP"

type (
	streamRequest struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}

	streamResponse struct {
		StreamID    int64         `json:"streamId"`
		Title       string        `json:"title"`
		Description string        `json:"description"`
		Status      domain.Status `json:"status"`
		Creator     string        `json:"creator"`
		CreatedAt   time.Time     `json:"createdAt"`
		Protocol    string        `json:"protocol,omitempty"`
	}

	accessResponse struct {
		StreamID    int64  `json:"streamId"`
		StreamURL   string `json:"streamUrl"`
		MediamtxJWT string `json:"mediamtxJwt"`
	}
)

func mapStream(s domain.Stream) streamResponse {
	return streamResponse{
		StreamID:    s.ID,
		Title:       s.Title,
		Description: s.Description,
		Status:      s.Status,
		Creator:     s.Owner,
		CreatedAt:   s.CreatedAt.UTC(),
	}
}

func mapPage(p pagination.Page[domain.Stream]) pagination.Page[streamResponse] {
	items := make([]streamResponse, 0, len(p.Items))
	for _, s := range p.Items {
		items = append(items, mapStream(s))
	}
	return pagination.Page[streamResponse]{Items: items, NextCursor: p.NextCursor, HasMore: p.HasMore}
}

func mapAccess(a *domain.StreamAccess) accessResponse {
	return accessResponse{StreamID: a.Stream.ID, StreamURL: a.StreamURL, MediamtxJWT: a.PublishToken}
}

func caller(r *http.Request) string {
	return auth.Subject(r.Context())
}

// writeStream writes s with its ETag header.
func writeStream(w http.ResponseWriter, status int, s *domain.Stream, resp streamResponse) {
	w.Header().Set("ETag", etag.Header(s))
	serde.WriteJSON(w, status, resp)
}

func parseStreamID(r *http.Request) (int64, *problem.Problem) {
	id, err := strconv.ParseInt(r.PathValue("streamId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, problem.BadRequest("invalid stream id", problem.WithInvalidParam("streamId", "must be a positive integer"))
	}
	return id, nil
}

// parseIfMatch reads an optional `If-Match: "v:<n>"` header.
func parseIfMatch(r *http.Request) (*int64, *problem.Problem) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return nil, nil
	}
	version, err := etag.ParseVersion(raw)
	if err != nil {
		return nil, problem.BadRequest("invalid etag", problem.WithInvalidParam("If-Match", "expected \"v:<version>\""))
	}
	return &version, nil
}

// ProblemFromDomainError maps stream domain errors to problem details.
func ProblemFromDomainError(err error) *problem.Problem {
	switch {
	case errors.Is(err, domain.ErrStreamNotFound):
		return problem.NotFound("stream not found")
	case errors.Is(err, domain.ErrAccessDenied):
		return problem.Forbidden("stream belongs to another user")
	case errors.Is(err, domain.ErrInvalidTransition):
		return problem.Conflict("stream status transition not allowed")
	case errors.Is(err, domain.ErrPrecondition):
		return problem.PreconditionFailed("stream was modified")
	case errors.Is(err, domain.ErrInvalidCursor):
		return problem.BadRequest("invalid cursor", problem.WithInvalidParam("cursor", "invalid or expired"))
	case errors.Is(err, domain.ErrInvalidLimit):
		return problem.BadRequest("invalid limit", problem.WithInvalidParam("limit", "must be a positive integer"))
	case errors.Is(err, domain.ErrInvalidData):
		return problem.UnprocessableEntity("invalid stream data")
	case errors.Is(err, token.ErrSigningFailure):
		return problem.Internal("could not issue publish token")
	default:
		return problem.Internal("server error")
	}
}

// writePreconditionFailed answers a 412 with the ETag of the latest version
// so the client can retry without another GET.
func (a *StreamAPI) writePreconditionFailed(w http.ResponseWriter, r *http.Request, id int64, err error) {
	if latest, fetchErr := a.app.GetStream(r.Context(), id); fetchErr == nil {
		w.Header().Set("ETag", etag.Header(latest))
	}
	problem.Write(w, ProblemFromDomainError(err))
}
