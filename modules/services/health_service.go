package services

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"streamhub/modules/middleware/problem"
	"streamhub/modules/server"
)

var _ server.RegistrableService = (*HealthService)(nil)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// HealthService answers GET /healthz with 204 when every check passes and
// 503 otherwise. Failing check names are logged, never returned.
type HealthService struct {
	checks  map[string]Check
	timeout time.Duration
}

func NewHealthService(timeout time.Duration, checks map[string]Check) *HealthService {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthService{checks: checks, timeout: timeout}
}

func (s *HealthService) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.serve)
}

func (s *HealthService) Middlewares() []func(http.Handler) http.Handler { return nil }

func (s *HealthService) serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	healthy := true
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			slog.WarnContext(ctx, "health check failed", slog.String("check", name), slog.Any("error", err))
			healthy = false
		}
	}
	if !healthy {
		problem.Write(w, problem.New(
			problem.WithStatus(http.StatusServiceUnavailable),
			problem.WithTitle(http.StatusText(http.StatusServiceUnavailable)),
			problem.WithDetail("dependency unavailable"),
		))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
