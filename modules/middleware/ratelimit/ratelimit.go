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

package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"streamhub/modules/middleware/problem"
	rl "streamhub/modules/ratelimit"
)

var ErrBadPolicy = errors.New("ratelimit: bad policy")

type (
	Pattern string
	method  string

	// KeyFunc extracts the caller identity a limit is counted against.
	KeyFunc func(*http.Request) rl.Key

	// RouteInfoFunc resolves the registered route serving a request.
	RouteInfoFunc func(*http.Request) RouteInfo

	// RouteInfo is the matched route. ID is the path part of the pattern and
	// is empty when no route matches.
	RouteInfo struct {
		ID     Pattern
		Method string
		Path   string
	}

	Policy struct {
		Limiter rl.RateLimiter
		KeyFn   KeyFunc
	}

	// RuntimePolicy is the compiled form of RestHTTPConfig.
	RuntimePolicy struct {
		policyMap map[Pattern]map[method]Policy

		// a method-specific default wins over the catch-all one
		defaultPolicyByMethod map[method]Policy
		defaultPolicy         *Policy

		AllowIfNoMatch      bool
		AllowIfNoIdentifier bool

		RouteInfoFn RouteInfoFunc
	}
)

type policySource string

const (
	policySourceExplicit      policySource = "explicit"
	policySourceDefaultMethod policySource = "default_method"
	policySourceDefaultAll    policySource = "default"
)

func normalizeMethod(m string) method {
	return method(strings.ToUpper(m))
}

// MuxRouteInfo resolves routes the same way mux will dispatch them, so
// policies are keyed by registered pattern rather than raw path.
func MuxRouteInfo(mux *http.ServeMux) RouteInfoFunc {
	return func(r *http.Request) RouteInfo {
		_, pattern := mux.Handler(r)
		// patterns are registered as "METHOD /path"
		if _, path, ok := strings.Cut(pattern, " "); ok {
			pattern = path
		}
		return RouteInfo{ID: Pattern(pattern), Method: r.Method, Path: r.URL.Path}
	}
}

func (p *RuntimePolicy) findPolicy(ri RouteInfo) (Policy, bool, policySource) {
	if pm, ok := p.policyMap[ri.ID]; ok {
		if px, ok := pm[normalizeMethod(ri.Method)]; ok {
			return px, true, policySourceExplicit
		}
	}
	if px, ok := p.defaultPolicyByMethod[normalizeMethod(ri.Method)]; ok {
		return px, true, policySourceDefaultMethod
	}
	if p.defaultPolicy != nil {
		return *p.defaultPolicy, true, policySourceDefaultAll
	}
	return Policy{}, false, ""
}

func compileRule(factory rl.LimiterFactory, rule EndpointRule, keyStrategies map[KeyStrategyId]KeyFunc) (Policy, error) {
	ks, ok := keyStrategies[rule.KeyStrategy]
	if !ok {
		return Policy{}, fmt.Errorf("%w: no key strategy %q", ErrBadPolicy, rule.KeyStrategy)
	}
	if rule.Window <= 0 || rule.Limit < 0 {
		return Policy{}, fmt.Errorf("%w: window must be positive and limit non-negative", ErrBadPolicy)
	}
	return Policy{Limiter: factory(rule.Limit, rule.Window), KeyFn: ks}, nil
}

// ParsePolicy compiles cfg. Route patterns must match the path part of the
// patterns registered on the mux.
func ParsePolicy(
	factory rl.LimiterFactory,
	cfg *RestHTTPConfig,
	routeFn RouteInfoFunc,
	keyStrategies map[KeyStrategyId]KeyFunc,
) (*RuntimePolicy, error) {
	rtp := &RuntimePolicy{
		policyMap:           make(map[Pattern]map[method]Policy),
		AllowIfNoIdentifier: cfg.AllowIfNoIdentifier,
		AllowIfNoMatch:      cfg.AllowIfNoMatch,
		RouteInfoFn:         routeFn,
	}

	// the default policy is optional and only counts when fully specified
	if cfg.DefaultPolicy.Window > 0 && cfg.DefaultPolicy.KeyStrategy != "" {
		p, err := compileRule(factory, cfg.DefaultPolicy, keyStrategies)
		if err != nil {
			return nil, fmt.Errorf("default policy: %w", err)
		}
		if cfg.DefaultPolicy.Method != "" {
			rtp.defaultPolicyByMethod = map[method]Policy{normalizeMethod(cfg.DefaultPolicy.Method): p}
		} else {
			rtp.defaultPolicy = &p
		}
	}

	for _, r := range cfg.Routes {
		pat := Pattern(r.Pattern)
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("%w: pattern %q must start with /", ErrBadPolicy, r.Pattern)
		}
		if _, ok := rtp.policyMap[pat]; !ok {
			rtp.policyMap[pat] = make(map[method]Policy)
		}
		for _, rule := range r.EndpointRules {
			m := normalizeMethod(rule.Method)
			if _, ok := rtp.policyMap[pat][m]; ok {
				return nil, fmt.Errorf("%w: duplicate %s rule for %s", ErrBadPolicy, m, pat)
			}
			p, err := compileRule(factory, rule, keyStrategies)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", m, pat, err)
			}
			rtp.policyMap[pat][m] = p
		}
	}
	return rtp, nil
}

func tooMany(w http.ResponseWriter) {
	problem.Write(w, problem.TooManyRequests(http.StatusText(http.StatusTooManyRequests)))
}

func NewRateLimitMiddleware(p *RuntimePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			routeInfo := p.RouteInfoFn(r)

			// unknown routes are answered by the mux or the validator
			if routeInfo.ID == "" {
				next.ServeHTTP(w, r)
				return
			}

			px, ok, src := p.findPolicy(routeInfo)
			if !ok {
				slog.WarnContext(ctx, "no rate limit policy found",
					slog.String("middleware", "rate_limiter"),
					slog.String("route", string(routeInfo.ID)),
					slog.String("method", routeInfo.Method),
				)
				if p.AllowIfNoMatch {
					next.ServeHTTP(w, r)
					return
				}
				tooMany(w)
				return
			}
			if src != policySourceExplicit {
				slog.DebugContext(ctx, "using default rate limit policy",
					slog.String("route", string(routeInfo.ID)),
					slog.String("policy_source", string(src)),
				)
			}

			key := px.KeyFn(r)
			if key == "" {
				if p.AllowIfNoIdentifier {
					next.ServeHTTP(w, r)
					return
				}
				slog.WarnContext(ctx, "no rate limit key",
					slog.String("route", string(routeInfo.ID)),
				)
				tooMany(w)
				return
			}

			result, err := px.Limiter.Allow(ctx, key)
			if err != nil {
				// counter store unreachable
				slog.ErrorContext(ctx, "rate limit error",
					slog.Any("error", err),
					slog.String("route", string(routeInfo.ID)),
				)
				problem.Write(w, problem.Internal(http.StatusText(http.StatusInternalServerError)))
				return
			}

			w = &rateLimitHeaderWriter{ResponseWriter: w, result: result}
			if !result.Allowed {
				slog.DebugContext(ctx, "rate limited",
					slog.String("route", string(routeInfo.ID)),
					slog.String("method", routeInfo.Method),
				)
				w.Header().Set("Retry-After", strconv.FormatInt(ceilSeconds(result.RetryAfter.Nanoseconds()), 10))
				tooMany(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ceilSeconds(ns int64) int64 {
	const sec = int64(1e9)
	return max((ns+sec-1)/sec, 1)
}

func writeRateLimitHeaders(w http.ResponseWriter, result rl.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	h.Set("X-RateLimit-Window-Seconds", strconv.FormatInt(int64(result.Window.Seconds()), 10))
	h.Set("X-RateLimit-Reset-Seconds", strconv.FormatInt(ceilSeconds(result.WindowResetIn.Nanoseconds()), 10))
}

// rateLimitHeaderWriter sets the limit headers right before the response is
// committed so handlers that reset headers cannot drop them.
type rateLimitHeaderWriter struct {
	http.ResponseWriter
	result  rl.Result
	ensured bool
}

func (w *rateLimitHeaderWriter) ensure() {
	if w.ensured {
		return
	}
	writeRateLimitHeaders(w.ResponseWriter, w.result)
	w.ensured = true
}

func (w *rateLimitHeaderWriter) WriteHeader(statusCode int) {
	w.ensure()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *rateLimitHeaderWriter) Write(p []byte) (int, error) {
	w.ensure()
	return w.ResponseWriter.Write(p)
}

func (w *rateLimitHeaderWriter) Flush() {
	w.ensure()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *rateLimitHeaderWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
