package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"streamhub/modules/middleware/auth"
	rl "streamhub/modules/ratelimit"
)

// RemoteIPKeyFunc keys on the client address. With trustForwarded the first
// X-Forwarded-For entry wins, which is only safe behind a proxy that sets it.
func RemoteIPKeyFunc(trustForwarded bool) KeyFunc {
	return func(r *http.Request) rl.Key {
		if trustForwarded {
			first, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return rl.Key("ip:" + ip)
			}
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host == "" {
			return ""
		}
		return rl.Key("ip:" + host)
	}
}

// SubjectKeyFunc keys authenticated requests on the token subject and
// falls back to fallback for anonymous or invalid credentials.
func SubjectKeyFunc(v auth.Verifier, fallback KeyFunc) KeyFunc {
	return func(r *http.Request) rl.Key {
		if raw, ok := auth.BearerToken(r); ok {
			if claims, err := v.Verify(raw); err == nil && claims.Subject != "" {
				return rl.Key("sub:" + claims.Subject)
			}
		}
		return fallback(r)
	}
}

// KeyStrategies returns the strategies addressable from configuration.
func KeyStrategies(v auth.Verifier, trustForwarded bool) map[KeyStrategyId]KeyFunc {
	ip := RemoteIPKeyFunc(trustForwarded)
	return map[KeyStrategyId]KeyFunc{
		RemoteIpKeyStrategy: ip,
		SubjectKeyStrategy:  SubjectKeyFunc(v, ip),
	}
}
