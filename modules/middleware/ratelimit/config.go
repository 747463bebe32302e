package ratelimit

import (
	"time"
)

type KeyStrategyId string

const (
	RemoteIpKeyStrategy KeyStrategyId = "remote_ip"
	SubjectKeyStrategy  KeyStrategyId = "subject"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type (
	// RestHTTPConfig is read from RATE_LIMIT_*. Routes are indexed, e.g.
	// RATE_LIMIT_ROUTE_0_PATTERN=/api/auth/login and
	// RATE_LIMIT_ROUTE_0_POLICY_0_METHOD=POST.
	RestHTTPConfig struct {
		Enabled             bool         `env:"ENABLED" envDefault:"true"`
		Backend             string       `env:"BACKEND" envDefault:"memory"`
		Routes              []Route      `envPrefix:"ROUTE_"`
		DefaultPolicy       EndpointRule `envPrefix:"DEFAULT_"`
		AllowIfNoMatch      bool         `env:"ALLOW_IF_NO_MATCH" envDefault:"true"`
		AllowIfNoIdentifier bool         `env:"ALLOW_IF_NO_ID"`
		// TrustForwardedFor keys remote_ip on the first X-Forwarded-For hop.
		// Enable only behind a proxy that overwrites the header.
		TrustForwardedFor bool `env:"TRUST_FORWARDED_FOR"`
	}

	// Route matches the path part of a registered mux pattern, e.g.
	// /api/stream/{streamId}.
	Route struct {
		Pattern       string         `env:"PATTERN"`
		EndpointRules []EndpointRule `envPrefix:"POLICY_"`
	}

	EndpointRule struct {
		Method      string        `env:"METHOD"`
		Limit       int64         `env:"LIMIT" envDefault:"600"`
		Window      time.Duration `env:"WINDOW"`
		KeyStrategy KeyStrategyId `env:"KEY_STRATEGY"`
	}
)

// WithDefaults fills in the built-in policy when no routes were configured:
// credential endpoints are limited per address, stream creation per user,
// and everything else gets a generous per-user budget.
func (c RestHTTPConfig) WithDefaults() RestHTTPConfig {
	if len(c.Routes) == 0 {
		c.Routes = []Route{
			{Pattern: "/api/auth/login", EndpointRules: []EndpointRule{
				{Method: "POST", Limit: 10, Window: time.Minute, KeyStrategy: RemoteIpKeyStrategy},
			}},
			{Pattern: "/api/auth/register", EndpointRules: []EndpointRule{
				{Method: "POST", Limit: 5, Window: time.Minute, KeyStrategy: RemoteIpKeyStrategy},
			}},
			{Pattern: "/api/stream", EndpointRules: []EndpointRule{
				{Method: "POST", Limit: 30, Window: time.Minute, KeyStrategy: SubjectKeyStrategy},
			}},
		}
	}
	if c.DefaultPolicy.Window == 0 && c.DefaultPolicy.KeyStrategy == "" {
		limit := c.DefaultPolicy.Limit
		if limit <= 0 {
			limit = 600
		}
		c.DefaultPolicy = EndpointRule{Limit: limit, Window: time.Minute, KeyStrategy: SubjectKeyStrategy}
	}
	return c
}
