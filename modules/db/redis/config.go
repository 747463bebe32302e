package redis

import "time"

// RedisConfig configures the shared rueidis client.
//
// URL is a standard Redis URI:
//
//   - Single:  redis://:password@localhost:6379/0
//   - TLS:     rediss://:password@my-redis.example.com:6379/0
//   - Cluster: redis://:password@host1:6379/0?addr=host2:6379&addr=host3:6379
//
// rueidis picks single or cluster mode from the parsed addresses.
type RedisConfig struct {
	// Empty disables Redis; the rate limiter then keeps its counters in memory.
	URL string `env:"URL"`

	ClientName string `env:"CLIENT_NAME" envDefault:"streamhub"`

	// SkipTLSVerify disables certificate checks on rediss:// URLs.
	SkipTLSVerify bool `env:"SKIP_TLS_VERIFY"`

	// RequireTLS rejects plaintext redis:// URLs.
	RequireTLS bool `env:"REQUIRE_TLS"`

	DisableRetry     bool          `env:"DISABLE_RETRY"`
	AlwaysPipelining bool          `env:"ALWAYS_PIPELINING"`
	ConnWriteTimeout time.Duration `env:"CONN_WRITE_TIMEOUT"`
	PingTimeout      time.Duration `env:"PING_TIMEOUT" envDefault:"5s"`

	// EnableOtel wraps the client with rueidisotel.
	EnableOtel bool `env:"ENABLE_OTEL"`

	// KeyPrefix namespaces every key this service writes.
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"streamhub:"`
}

// Enabled reports whether a Redis URL was configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }
