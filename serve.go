package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	accountmemory "streamhub/core/account/adapters/persistence/memory"
	accountpg "streamhub/core/account/adapters/persistence/pg"
	accountrest "streamhub/core/account/adapters/rest"
	account "streamhub/core/account/domain"
	streammemory "streamhub/core/stream/adapters/persistence/memory"
	streampg "streamhub/core/stream/adapters/persistence/pg"
	streamrest "streamhub/core/stream/adapters/rest"
	stream "streamhub/core/stream/domain"
	"streamhub/modules/appconfig"
	"streamhub/modules/clock"
	"streamhub/modules/db/postgres"
	"streamhub/modules/db/redis"
	"streamhub/modules/db/redis/counter"
	"streamhub/modules/db/redis/locking"
	"streamhub/modules/hmac"
	"streamhub/modules/jwks"
	"streamhub/modules/keys"
	"streamhub/modules/middleware"
	"streamhub/modules/middleware/auth"
	"streamhub/modules/middleware/ratelimit"
	"streamhub/modules/oapi"
	"streamhub/modules/pagination"
	rl "streamhub/modules/ratelimit"
	"streamhub/modules/server"
	"streamhub/modules/services"
	"streamhub/modules/telemetry"
	"streamhub/modules/token"

	"github.com/redis/rueidis"
	"go.opentelemetry.io/otel"
)

// stores are the persistence ports of both contexts plus whatever the
// health endpoint should ping.
type stores struct {
	streamReader stream.StreamReadStore
	streamWriter stream.StreamWriteStore
	users        account.UserStore
	checks       map[string]services.Check
}

// manual dependency injection; the graph is small enough to read top to bottom
func serve(ctx context.Context, cfg *appconfig.Config) error {
	clk := clock.RealClockProvider()

	otelShutdown, err := telemetry.Init(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "telemetry shutdown error", slog.Any("error", err))
		}
	}()

	// --- infrastructure ---

	var redisClient rueidis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.NewRueidisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	st, closeStores, err := openStores(ctx, cfg, clk)
	if err != nil {
		return err
	}
	defer closeStores()
	if redisClient != nil {
		st.checks["redis"] = func(ctx context.Context) error {
			return redisClient.Do(ctx, redisClient.B().Ping().Build()).Error()
		}
	}

	keyring, err := keys.Load(cfg.Keys)
	if err != nil {
		return err
	}
	authPair, publishPair := keyring.MustPair(keys.DomainAuth), keyring.MustPair(keys.DomainPublish)

	tokenMetrics, err := telemetry.NewTokenMetrics(otel.GetMeterProvider(), cfg.Otel.ServiceName)
	if err != nil {
		return fmt.Errorf("token metrics: %w", err)
	}
	authIssuer, err := token.NewIssuer(authPair,
		token.WithTTL(cfg.Token.TTL),
		token.WithIssuerName(cfg.Token.Issuer),
		token.WithIssuerClock(clk),
		token.WithIssuerRecorder(tokenMetrics),
	)
	if err != nil {
		return err
	}
	publishIssuer, err := token.NewIssuer(publishPair,
		token.WithTTL(cfg.Token.TTL),
		token.WithIssuerName(cfg.Token.Issuer),
		token.WithIssuerClock(clk),
		token.WithIssuerRecorder(tokenMetrics),
	)
	if err != nil {
		return err
	}
	authVerifier, err := token.NewVerifierForPair(authPair,
		token.WithLeeway(cfg.Token.Leeway),
		token.WithVerifierClock(clk),
		token.WithVerifierRecorder(tokenMetrics),
	)
	if err != nil {
		return err
	}
	authKeys, err := jwks.NewPublisher(authPair)
	if err != nil {
		return err
	}
	publishKeys, err := jwks.NewPublisher(publishPair)
	if err != nil {
		return err
	}

	signer, err := hmac.FromConfig(cfg.HMAC)
	if err != nil {
		return fmt.Errorf("cursor signer: %w", err)
	}
	cursors := pagination.NewCodec[stream.StreamKey](signer, cfg.CursorTTL, clk)

	// --- application layer ---

	accountApp, err := account.NewApp(st.users, authIssuer)
	if err != nil {
		return err
	}
	streamApp := stream.NewApp(st.streamReader, st.streamWriter, publishIssuer, cursors, cfg.StreamURLBase)

	bearer := auth.Bearer(authVerifier)
	api, err := services.NewAPIService(oapi.FS, oapi.SpecPath,
		accountrest.NewAccountAPI(accountApp, bearer, authKeys),
		streamrest.NewStreamAPI(streamApp, bearer, publishKeys),
	)
	if err != nil {
		return err
	}

	// --- transport ---

	mux := http.NewServeMux()
	globals := []func(http.Handler) http.Handler{}

	httpMetrics, err := telemetry.NewHTTPMetrics(otel.GetMeterProvider(), cfg.Otel.ServiceName)
	if err != nil {
		slog.WarnContext(ctx, "continuing without HTTP metrics", slog.Any("error", err))
		httpMetrics = nil
	}
	globals = append(globals, middleware.Telemetry(httpMetrics), middleware.RecoverProblem())

	if cfg.RateLimit.Enabled {
		limiter, err := rateLimiter(cfg, clk, mux, authPair, redisClient)
		if err != nil {
			return err
		}
		globals = append(globals, limiter)
	}

	srv, err := server.New(cfg.HTTP.Host, cfg.HTTP.Port,
		server.WithMux(mux),
		server.WithReadTimeout(cfg.HTTP.ReadTimeout),
		server.WithWriteTimeout(cfg.HTTP.WriteTimeout),
		server.WithShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		server.WithServices(api, services.NewHealthService(2*time.Second, st.checks)),
		server.WithGlobalMiddlewares(globals...),
	)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func openStores(ctx context.Context, cfg *appconfig.Config, clk clock.Clock) (*stores, func(), error) {
	if cfg.Store == appconfig.StoreMemory {
		slog.WarnContext(ctx, "using in-memory store, data is lost on exit")
		streams := streammemory.New(clk)
		return &stores{
			streamReader: streams,
			streamWriter: streams,
			users:        accountmemory.New(clk),
			checks:       map[string]services.Check{},
		}, func() {}, nil
	}

	pool, err := postgres.New(ctx, &cfg.Postgres, postgres.PostgresOptions{
		WriterOptions: []postgres.PgxConfigOption{postgres.WithApplicationName("streamhub")},
		ReaderOptions: []postgres.PgxConfigOption{postgres.WithApplicationName("streamhub-reader")},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	closePool := func() {
		if err := pool.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "database shutdown error", slog.Any("error", err))
		}
	}
	fail := func(err error) (*stores, func(), error) {
		closePool()
		return nil, nil, err
	}

	if err := pool.HealthCheck(ctx); err != nil {
		return fail(fmt.Errorf("postgres health check: %w", err))
	}
	if cfg.Postgres.MigrateOnStart {
		if err := migrateOnStart(ctx, cfg, pool); err != nil {
			return fail(fmt.Errorf("migrate on start: %w", err))
		}
	}

	// the writer prepares its statements, so the schema must exist by now
	writer, err := streampg.NewPostgresStreamWriter(ctx, pool, streampg.DefaultTable)
	if err != nil {
		return fail(err)
	}
	return &stores{
		streamReader: streampg.NewPostgresStreamReader(pool, streampg.DefaultTable),
		streamWriter: writer,
		users:        accountpg.NewPostgresUserStore(pool, accountpg.DefaultTable),
		checks:       map[string]services.Check{"postgres": pool.HealthCheck},
	}, closePool, nil
}

// migrateOnStart serialises migrations across replicas through a Redis lock
// when Redis is available.
func migrateOnStart(ctx context.Context, cfg *appconfig.Config, pool *postgres.PostgresConnectionPool) error {
	up := func(context.Context) error { return pool.MigrateUp() }
	if !cfg.Redis.Enabled() {
		return up(ctx)
	}

	locker, err := locking.NewLocker(cfg.Redis)
	if err != nil {
		return err
	}
	defer locker.Close()

	exec := locking.New(locker,
		locking.WithWaitForLock(true),
		locking.WithAcquireTimeout(time.Minute),
	)
	return exec.Execute(ctx, locking.Job{Name: "migrate", AtMostFor: 5 * time.Minute}, up)
}

func rateLimiter(
	cfg *appconfig.Config,
	clk clock.Clock,
	mux *http.ServeMux,
	authPair keys.KeyPair,
	redisClient rueidis.Client,
) (func(http.Handler) http.Handler, error) {
	var factory rl.LimiterFactory
	switch cfg.RateLimit.Backend {
	case ratelimit.BackendRedis:
		if redisClient == nil {
			return nil, errors.New("rate limit: redis backend without a redis client")
		}
		factory = rl.SlidingWindowFactory(clk, counter.New(redisClient, cfg.Redis.KeyPrefix+"rl"), "")
	default:
		factory = rl.TokenBucketFactory(clk)
	}

	// no recorder: the auth middleware already counts rejected tokens
	verifier, err := token.NewVerifierForPair(authPair, token.WithLeeway(cfg.Token.Leeway), token.WithVerifierClock(clk))
	if err != nil {
		return nil, err
	}

	rlCfg := cfg.RateLimit.WithDefaults()
	policy, err := ratelimit.ParsePolicy(factory, &rlCfg, ratelimit.MuxRouteInfo(mux),
		ratelimit.KeyStrategies(verifier, rlCfg.TrustForwardedFor))
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	slog.Info("rate limiting enabled",
		slog.String("backend", rlCfg.Backend),
		slog.Int("routes", len(rlCfg.Routes)),
	)
	return ratelimit.NewRateLimitMiddleware(policy), nil
}
