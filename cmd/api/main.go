package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-cargo/internal/cache"
	"github.com/noah-isme/backend-cargo/internal/catalog"
	"github.com/noah-isme/backend-cargo/internal/common"
	"github.com/noah-isme/backend-cargo/internal/config"
	"github.com/noah-isme/backend-cargo/internal/db"
	"github.com/noah-isme/backend-cargo/internal/events"
	"github.com/noah-isme/backend-cargo/internal/grouping"
	"github.com/noah-isme/backend-cargo/internal/health"
	httpmiddleware "github.com/noah-isme/backend-cargo/internal/http/middleware"
	"github.com/noah-isme/backend-cargo/internal/lock"
	"github.com/noah-isme/backend-cargo/internal/notify"
	"github.com/noah-isme/backend-cargo/internal/obs"
	"github.com/noah-isme/backend-cargo/internal/quote"
	"github.com/noah-isme/backend-cargo/internal/ratelimit"
	"github.com/noah-isme/backend-cargo/internal/rates"
	"github.com/noah-isme/backend-cargo/internal/repo"
	"github.com/noah-isme/backend-cargo/internal/security"
	"github.com/noah-isme/backend-cargo/internal/tasks"
	"github.com/noah-isme/backend-cargo/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "cargo")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "cargo-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "cargo-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	queries := repo.New(pool)

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	taskClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	validate := validator.New()

	catalogService := &catalog.Service{
		Q:     queries,
		Cache: cache.NewJSON(redisClient, cfg.CartonCacheTTL),
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService, Validate: validate})

	rateEngine := &rates.Engine{
		Q:     queries,
		Cache: cache.NewJSON(redisClient, cfg.GridCacheTTL),
	}
	ratesHandler := rates.NewHandler(rates.HandlerConfig{Engine: rateEngine, Validate: validate})

	webhookEndpoints := webhookEndpoints(cfg)
	emailNotifier := notify.EmailNotifier{
		Mail:    common.NopEmailSender{},
		Enabled: cfg.EmailEnabled,
		From:    cfg.EmailFrom,
	}
	webhookNotifier := notify.WebhookNotifier{
		Endpoints: webhookEndpoints,
		Enabled:   cfg.WebhooksEnabled,
		Enqueue: func(ctx context.Context, endpointName string, event repo.DomainEvent) error {
			task, err := tasks.NewWebhookDeliverTask(endpointName, event)
			if err != nil {
				return err
			}
			_, err = taskClient.EnqueueContext(ctx, task)
			return err
		},
	}
	bus := &events.Bus{
		Store:     queries,
		Notifiers: []events.Notifier{emailNotifier, webhookNotifier},
	}

	quoteService := &quote.Service{
		Q:        queries,
		Catalog:  catalogService,
		Rates:    rateEngine,
		Bus:      bus,
		Tasks:    taskClient,
		Log:      logger,
		MarginCm: cfg.PackingMarginCm,
		Divisor:  cfg.VolumetricDivisor,
	}
	quoteHandler := quote.NewHandler(quote.HandlerConfig{Service: quoteService, Validate: validate})

	groupingService := &grouping.Service{
		Q:        queries,
		Pool:     pool,
		Rates:    rateEngine,
		Locker:   &lock.Locker{R: redisClient},
		Bus:      bus,
		Cache:    cache.NewJSON(redisClient, cfg.SuggestionCacheTTL),
		MarginCm: cfg.PackingMarginCm,
		Divisor:  cfg.VolumetricDivisor,
		LockTTL:  cfg.GroupLockTTL,
	}
	groupingHandler := grouping.NewHandler(grouping.HandlerConfig{Service: groupingService, Validate: validate})

	idem := common.Idem{R: redisClient, TTL: envDurationMillis("IDEMPOTENCY_TTL_MS", 600000)}
	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"},
		Config: ratelimit.Config{
			Key:    rateLimitKey,
			Window: time.Minute,
			Max:    cfg.RateLimitPerMinute,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter degraded")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	resolver := tenant.NewResolver(
		envOrDefault("TENANT_HEADER", "X-Tenant-ID"),
		envOrDefault("TENANT_ROOT_DOMAIN", ""),
		envOrDefault("TENANT_DEFAULT", ""),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(resolver.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Tenant-ID"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(httpmiddleware.RequireTenant)
		v.Use(limiter.Middleware)

		v.Route("/cartons", func(c chi.Router) {
			c.Get("/", catalogHandler.List)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", catalogHandler.Create)
				g.Put("/{id}/default", catalogHandler.SetDefault)
				g.Delete("/{id}", catalogHandler.Deactivate)
			})
		})

		v.Route("/rates", func(rt chi.Router) {
			rt.Get("/grid", ratesHandler.GetGrid)
			rt.Get("/quote", ratesHandler.QuotePrice)
			rt.With(idem.Middleware).Put("/", ratesHandler.UpsertRate)
		})

		v.Route("/quotes", func(q chi.Router) {
			q.Get("/", quoteHandler.List)
			q.With(idem.Middleware).Post("/", quoteHandler.Create)
			q.Get("/{id}", quoteHandler.Detail)
			q.With(idem.Middleware).Post("/{id}/price", quoteHandler.Price)
			q.Get("/{id}/suggestion", groupingHandler.Suggestion)
		})

		v.Route("/groups", func(g chi.Router) {
			g.Get("/{id}", groupingHandler.Detail)
			g.Group(func(m chi.Router) {
				m.Use(idem.Middleware)
				m.Post("/", groupingHandler.Create)
				m.Delete("/{id}", groupingHandler.Dissolve)
				m.Put("/{id}/status", groupingHandler.UpdateStatus)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-shutdownCtx.Done()
		health.SetReady(false)
		drainCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown http server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func webhookEndpoints(cfg *config.Config) []notify.Endpoint {
	out := make([]notify.Endpoint, 0, len(cfg.WebhookEndpoints))
	for _, ep := range cfg.WebhookEndpoints {
		out = append(out, notify.Endpoint{
			Name:   ep.Name,
			URL:    ep.URL,
			Secret: ep.Secret,
			Topics: ep.Topics,
		})
	}
	return out
}

// rateLimitKey buckets requests per tenant and client address so one
// noisy tenant cannot exhaust another tenant's quota.
func rateLimitKey(r *http.Request) string {
	tenantID, _ := tenant.From(r.Context())
	return tenant.PrefixKey(tenantID, "rl:"+common.ClientIP(r))
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	return common.AtoiDefault(strings.TrimSpace(os.Getenv(key)), fallback)
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
