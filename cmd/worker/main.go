package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cargo/internal/cache"
	"github.com/noah-isme/backend-cargo/internal/config"
	"github.com/noah-isme/backend-cargo/internal/grouping"
	"github.com/noah-isme/backend-cargo/internal/notify"
	"github.com/noah-isme/backend-cargo/internal/obs"
	"github.com/noah-isme/backend-cargo/internal/rates"
	"github.com/noah-isme/backend-cargo/internal/repo"
	"github.com/noah-isme/backend-cargo/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "cargo")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, queries := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	rateEngine := &rates.Engine{
		Q:     queries,
		Cache: cache.NewJSON(redisClient, cfg.GridCacheTTL),
	}
	groupingService := &grouping.Service{
		Q:        queries,
		Rates:    rateEngine,
		Cache:    cache.NewJSON(redisClient, cfg.SuggestionCacheTTL),
		MarginCm: cfg.PackingMarginCm,
		Divisor:  cfg.VolumetricDivisor,
	}

	handlers := &tasks.Handlers{
		Grouping:  groupingService,
		Webhooks:  webhookEndpoints(cfg),
		Deliverer: &notify.Deliverer{Client: notify.HTTPClient(envInt("WEBHOOK_TIMEOUT_MS", 5000))},
		Log:       logger,
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisOpts.Addr,
			Password: redisOpts.Password,
			DB:       redisOpts.DB,
		},
		asynq.Config{
			Concurrency: envInt("WORKER_CONCURRENCY", 10),
			Queues:      map[string]int{"default": 1},
		},
	)

	mux := asynq.NewServeMux()
	handlers.Register(mux)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("worker draining")
		srv.Shutdown()
	}()

	logger.Info().Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
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

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, *repo.Queries) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "cargo-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool, repo.New(pool)
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
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

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
