package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cassiomorais/tripcheckout/internal/application/checkout"
	"github.com/cassiomorais/tripcheckout/internal/controller"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/config"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/gateway"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/postgres"
	infraRedis "github.com/cassiomorais/tripcheckout/internal/infrastructure/redis"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/sqlite"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Local    *sqlite.LocalStore
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	tracer *sdktrace.TracerProvider
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout).
		With().Str("service", serviceName).Logger()
	logger.Info().Msg("Starting")

	app := &App{Config: cfg, Logger: logger}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(ctx, serviceName, cfg.Observability.OTLPEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Msg("Tracing enabled")
		}
	}

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Metrics = observability.NewMetrics(metricsNamespace, app.Registry)

	app.Pool, err = postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("Connected to PostgreSQL")

	app.Redis, err = infraRedis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("Connected to Redis")

	if err := os.MkdirAll(filepath.Dir(cfg.LocalStore.Path), 0o755); err != nil {
		app.Close()
		return nil, fmt.Errorf("create local store directory: %w", err)
	}
	app.Local, err = sqlite.Open(ctx, cfg.LocalStore.Path)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open local store: %w", err)
	}
	logger.Info().Str("path", cfg.LocalStore.Path).Msg("Opened local intent store")

	return app, nil
}

// Tiers composes the intent tiers: staging, then local, then ephemeral.
func (a *App) Tiers() *checkout.Tiers {
	return checkout.NewTiers(a.Logger, a.Metrics, nil,
		postgres.NewStagingRepository(a.Pool),
		a.Local,
		infraRedis.NewEphemeralStore(a.Redis, a.Config.Checkout.EphemeralTTL),
	)
}

// Gateway returns the breaker-guarded gateway and the sandbox behind it.
func (a *App) Gateway() (gateway.Gateway, *gateway.MockGateway) {
	gc := a.Config.Gateway
	opts := []gateway.MockGatewayOption{
		gateway.WithSessions(gc.SupportsSessions),
		gateway.WithLatency(gc.Latency),
		gateway.WithFailureRate(gc.FailureRate),
	}
	if gc.HostedURL != "" {
		opts = append(opts, gateway.WithHostedURL(gc.HostedURL))
	}
	sandbox := gateway.NewMockGateway(gc.Name, opts...)
	guarded := gateway.NewGuarded(sandbox, gateway.BreakerSettings{
		Threshold: gc.CircuitBreakerThreshold,
		Timeout:   gc.CircuitBreakerTimeout,
	}, a.Metrics)
	return guarded, sandbox
}

// CheckoutService wires the recovery protocol against gw.
func (a *App) CheckoutService(gw gateway.Gateway) *checkout.Service {
	cc := a.Config.Checkout
	creator := checkout.NewCreator(
		postgres.NewTripRepository(a.Pool),
		postgres.NewMembershipRepository(a.Pool),
		postgres.NewTxManager(a.Pool),
		postgres.NewOutboxRepository(a.Pool),
		checkout.CreatorConfig{
			Timeout:          cc.CreateTimeout,
			JoinCodeAttempts: cc.JoinCodeAttempts,
			LockTTL:          cc.LockTTL,
		},
		a.Logger, a.Metrics,
		checkout.WithLocker(infraRedis.NewLocker(a.Redis)),
	)
	return checkout.NewService(
		a.Tiers(),
		checkout.NewCorrelator(gw, cc.ReturnURL, a.Logger, a.Metrics),
		gw,
		creator,
		checkout.ServiceConfig{IntentTTL: cc.IntentTTL, ReplayWindow: cc.ReplayWindow},
		a.Logger, a.Metrics,
	)
}

func (a *App) HealthChecks() []controller.HealthCheck {
	return []controller.HealthCheck{
		{Name: "database", Ping: a.Pool.Ping},
		{Name: "redis", Ping: func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }},
		{Name: "local_store", Ping: a.Local.Ping},
	}
}

func (a *App) Close() {
	if a.Local != nil {
		if err := a.Local.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close local store")
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.tracer != nil {
		if err := observability.Shutdown(context.Background(), a.tracer); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
}
