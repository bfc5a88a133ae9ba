package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/application/worker"
	"github.com/cassiomorais/tripcheckout/internal/bootstrap"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/postgres"
	infraRedis "github.com/cassiomorais/tripcheckout/internal/infrastructure/redis"
	"golang.org/x/sync/errgroup"
)

// Published outbox rows are kept this long before the sweeper drops them.
const outboxRetention = 7 * 24 * time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := bootstrap.New(ctx, "trips-worker", "trips_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	workerCfg := app.Config.Worker

	// --- Repositories ---
	tripRepo := postgres.NewTripRepository(app.Pool)
	memberRepo := postgres.NewMembershipRepository(app.Pool)
	outboxRepo := postgres.NewOutboxRepository(app.Pool)
	stagingRepo := postgres.NewStagingRepository(app.Pool)
	idempotencyRepo := postgres.NewIdempotencyRepository(app.Pool)
	txManager := postgres.NewTxManager(app.Pool)
	producer := infraRedis.NewStreamProducer(app.Redis)

	// --- Jobs ---
	relay := worker.NewOutboxRelay(txManager, outboxRepo, producer, int(workerCfg.BatchSize), app.Logger, app.Metrics)
	repair := worker.NewMembershipRepair(tripRepo, memberRepo, infraRedis.NewLocker(app.Redis), app.Config.Checkout.LockTTL, app.Logger)
	sweeper := worker.NewSweeper(app.Logger, app.Metrics,
		worker.SweepTarget{Name: "staging_intents", Intent: true, Delete: stagingRepo.DeleteExpired},
		worker.SweepTarget{Name: "local_intents", Intent: true, Delete: app.Local.DeleteExpired},
		worker.SweepTarget{Name: "idempotency_keys", Delete: func(ctx context.Context, _ time.Time) (int64, error) {
			return idempotencyRepo.Cleanup(ctx)
		}},
		worker.SweepTarget{Name: "published_outbox", Delete: func(ctx context.Context, now time.Time) (int64, error) {
			return outboxRepo.DeletePublishedBefore(ctx, now.Add(-outboxRetention))
		}},
	)

	// --- Trip event consumer ---
	stream := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.TripEventStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := stream.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group")
		os.Exit(1)
	}
	consumer := worker.NewEventConsumer(stream, producer, repair, time.Minute, app.Logger, app.Metrics)

	app.Logger.Info().
		Str("stream", infraRedis.TripEventStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Msg("Worker started, listening for messages...")

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox relay (polls outbox table and publishes to the trip event stream).
	g.Go(func() error {
		return worker.Every(gCtx, workerCfg.OutboxPollInterval, app.Logger, "outbox_relay", func(ctx context.Context) error {
			_, err := relay.RunOnce(ctx)
			return err
		})
	})

	// 2. Membership repair (reads trip events from the consumer group).
	g.Go(func() error {
		return consumer.Run(gCtx)
	})

	// 3. Stale message reclaim.
	g.Go(func() error {
		return worker.Every(gCtx, time.Minute, app.Logger, "reclaim", consumer.Reclaim)
	})

	// 4. Expired intent sweeper.
	g.Go(func() error {
		return worker.Every(gCtx, workerCfg.SweepInterval, app.Logger, "sweeper", func(ctx context.Context) error {
			_, err := sweeper.RunOnce(ctx)
			return err
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
