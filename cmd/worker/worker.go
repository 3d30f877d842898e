package main

import (
	"context"
	"time"

	"github.com/voltwatch/vehicle-telemetry-worker/internal/config"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/db"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/mq"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/poller"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/repository"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/scheduler"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// startScheduler drives the tick loop for the scheduler's lifetime.
func startScheduler(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger *zap.Logger,
	sched *scheduler.Scheduler,
) {
	interval := time.Duration(cfg.Scheduler.TickIntervalSeconds) * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting poll scheduler",
				zap.Duration("tick_interval", interval),
				zap.Int("user_concurrency", cfg.Scheduler.UserConcurrency))
			go func() {
				defer close(done)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						sched.Tick(ctx)
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			logger.Info("scheduler stopped gracefully")
			return nil
		},
	})
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideTelemetryOpener creates the upstream session factory
func ProvideTelemetryOpener(cfg *config.Config) telemetry.Opener {
	client := telemetry.NewClient(
		cfg.Telemetry.BaseURL,
		time.Duration(cfg.Telemetry.RequestTimeoutSeconds)*time.Second,
	)
	return client.Open
}

// ProvidePoller creates a new poller instance
func ProvidePoller(open telemetry.Opener, repo *repository.Repository, logger *zap.Logger) *poller.Poller {
	return poller.New(open, repo, logger)
}

// ProvideScheduler creates a new scheduler instance
func ProvideScheduler(
	repo *repository.Repository,
	p *poller.Poller,
	notifier *mq.Notifier,
	cfg *config.Config,
	logger *zap.Logger,
) *scheduler.Scheduler {
	return scheduler.New(repo, p, notifier, cfg.Scheduler.UserConcurrency, logger)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(conn, cfg.RabbitMQ.EventsExchange, logger)
}

// ProvideNotifier creates the credential invalidation notifier
func ProvideNotifier(publisher *mq.Publisher, cfg *config.Config) *mq.Notifier {
	return mq.NewNotifier(publisher, cfg.RabbitMQ.NotifyRoutingKey)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}
