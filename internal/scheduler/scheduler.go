package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/backoff"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/db"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/logging"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/poller"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// VehicleStore is the scheduling state the tick loop reads and writes.
type VehicleStore interface {
	ListUsersWithToken(ctx context.Context) ([]db.User, error)
	ListVehicles(ctx context.Context, userID uuid.UUID) ([]db.Vehicle, error)
	BeginTx(ctx context.Context) (pgx.Tx, error)
	UpdateNextPollTx(ctx context.Context, tx pgx.Tx, vehicleID uuid.UUID, next time.Time) error
	UpdateNextPoll(ctx context.Context, vehicleID uuid.UUID, next time.Time) error
	ClearAccessToken(ctx context.Context, userID uuid.UUID) error
}

// VehiclePoller runs one fetch-and-store cycle inside the given transaction.
type VehiclePoller interface {
	Poll(ctx context.Context, tx pgx.Tx, vehicle db.Vehicle, token string) (time.Time, *poller.PollError)
}

// Notifier is the notification call point for credential invalidation.
// Delivery is somebody else's problem.
type Notifier interface {
	NotifyCredentialInvalidated(ctx context.Context, user db.User) error
}

// Scheduler walks all credentialed users once per tick and polls their due
// vehicles. Users run concurrently; vehicles within one user run in order,
// because a credential rejection must stop the user's remaining vehicles
// deterministically.
type Scheduler struct {
	store       VehicleStore
	poller      VehiclePoller
	notifier    Notifier
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a scheduler. concurrency bounds how many users are polled in
// parallel within one tick.
func New(store VehicleStore, p VehiclePoller, n Notifier, concurrency int, logger *zap.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		store:       store,
		poller:      p,
		notifier:    n,
		concurrency: concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// Tick runs one pass over all eligible vehicles. It never fails: every
// per-vehicle or per-user error is routed into scheduling state and logged.
func (s *Scheduler) Tick(ctx context.Context) {
	users, err := s.store.ListUsersWithToken(ctx)
	if err != nil {
		s.logger.Error("failed to list users", zap.Error(err))
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, user := range users {
		user := user
		g.Go(func() error {
			s.pollUser(ctx, user)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) pollUser(ctx context.Context, user db.User) {
	logger := logging.WithUser(s.logger, user.ID.String())

	vehicles, err := s.store.ListVehicles(ctx, user.ID)
	if err != nil {
		logger.Error("failed to list vehicles", zap.Error(err))
		return
	}

	now := s.now()
	for _, vehicle := range vehicles {
		if vehicle.NextUpdateTime != nil && vehicle.NextUpdateTime.After(now) {
			continue
		}
		if stop := s.pollVehicle(ctx, user, vehicle, logger); stop {
			return
		}
	}
}

// pollVehicle runs one vehicle's cycle in its own transaction so the four
// snapshots and the schedule update land as a single durable unit. Reports
// whether the user's remaining vehicles must be skipped this tick.
func (s *Scheduler) pollVehicle(ctx context.Context, user db.User, vehicle db.Vehicle, logger *zap.Logger) bool {
	logger = logging.WithVehicle(logger, vehicle.RemoteID)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		logger.Error("failed to begin transaction", zap.Error(err))
		return false
	}

	next, perr := s.poller.Poll(ctx, tx, vehicle, *user.AccessToken)
	if perr != nil {
		if err := tx.Rollback(ctx); err != nil {
			logger.Error("failed to roll back transaction", zap.Error(err))
		}
		return s.handlePollFailure(ctx, user, vehicle, perr, logger)
	}

	if err := s.store.UpdateNextPollTx(ctx, tx, vehicle.ID, next); err != nil {
		logger.Error("failed to persist next poll time", zap.Error(err))
		if err := tx.Rollback(ctx); err != nil {
			logger.Error("failed to roll back transaction", zap.Error(err))
		}
		return false
	}
	if err := tx.Commit(ctx); err != nil {
		logger.Error("failed to commit poll cycle", zap.Error(err))
		return false
	}

	logger.Debug("vehicle rescheduled", zap.Time("next_update_time", next))
	return false
}

func (s *Scheduler) handlePollFailure(ctx context.Context, user db.User, vehicle db.Vehicle, perr *poller.PollError, logger *zap.Logger) bool {
	switch perr.Kind {
	case poller.FailureInvalidCredential:
		logger.Warn("credential rejected, halting user's vehicles for this tick", zap.Error(perr.Err))
		if err := s.notifier.NotifyCredentialInvalidated(ctx, user); err != nil {
			logger.Error("failed to notify user of invalid credential", zap.Error(err))
		}
		if err := s.store.ClearAccessToken(ctx, user.ID); err != nil {
			logger.Error("failed to clear access token", zap.Error(err))
		}
		return true

	case poller.FailureVehicleNotFound:
		logger.Warn("vehicle not in account's vehicle list, retrying later",
			zap.Error(perr.Err), zap.Duration("retry_in", backoff.NotFoundRetry))
		s.reschedule(ctx, vehicle, backoff.NotFoundRetry, logger)
		return false

	case poller.FailureTransient:
		logger.Warn("transient poll failure, retrying later",
			zap.Error(perr.Err), zap.Duration("retry_in", backoff.TransientRetry))
		s.reschedule(ctx, vehicle, backoff.TransientRetry, logger)
		return false
	}
	return false
}

func (s *Scheduler) reschedule(ctx context.Context, vehicle db.Vehicle, delay time.Duration, logger *zap.Logger) {
	if err := s.store.UpdateNextPoll(ctx, vehicle.ID, s.now().Add(delay)); err != nil {
		logger.Error("failed to persist retry time", zap.Error(err))
	}
}
