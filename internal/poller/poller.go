package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/backoff"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/db"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/logging"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/snapshot"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/telemetry"
	"go.uber.org/zap"
)

// FailureKind classifies everything a poll cycle can fail with.
type FailureKind int

const (
	// FailureInvalidCredential means the session could not be constructed.
	// The owning user's other vehicles must not be polled this tick.
	FailureInvalidCredential FailureKind = iota

	// FailureVehicleNotFound means the vehicle is not part of the account's
	// vehicle list. Recoverable; retry no sooner than backoff.NotFoundRetry.
	FailureVehicleNotFound

	// FailureTransient covers transport failures and storage errors.
	// Recoverable; retry no sooner than backoff.TransientRetry.
	FailureTransient
)

// PollError is the failure of one poll cycle.
type PollError struct {
	Kind FailureKind
	Err  error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("poll failed (kind %d): %v", e.Kind, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// SnapshotStore persists the outcome of a poll cycle.
type SnapshotStore interface {
	InsertSnapshotTx(ctx context.Context, tx pgx.Tx, vehicleID uuid.UUID, snap *snapshot.Normalized) error
	UpdateVehicleMetadataTx(ctx context.Context, tx pgx.Tx, vehicleID uuid.UUID, info telemetry.VehicleInfo) error
}

// Poller performs one fetch-and-store cycle for a vehicle.
type Poller struct {
	open   telemetry.Opener
	store  SnapshotStore
	logger *zap.Logger
	now    func() time.Time
}

// New creates a poller.
func New(open telemetry.Opener, store SnapshotStore, logger *zap.Logger) *Poller {
	return &Poller{
		open:   open,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Poll wakes the vehicle, fetches the four telemetry kinds, stores them in
// the supplied transaction and returns the next poll time. No snapshot is
// written unless all four fetches succeed; a missing required field skips
// only the affected kind. The caller owns the transaction.
func (p *Poller) Poll(ctx context.Context, tx pgx.Tx, vehicle db.Vehicle, token string) (time.Time, *PollError) {
	logger := logging.WithVehicle(p.logger, vehicle.RemoteID)

	session, err := p.open(ctx, token)
	if err != nil {
		return time.Time{}, &PollError{Kind: FailureInvalidCredential, Err: err}
	}

	if err := session.Wake(ctx, vehicle.RemoteID); err != nil {
		return time.Time{}, classify(err)
	}

	payloads := make(map[snapshot.Kind]map[string]interface{}, len(snapshot.Kinds))
	for _, kind := range snapshot.Kinds {
		payload, err := session.Fetch(ctx, vehicle.RemoteID, kind)
		if err != nil {
			return time.Time{}, classify(err)
		}
		payloads[kind] = payload
	}

	for _, kind := range snapshot.Kinds {
		normalized, err := snapshot.Extract(kind, payloads[kind])
		if err != nil {
			// One kind lacking a required field must not abort the other
			// three or fail the cycle.
			var missing *snapshot.MissingFieldError
			if errors.As(err, &missing) {
				logger.Warn("skipping snapshot with missing field",
					zap.String("kind", string(kind)),
					zap.String("field", missing.Field))
				continue
			}
			return time.Time{}, &PollError{Kind: FailureTransient, Err: err}
		}
		if err := p.store.InsertSnapshotTx(ctx, tx, vehicle.ID, normalized); err != nil {
			return time.Time{}, &PollError{Kind: FailureTransient, Err: err}
		}
	}

	if perr := p.refreshMetadata(ctx, tx, session, vehicle, logger); perr != nil {
		return time.Time{}, perr
	}

	logger.Info("stored vehicle telemetry")

	now := p.now()
	return backoff.NextPollTime(now, payloads[snapshot.KindCharge], payloads[snapshot.KindDrive]), nil
}

// refreshMetadata updates vin/color/name from the account's vehicle list.
// A failed list call only skips the refresh; a storage error poisons the
// transaction and is surfaced as a transient cycle failure.
func (p *Poller) refreshMetadata(ctx context.Context, tx pgx.Tx, session telemetry.Session, vehicle db.Vehicle, logger *zap.Logger) *PollError {
	infos, err := session.Vehicles(ctx)
	if err != nil {
		logger.Debug("skipping metadata refresh", zap.Error(err))
		return nil
	}
	for _, info := range infos {
		if info.ID != vehicle.RemoteID {
			continue
		}
		if err := p.store.UpdateVehicleMetadataTx(ctx, tx, vehicle.ID, info); err != nil {
			return &PollError{Kind: FailureTransient, Err: err}
		}
		return nil
	}
	return nil
}

func classify(err error) *PollError {
	if errors.Is(err, telemetry.ErrUnknownVehicle) {
		return &PollError{Kind: FailureVehicleNotFound, Err: err}
	}
	return &PollError{Kind: FailureTransient, Err: err}
}
