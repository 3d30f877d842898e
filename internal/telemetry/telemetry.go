package telemetry

import (
	"context"
	"errors"

	"github.com/voltwatch/vehicle-telemetry-worker/internal/snapshot"
)

// VehicleInfo is one entry of the account's vehicle list.
type VehicleInfo struct {
	ID          string `json:"id"`
	VIN         string `json:"vin"`
	Color       string `json:"color"`
	DisplayName string `json:"display_name"`
}

var (
	// ErrCredentialRejected is returned by an Opener when the upstream API
	// refuses the supplied credential.
	ErrCredentialRejected = errors.New("telemetry: credential rejected")

	// ErrUnknownVehicle is returned when the vehicle id is not part of the
	// account's vehicle list.
	ErrUnknownVehicle = errors.New("telemetry: unknown vehicle id")

	// ErrUnavailable is returned on transport-level failures (network errors,
	// timeouts, upstream 5xx).
	ErrUnavailable = errors.New("telemetry: upstream unavailable")
)

// Session is an authenticated connection to the upstream vehicle API.
type Session interface {
	// Vehicles returns the account's vehicle list.
	Vehicles(ctx context.Context) ([]VehicleInfo, error)

	// Wake asks the vehicle to come online.
	Wake(ctx context.Context, vehicleID string) error

	// Fetch retrieves one telemetry payload for the vehicle.
	Fetch(ctx context.Context, vehicleID string, kind snapshot.Kind) (map[string]interface{}, error)
}

// Opener constructs a Session from a credential. Construction itself fails
// with ErrCredentialRejected when the credential is expired or invalid.
type Opener func(ctx context.Context, token string) (Session, error)
