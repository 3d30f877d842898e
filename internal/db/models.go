package db

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account owning vehicles. AccessToken is the upstream
// credential; nil means the user is not polled.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	AccessToken  *string
	CreatedAt    time.Time
}

// Vehicle represents one remote vehicle belonging to a user.
// NextUpdateTime nil means the vehicle has never been scheduled and is
// polled immediately.
type Vehicle struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	RemoteID       string
	VIN            *string
	Color          *string
	Name           *string
	NextUpdateTime *time.Time
	CreatedAt      time.Time
}

// SnapshotRow is one stored telemetry snapshot. The drive-specific columns
// are nil for the charge, climate and vehicle kinds.
type SnapshotRow struct {
	ID         uuid.UUID
	VehicleID  uuid.UUID
	Timestamp  time.Time
	Data       []byte
	GPSAsOf    *time.Time
	Latitude   *float64
	Longitude  *float64
	Power      *float64
	ShiftState *string
	Speed      *int64
}
