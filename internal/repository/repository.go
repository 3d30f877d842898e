package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/db"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/snapshot"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/telemetry"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// PageSize is the fixed number of snapshots per query page.
const PageSize = 50

// TimeRange is a half-open [Start, End) snapshot filter.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

var snapshotTables = map[snapshot.Kind]string{
	snapshot.KindCharge:  "charge_states",
	snapshot.KindClimate: "climate_states",
	snapshot.KindDrive:   "drive_states",
	snapshot.KindVehicle: "vehicle_states",
}

// Repository handles database operations
type Repository struct {
	pool *db.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ListUsersWithToken returns users holding an upstream credential, in a
// stable order.
func (r *Repository) ListUsersWithToken(ctx context.Context) ([]db.User, error) {
	query := `
		SELECT id, email, password_hash, access_token, created_at
		FROM users
		WHERE access_token IS NOT NULL
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []db.User
	for rows.Next() {
		var u db.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.AccessToken, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return users, nil
}

// ListVehicles returns a user's vehicles in insertion order.
func (r *Repository) ListVehicles(ctx context.Context, userID uuid.UUID) ([]db.Vehicle, error) {
	query := `
		SELECT id, user_id, remote_id, vin, color, name, next_update_time, created_at
		FROM vehicles
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	return scanVehicles(rows)
}

// ListAllVehicles returns every vehicle in insertion order.
func (r *Repository) ListAllVehicles(ctx context.Context) ([]db.Vehicle, error) {
	query := `
		SELECT id, user_id, remote_id, vin, color, name, next_update_time, created_at
		FROM vehicles
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	return scanVehicles(rows)
}

// FindVehicleByRemoteID looks a vehicle up by its upstream identifier.
// Returns nil when no such vehicle exists.
func (r *Repository) FindVehicleByRemoteID(ctx context.Context, remoteID string) (*db.Vehicle, error) {
	query := `
		SELECT id, user_id, remote_id, vin, color, name, next_update_time, created_at
		FROM vehicles
		WHERE remote_id = $1
	`

	var v db.Vehicle
	err := r.pool.QueryRow(ctx, query, remoteID).Scan(
		&v.ID, &v.UserID, &v.RemoteID, &v.VIN, &v.Color, &v.Name, &v.NextUpdateTime, &v.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicle: %w", err)
	}
	return &v, nil
}

// UpdateNextPoll persists a vehicle's next poll time outside any transaction.
func (r *Repository) UpdateNextPoll(ctx context.Context, vehicleID uuid.UUID, next time.Time) error {
	query := `UPDATE vehicles SET next_update_time = $1 WHERE id = $2`
	if _, err := r.pool.Exec(ctx, query, next, vehicleID); err != nil {
		return fmt.Errorf("failed to update next poll time: %w", err)
	}
	return nil
}

// UpdateNextPollTx persists a vehicle's next poll time within a transaction
func (r *Repository) UpdateNextPollTx(ctx context.Context, tx pgx.Tx, vehicleID uuid.UUID, next time.Time) error {
	query := `UPDATE vehicles SET next_update_time = $1 WHERE id = $2`
	if _, err := tx.Exec(ctx, query, next, vehicleID); err != nil {
		return fmt.Errorf("failed to update next poll time: %w", err)
	}
	return nil
}

// UpdateVehicleMetadataTx refreshes the descriptive fields reported upstream.
func (r *Repository) UpdateVehicleMetadataTx(ctx context.Context, tx pgx.Tx, vehicleID uuid.UUID, info telemetry.VehicleInfo) error {
	query := `UPDATE vehicles SET vin = $1, color = $2, name = $3 WHERE id = $4`
	if _, err := tx.Exec(ctx, query, nullable(info.VIN), nullable(info.Color), nullable(info.DisplayName), vehicleID); err != nil {
		return fmt.Errorf("failed to update vehicle metadata: %w", err)
	}
	return nil
}

// ClearAccessToken removes a user's upstream credential. The user is not
// polled again until a credential is reissued externally.
func (r *Repository) ClearAccessToken(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE users SET access_token = NULL WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to clear access token: %w", err)
	}
	return nil
}

// InsertSnapshotTx appends one normalized snapshot within a transaction.
func (r *Repository) InsertSnapshotTx(ctx context.Context, tx pgx.Tx, vehicleID uuid.UUID, snap *snapshot.Normalized) error {
	table, ok := snapshotTables[snap.Kind]
	if !ok {
		return fmt.Errorf("unknown snapshot kind %q", snap.Kind)
	}

	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if snap.Kind == snapshot.KindDrive {
		query := `
			INSERT INTO drive_states (
				vehicle_id, timestamp, gps_as_of, latitude, longitude,
				power, shift_state, speed, data
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		d := snap.Drive
		if _, err := tx.Exec(ctx, query,
			vehicleID, snap.Timestamp, d.GPSAsOf, d.Latitude, d.Longitude,
			d.Power, d.ShiftState, d.Speed, payload,
		); err != nil {
			return fmt.Errorf("failed to insert drive snapshot: %w", err)
		}
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (vehicle_id, timestamp, data) VALUES ($1, $2, $3)`, table)
	if _, err := tx.Exec(ctx, query, vehicleID, snap.Timestamp, payload); err != nil {
		return fmt.Errorf("failed to insert %s snapshot: %w", snap.Kind, err)
	}
	return nil
}

// QuerySnapshots returns one page of snapshots for a vehicle plus the total
// match count. Without a range the page is ordered newest first; with a
// half-open [start, end) range, oldest first.
func (r *Repository) QuerySnapshots(ctx context.Context, kind snapshot.Kind, vehicleID uuid.UUID, rng *TimeRange, page int) ([]db.SnapshotRow, int, error) {
	table, ok := snapshotTables[kind]
	if !ok {
		return nil, 0, fmt.Errorf("unknown snapshot kind %q", kind)
	}

	where := `WHERE vehicle_id = $1`
	args := []interface{}{vehicleID}
	order := `ORDER BY timestamp DESC`
	if rng != nil {
		where += ` AND timestamp >= $2 AND timestamp < $3`
		args = append(args, rng.Start, rng.End)
		order = `ORDER BY timestamp ASC`
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, table, where)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	columns := `id, vehicle_id, timestamp, data`
	if kind == snapshot.KindDrive {
		columns = `id, vehicle_id, timestamp, data, gps_as_of, latitude, longitude, power, shift_state, speed`
	}
	query := fmt.Sprintf(`SELECT %s FROM %s %s %s LIMIT %d OFFSET %d`,
		columns, table, where, order, PageSize, (page-1)*PageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []db.SnapshotRow
	for rows.Next() {
		var s db.SnapshotRow
		if kind == snapshot.KindDrive {
			err = rows.Scan(&s.ID, &s.VehicleID, &s.Timestamp, &s.Data,
				&s.GPSAsOf, &s.Latitude, &s.Longitude, &s.Power, &s.ShiftState, &s.Speed)
		} else {
			err = rows.Scan(&s.ID, &s.VehicleID, &s.Timestamp, &s.Data)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, total, nil
}

func scanVehicles(rows pgx.Rows) ([]db.Vehicle, error) {
	var vehicles []db.Vehicle
	for rows.Next() {
		var v db.Vehicle
		if err := rows.Scan(&v.ID, &v.UserID, &v.RemoteID, &v.VIN, &v.Color, &v.Name, &v.NextUpdateTime, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return vehicles, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
