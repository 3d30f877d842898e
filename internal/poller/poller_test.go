package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/db"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/snapshot"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/telemetry"
	"go.uber.org/zap"
)

var pollNow = time.Date(2024, 3, 18, 9, 30, 0, 0, time.UTC)

// fakeTx satisfies pgx.Tx for the methods the poller path touches; the
// embedded interface panics on anything else.
type fakeTx struct {
	pgx.Tx
}

type fakeSession struct {
	infos       []telemetry.VehicleInfo
	infosErr    error
	wakeErr     error
	payloads    map[snapshot.Kind]map[string]interface{}
	fetchErrs   map[snapshot.Kind]error
	fetchedKind []snapshot.Kind
}

func (s *fakeSession) Vehicles(ctx context.Context) ([]telemetry.VehicleInfo, error) {
	return s.infos, s.infosErr
}

func (s *fakeSession) Wake(ctx context.Context, vehicleID string) error {
	return s.wakeErr
}

func (s *fakeSession) Fetch(ctx context.Context, vehicleID string, kind snapshot.Kind) (map[string]interface{}, error) {
	if err := s.fetchErrs[kind]; err != nil {
		return nil, err
	}
	s.fetchedKind = append(s.fetchedKind, kind)
	return s.payloads[kind], nil
}

type fakeStore struct {
	inserted    []*snapshot.Normalized
	insertErr   error
	metadataFor []uuid.UUID
}

func (s *fakeStore) InsertSnapshotTx(ctx context.Context, tx pgx.Tx, vehicleID uuid.UUID, snap *snapshot.Normalized) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, snap)
	return nil
}

func (s *fakeStore) UpdateVehicleMetadataTx(ctx context.Context, tx pgx.Tx, vehicleID uuid.UUID, info telemetry.VehicleInfo) error {
	s.metadataFor = append(s.metadataFor, vehicleID)
	return nil
}

func openerFor(session telemetry.Session, err error) telemetry.Opener {
	return func(ctx context.Context, token string) (telemetry.Session, error) {
		if err != nil {
			return nil, err
		}
		return session, nil
	}
}

func fullPayloads(chargingState string, shiftState interface{}) map[snapshot.Kind]map[string]interface{} {
	return map[snapshot.Kind]map[string]interface{}{
		snapshot.KindCharge: {
			"timestamp":      float64(1518639302000),
			"charging_state": chargingState,
			"battery_level":  float64(52),
		},
		snapshot.KindClimate: {
			"timestamp":   float64(1518639302000),
			"inside_temp": 21.5,
		},
		snapshot.KindDrive: {
			"timestamp":   float64(1518639302000),
			"gps_as_of":   float64(1518639301),
			"latitude":    37.4292,
			"longitude":   -122.1381,
			"power":       float64(8),
			"shift_state": shiftState,
			"speed":       nil,
		},
		snapshot.KindVehicle: {
			"timestamp": float64(1518639302000),
			"odometer":  25012.3,
		},
	}
}

func newTestPoller(open telemetry.Opener, store *fakeStore) *Poller {
	p := New(open, store, zap.NewNop())
	p.now = func() time.Time { return pollNow }
	return p
}

func testVehicle() db.Vehicle {
	return db.Vehicle{ID: uuid.New(), RemoteID: "veh-1"}
}

func TestPoll_StoresAllFourKinds(t *testing.T) {
	session := &fakeSession{payloads: fullPayloads("Charging", "P")}
	store := &fakeStore{}
	p := newTestPoller(openerFor(session, nil), store)

	next, perr := p.Poll(context.Background(), &fakeTx{}, testVehicle(), "token")
	if perr != nil {
		t.Fatalf("Expected success, got %v", perr)
	}

	if len(store.inserted) != 4 {
		t.Fatalf("Expected 4 snapshots stored, got %d", len(store.inserted))
	}
	kinds := map[snapshot.Kind]bool{}
	for _, snap := range store.inserted {
		kinds[snap.Kind] = true
	}
	for _, kind := range snapshot.Kinds {
		if !kinds[kind] {
			t.Errorf("Expected a %s snapshot", kind)
		}
	}

	expected := pollNow.Add(time.Minute)
	if !next.Equal(expected) {
		t.Errorf("Expected next poll %v, got %v", expected, next)
	}
}

func TestPoll_InvalidCredentialAtSessionOpen(t *testing.T) {
	store := &fakeStore{}
	p := newTestPoller(openerFor(nil, telemetry.ErrCredentialRejected), store)

	_, perr := p.Poll(context.Background(), &fakeTx{}, testVehicle(), "token")
	if perr == nil {
		t.Fatal("Expected failure")
	}
	if perr.Kind != FailureInvalidCredential {
		t.Errorf("Expected FailureInvalidCredential, got %d", perr.Kind)
	}
	if len(store.inserted) != 0 {
		t.Errorf("Expected no snapshots stored, got %d", len(store.inserted))
	}
}

func TestPoll_WakeTransportError(t *testing.T) {
	session := &fakeSession{
		payloads: fullPayloads("Charging", "P"),
		wakeErr:  telemetry.ErrUnavailable,
	}
	store := &fakeStore{}
	p := newTestPoller(openerFor(session, nil), store)

	_, perr := p.Poll(context.Background(), &fakeTx{}, testVehicle(), "token")
	if perr == nil || perr.Kind != FailureTransient {
		t.Fatalf("Expected FailureTransient, got %v", perr)
	}
	if len(session.fetchedKind) != 0 {
		t.Errorf("Expected no fetches after wake failure, got %v", session.fetchedKind)
	}
	if len(store.inserted) != 0 {
		t.Errorf("Expected no snapshots stored, got %d", len(store.inserted))
	}
}

func TestPoll_UnknownVehicle(t *testing.T) {
	session := &fakeSession{
		payloads:  fullPayloads("Charging", "P"),
		fetchErrs: map[snapshot.Kind]error{snapshot.KindCharge: telemetry.ErrUnknownVehicle},
	}
	store := &fakeStore{}
	p := newTestPoller(openerFor(session, nil), store)

	_, perr := p.Poll(context.Background(), &fakeTx{}, testVehicle(), "token")
	if perr == nil || perr.Kind != FailureVehicleNotFound {
		t.Fatalf("Expected FailureVehicleNotFound, got %v", perr)
	}
	if len(store.inserted) != 0 {
		t.Errorf("Expected no snapshots stored, got %d", len(store.inserted))
	}
}

func TestPoll_LateTransientFailureDiscardsEarlierFetches(t *testing.T) {
	session := &fakeSession{
		payloads:  fullPayloads("Charging", "P"),
		fetchErrs: map[snapshot.Kind]error{snapshot.KindVehicle: telemetry.ErrUnavailable},
	}
	store := &fakeStore{}
	p := newTestPoller(openerFor(session, nil), store)

	_, perr := p.Poll(context.Background(), &fakeTx{}, testVehicle(), "token")
	if perr == nil || perr.Kind != FailureTransient {
		t.Fatalf("Expected FailureTransient, got %v", perr)
	}
	if len(store.inserted) != 0 {
		t.Errorf("Expected earlier fetches discarded, got %d stored", len(store.inserted))
	}
}

func TestPoll_MissingFieldSkipsOnlyThatKind(t *testing.T) {
	payloads := fullPayloads("Disconnected", nil)
	delete(payloads[snapshot.KindClimate], "timestamp")
	session := &fakeSession{payloads: payloads}
	store := &fakeStore{}
	p := newTestPoller(openerFor(session, nil), store)

	next, perr := p.Poll(context.Background(), &fakeTx{}, testVehicle(), "token")
	if perr != nil {
		t.Fatalf("Expected success, got %v", perr)
	}

	if len(store.inserted) != 3 {
		t.Fatalf("Expected 3 snapshots stored, got %d", len(store.inserted))
	}
	for _, snap := range store.inserted {
		if snap.Kind == snapshot.KindClimate {
			t.Error("Expected climate snapshot to be skipped")
		}
	}

	// Disconnected with a null shift_state means parked.
	expected := pollNow.Add(10 * time.Minute)
	if !next.Equal(expected) {
		t.Errorf("Expected next poll %v, got %v", expected, next)
	}
}

func TestPoll_StorageErrorIsTransient(t *testing.T) {
	session := &fakeSession{payloads: fullPayloads("Charging", "P")}
	store := &fakeStore{insertErr: errors.New("constraint violation")}
	p := newTestPoller(openerFor(session, nil), store)

	_, perr := p.Poll(context.Background(), &fakeTx{}, testVehicle(), "token")
	if perr == nil || perr.Kind != FailureTransient {
		t.Fatalf("Expected FailureTransient, got %v", perr)
	}
}

func TestPoll_RefreshesMetadataFromVehicleList(t *testing.T) {
	vehicle := testVehicle()
	session := &fakeSession{
		payloads: fullPayloads("Charging", "P"),
		infos: []telemetry.VehicleInfo{
			{ID: "other", DisplayName: "Other"},
			{ID: vehicle.RemoteID, VIN: "5YJ3E1EA", DisplayName: "Daily"},
		},
	}
	store := &fakeStore{}
	p := newTestPoller(openerFor(session, nil), store)

	if _, perr := p.Poll(context.Background(), &fakeTx{}, vehicle, "token"); perr != nil {
		t.Fatalf("Expected success, got %v", perr)
	}

	if len(store.metadataFor) != 1 || store.metadataFor[0] != vehicle.ID {
		t.Errorf("Expected one metadata refresh for %v, got %v", vehicle.ID, store.metadataFor)
	}
}
