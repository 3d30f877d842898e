package snapshot

import (
	"fmt"
	"time"

	"github.com/voltwatch/vehicle-telemetry-worker/tools/timeparser"
)

// Kind identifies one of the four telemetry snapshot kinds.
type Kind string

const (
	KindCharge  Kind = "charge"
	KindClimate Kind = "climate"
	KindDrive   Kind = "drive"
	KindVehicle Kind = "vehicle"
)

// Kinds lists all snapshot kinds in fetch order.
var Kinds = []Kind{KindCharge, KindClimate, KindDrive, KindVehicle}

// FetchCommand maps a kind to the upstream data request name.
func (k Kind) FetchCommand() string {
	switch k {
	case KindCharge:
		return "charge_state"
	case KindClimate:
		return "climate_state"
	case KindDrive:
		return "drive_state"
	case KindVehicle:
		return "vehicle_state"
	}
	return string(k)
}

// MissingFieldError reports a payload lacking a field the kind requires.
// Storage of the affected kind is skipped; the rest of the cycle proceeds.
type MissingFieldError struct {
	Kind  Kind
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s payload missing required field %q", e.Kind, e.Field)
}

// DriveFields are the drive-state fields stored as first-class columns.
// ShiftState and Speed are nullable upstream.
type DriveFields struct {
	GPSAsOf    time.Time
	Latitude   float64
	Longitude  float64
	Power      float64
	ShiftState *string
	Speed      *int64
}

// Normalized is one snapshot ready for storage: the instant derived from the
// upstream timestamp, the drive columns when applicable, and the residual
// payload with the extracted fields removed.
type Normalized struct {
	Kind      Kind
	Timestamp time.Time
	Drive     *DriveFields
	Payload   map[string]interface{}
}

// Extract normalizes one raw telemetry payload. The upstream timestamp field
// is epoch milliseconds for every kind; drive payloads additionally carry
// gps_as_of in epoch seconds plus the position fields. The input map is not
// modified.
func Extract(kind Kind, payload map[string]interface{}) (*Normalized, error) {
	rest := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		rest[k] = v
	}

	ts, err := popNumber(kind, rest, "timestamp")
	if err != nil {
		return nil, err
	}

	n := &Normalized{
		Kind:      kind,
		Timestamp: timeparser.FromEpochMillis(ts),
		Payload:   rest,
	}

	if kind != KindDrive {
		return n, nil
	}

	gpsAsOf, err := popNumber(kind, rest, "gps_as_of")
	if err != nil {
		return nil, err
	}
	lat, err := popNumber(kind, rest, "latitude")
	if err != nil {
		return nil, err
	}
	lon, err := popNumber(kind, rest, "longitude")
	if err != nil {
		return nil, err
	}
	power, err := popNumber(kind, rest, "power")
	if err != nil {
		return nil, err
	}
	shift, err := popNullableString(kind, rest, "shift_state")
	if err != nil {
		return nil, err
	}
	speed, err := popNullableInt(kind, rest, "speed")
	if err != nil {
		return nil, err
	}

	n.Drive = &DriveFields{
		GPSAsOf:    timeparser.FromEpochSeconds(gpsAsOf),
		Latitude:   lat,
		Longitude:  lon,
		Power:      power,
		ShiftState: shift,
		Speed:      speed,
	}
	return n, nil
}

func popNumber(kind Kind, payload map[string]interface{}, field string) (float64, error) {
	raw, ok := payload[field]
	if !ok {
		return 0, &MissingFieldError{Kind: kind, Field: field}
	}
	delete(payload, field)
	n, ok := timeparser.Number(raw)
	if !ok {
		return 0, &MissingFieldError{Kind: kind, Field: field}
	}
	return n, nil
}

// popNullableString requires the key to be present but allows a null value.
func popNullableString(kind Kind, payload map[string]interface{}, field string) (*string, error) {
	raw, ok := payload[field]
	if !ok {
		return nil, &MissingFieldError{Kind: kind, Field: field}
	}
	delete(payload, field)
	if raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, &MissingFieldError{Kind: kind, Field: field}
	}
	return &s, nil
}

// popNullableInt requires the key to be present but allows a null value.
func popNullableInt(kind Kind, payload map[string]interface{}, field string) (*int64, error) {
	raw, ok := payload[field]
	if !ok {
		return nil, &MissingFieldError{Kind: kind, Field: field}
	}
	delete(payload, field)
	if raw == nil {
		return nil, nil
	}
	n, ok := timeparser.Number(raw)
	if !ok {
		return nil, &MissingFieldError{Kind: kind, Field: field}
	}
	v := int64(n)
	return &v, nil
}
