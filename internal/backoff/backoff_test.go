package backoff_test

import (
	"testing"
	"time"

	"github.com/voltwatch/vehicle-telemetry-worker/internal/backoff"
)

var testNow = time.Date(2024, 3, 18, 9, 30, 0, 0, time.UTC)

func TestNextPollTime_Charging(t *testing.T) {
	charge := map[string]interface{}{"charging_state": "Charging"}
	drive := map[string]interface{}{"shift_state": "D"}

	next := backoff.NextPollTime(testNow, charge, drive)

	expected := testNow.Add(time.Minute)
	if !next.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, next)
	}
}

func TestNextPollTime_DisconnectedAndParked(t *testing.T) {
	charge := map[string]interface{}{"charging_state": "Disconnected"}
	drive := map[string]interface{}{"shift_state": "P"}

	next := backoff.NextPollTime(testNow, charge, drive)

	expected := testNow.Add(10 * time.Minute)
	if !next.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, next)
	}
}

func TestNextPollTime_DisconnectedShiftStateAbsent(t *testing.T) {
	charge := map[string]interface{}{"charging_state": "Disconnected"}
	drive := map[string]interface{}{}

	next := backoff.NextPollTime(testNow, charge, drive)

	expected := testNow.Add(10 * time.Minute)
	if !next.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, next)
	}
}

func TestNextPollTime_DisconnectedShiftStateNull(t *testing.T) {
	charge := map[string]interface{}{"charging_state": "Disconnected"}
	drive := map[string]interface{}{"shift_state": nil}

	next := backoff.NextPollTime(testNow, charge, drive)

	expected := testNow.Add(10 * time.Minute)
	if !next.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, next)
	}
}

func TestNextPollTime_DisconnectedAndDriving(t *testing.T) {
	charge := map[string]interface{}{"charging_state": "Disconnected"}
	drive := map[string]interface{}{"shift_state": "D"}

	next := backoff.NextPollTime(testNow, charge, drive)

	expected := testNow.Add(15 * time.Second)
	if !next.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, next)
	}
}

func TestNextPollTime_ChargingWinsOverParked(t *testing.T) {
	charge := map[string]interface{}{"charging_state": "Charging"}
	drive := map[string]interface{}{"shift_state": "P"}

	next := backoff.NextPollTime(testNow, charge, drive)

	expected := testNow.Add(time.Minute)
	if !next.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, next)
	}
}

func TestNextPollTime_UnknownChargingState(t *testing.T) {
	charge := map[string]interface{}{"charging_state": "Complete"}
	drive := map[string]interface{}{"shift_state": "P"}

	next := backoff.NextPollTime(testNow, charge, drive)

	expected := testNow.Add(15 * time.Second)
	if !next.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, next)
	}
}
