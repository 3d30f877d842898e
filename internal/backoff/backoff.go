package backoff

import "time"

// Poll intervals derived from the last cycle's telemetry content, plus the
// retry delays for recoverable poll failures.
const (
	ChargingInterval = time.Minute
	ParkedInterval   = 10 * time.Minute
	ActiveInterval   = 15 * time.Second

	NotFoundRetry  = 10 * time.Minute
	TransientRetry = 2 * time.Minute
)

// NextPollTime maps one cycle's charge and drive payloads to the next poll
// instant. First match wins: a charging vehicle is sampled every minute, a
// disconnected parked vehicle every ten, anything else every fifteen seconds.
// The caller reads now once so the decision stays atomic.
func NextPollTime(now time.Time, charge, drive map[string]interface{}) time.Time {
	switch {
	case chargingState(charge) == "Charging":
		return now.Add(ChargingInterval)
	case chargingState(charge) == "Disconnected" && parked(drive):
		return now.Add(ParkedInterval)
	}
	return now.Add(ActiveInterval)
}

func chargingState(charge map[string]interface{}) string {
	s, _ := charge["charging_state"].(string)
	return s
}

// parked reports whether the drive payload shows the vehicle out of gear.
// An absent or null shift_state counts as parked.
func parked(drive map[string]interface{}) bool {
	raw, ok := drive["shift_state"]
	if !ok || raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && s == "P"
}
