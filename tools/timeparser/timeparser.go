package timeparser

import (
	"encoding/json"
	"time"
)

// FromEpochMillis converts an epoch-milliseconds value into a UTC instant
// truncated to millisecond precision.
func FromEpochMillis(ms float64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}

// FromEpochSeconds converts an epoch-seconds value into a UTC instant.
func FromEpochSeconds(sec float64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// Number coerces the numeric representations a decoded JSON payload can carry
// into a float64. Returns false for anything non-numeric.
func Number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
