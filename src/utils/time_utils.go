package utils

import (
	"time"
)

// ResetTime resets the time component based on the granularity specified.
// Pass "minute" to reset seconds to zero.
// Pass "hour" to reset minutes and seconds to zero.
// Any other granularity returns t unchanged.
func ResetTime(t time.Time, granularity string) time.Time {
	switch granularity {
	case "minute":
		return t.Truncate(time.Minute)
	case "hour":
		return t.Truncate(time.Hour)
	default:
		return t
	}
}

// BucketStart aligns t to a wall-clock boundary of the given interval:
// 12:07 with 5m => 12:05. Intervals must be whole seconds.
func BucketStart(t time.Time, interval time.Duration) time.Time {
	step := int64(interval.Seconds())
	if step <= 0 {
		return t.UTC()
	}
	secs := t.Unix()
	return time.Unix((secs/step)*step, 0).UTC()
}

// UnixMilli converts epoch milliseconds (as sent by venues) to UTC time.
func UnixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
