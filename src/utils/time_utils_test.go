package utils

import (
	"testing"
	"time"
)

func TestResetTime(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 7, 42, 0, time.UTC)

	if got := ResetTime(ts, "minute"); !got.Equal(time.Date(2025, 3, 1, 12, 7, 0, 0, time.UTC)) {
		t.Fatalf("minute: got %s", got)
	}
	if got := ResetTime(ts, "hour"); !got.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("hour: got %s", got)
	}
	if got := ResetTime(ts, "week"); !got.Equal(ts) {
		t.Fatalf("unknown granularity should be a no-op, got %s", got)
	}
}

func TestBucketStart(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 7, 42, 0, time.UTC)

	if got := BucketStart(ts, 5*time.Minute); !got.Equal(time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)) {
		t.Fatalf("5m: got %s", got)
	}
	if got := BucketStart(ts, 15*time.Minute); !got.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("15m: got %s", got)
	}
}
