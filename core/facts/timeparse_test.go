package facts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeLoose(t *testing.T) {
	testCases := []struct {
		name  string
		value any
		want  time.Time
		ok    bool
	}{
		{"rfc3339", "2025-03-01T12:30:00+08:00", time.Date(2025, 3, 1, 4, 30, 0, 0, time.UTC), true},
		{"rfc3339 zulu", "2025-03-01T04:30:00Z", time.Date(2025, 3, 1, 4, 30, 0, 0, time.UTC), true},
		{"no zone", "2025-03-01T04:30:00", time.Date(2025, 3, 1, 4, 30, 0, 0, time.UTC), true},
		{"space separator", "2025-03-01 04:30:00", time.Date(2025, 3, 1, 4, 30, 0, 0, time.UTC), true},
		{"bare date", "2025-03-01", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"epoch seconds", float64(1740800000), time.Unix(1740800000, 0).UTC(), true},
		{"epoch millis", float64(1740800000000), time.Unix(1740800000, 0).UTC(), true},
		{"epoch string", "1740800000", time.Unix(1740800000, 0).UTC(), true},
		{"int64 epoch", int64(1740800000), time.Unix(1740800000, 0).UTC(), true},
		{"nil", nil, time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"blank", "   ", time.Time{}, false},
		{"garbage", "not-a-date", time.Time{}, false},
		{"zero epoch", float64(0), time.Time{}, false},
		{"negative epoch", float64(-5), time.Time{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseTimeLoose(tc.value)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, tc.want.Equal(got), "want %v, got %v", tc.want, got)
			}
		})
	}
}

func FuzzParseTimeLoose(f *testing.F) {
	f.Add("2025-03-01T12:30:00+08:00")
	f.Add("2025-03-01 04:30:00")
	f.Add("1740800000")
	f.Add("not-a-date")
	f.Fuzz(func(t *testing.T, value string) {
		t1, ok1 := ParseTimeLoose(value)
		t2, ok2 := ParseTimeLoose(value)
		if ok1 != ok2 || !t1.Equal(t2) {
			t.Fatalf("non-deterministic parse of %q", value)
		}
		if !ok1 && !t1.IsZero() {
			t.Fatalf("failed parse of %q returned non-zero time", value)
		}
	})
}
