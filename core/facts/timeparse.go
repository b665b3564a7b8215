package facts

import (
	"strconv"
	"strings"
	"time"
)

// epochMillisCutoff separates epoch seconds from epoch milliseconds;
// millisecond timestamps are normally above 1e12.
const epochMillisCutoff = 1_000_000_000_000

// timeLayouts are tried in order for string timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimeLoose parses the timestamp shapes seen across hosting backends:
// RFC3339 with or without zone, a trailing "Z", bare dates, and epoch
// seconds or milliseconds as numbers or numeric strings.
func ParseTimeLoose(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case float64:
		return fromEpoch(v)
	case int64:
		return fromEpoch(float64(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		if isDigits(s) {
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return time.Time{}, false
			}
			return fromEpoch(n)
		}
		if strings.HasSuffix(s, "Z") {
			s = s[:len(s)-1] + "+00:00"
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func fromEpoch(v float64) (time.Time, bool) {
	if v <= 0 {
		return time.Time{}, false
	}
	seconds := v
	if v > epochMillisCutoff {
		seconds = v / 1000
	}
	sec := int64(seconds)
	nsec := int64((seconds - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
