package series

import (
	"strconv"
	"strings"
	"time"

	"github.com/meterboard/meterboard/pkg/types"
)

// epochMillisThreshold separates epoch seconds from epoch milliseconds. Any
// value above it would be a date past the year 33658 if read as seconds.
const epochMillisThreshold = 1e12

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp converts a raw reading timestamp into a time. It accepts
// RFC3339 variants, bare dates and epoch seconds or milliseconds.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > epochMillisThreshold || n < -epochMillisThreshold {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

// FormatDate renders a row label. Unparseable timestamps are shown as-is.
func FormatDate(raw string, format types.DateFormat) string {
	t, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	t = t.UTC()
	switch format {
	case types.DateFormatMonthYear:
		return t.Format("Jan 2006")
	case types.DateFormatDayYear:
		return t.Format("Jan 2, 2006")
	default:
		return raw
	}
}
