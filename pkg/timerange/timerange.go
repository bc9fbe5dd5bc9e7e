package timerange

import (
	"errors"
	"fmt"
	"time"

	"github.com/meterboard/meterboard/pkg/types"
)

// Preset labels in display order.
const (
	Last7Days    = "Last 7 Days"
	Last30Days   = "Last 30 Days"
	Last90Days   = "Last 90 Days"
	Last6Months  = "Last 6 Months"
	Last12Months = "Last 12 Months"
	YearToDate   = "Year to Date"
	AllTime      = "All Time"
)

// DateLayout is the layout accepted for custom range bounds.
const DateLayout = "2006-01-02"

const labelLayout = "Jan 2, 2006"

// ErrUnknownPreset is returned when a label is not one of the presets.
var ErrUnknownPreset = errors.New("unknown range preset")

// earliest is the start of the "All Time" preset. No meter in the store
// predates it.
var earliest = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

var presets = []struct {
	label string
	start func(now time.Time) time.Time
}{
	{Last7Days, func(now time.Time) time.Time { return now.AddDate(0, 0, -7) }},
	{Last30Days, func(now time.Time) time.Time { return now.AddDate(0, 0, -30) }},
	{Last90Days, func(now time.Time) time.Time { return now.AddDate(0, 0, -90) }},
	{Last6Months, func(now time.Time) time.Time { return now.AddDate(0, -6, 0) }},
	{Last12Months, func(now time.Time) time.Time { return now.AddDate(-1, 0, 0) }},
	{YearToDate, func(now time.Time) time.Time {
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	}},
	{AllTime, func(time.Time) time.Time { return earliest }},
}

// Presets returns the preset labels in display order.
func Presets() []string {
	labels := make([]string, len(presets))
	for i, p := range presets {
		labels[i] = p.label
	}
	return labels
}

// ResolvePreset returns the range for label ending at now. Windows are
// calendar-based in now's location, so across a DST change "Last 7 Days" is
// 167 or 169 hours unless now is in UTC.
func ResolvePreset(label string, now time.Time) (types.TimeRange, error) {
	for _, p := range presets {
		if p.label == label {
			return types.TimeRange{
				Start: p.start(now),
				End:   now,
				Label: p.label,
			}, nil
		}
	}
	return types.TimeRange{}, fmt.Errorf("%w: %q", ErrUnknownPreset, label)
}

// ResolveCustom parses start and end as calendar dates (UTC midnight). The
// only errors are parse errors: an end before start is returned unchanged and
// callers that need an ordered range must check TimeRange.Duration.
func ResolveCustom(start, end string) (types.TimeRange, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return types.TimeRange{}, fmt.Errorf("invalid start date: %w", err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return types.TimeRange{}, fmt.Errorf("invalid end date: %w", err)
	}
	return types.TimeRange{
		Start: s,
		End:   e,
		Label: s.Format(labelLayout) + " - " + e.Format(labelLayout),
	}, nil
}
