package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reading is a single timestamped observation of a source.
type Reading struct {
	// Timestamp is the raw key as delivered by the store. It is usually
	// RFC3339 but callers may hand in dates or epoch values.
	Timestamp string `json:"timestamp"`
	// Value is nil when the store returned a row without a numeric value.
	Value    *float64 `json:"value"`
	SourceID string   `json:"sourceId"`
}

// Source is one named series participating in a chart.
type Source struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DateFormat selects how a row's timestamp is rendered for display.
type DateFormat string

const (
	// DateFormatMonthYear renders "Jan 2024", used for monthly comparisons.
	DateFormatMonthYear DateFormat = "month"
	// DateFormatDayYear renders "Jan 2, 2024", used for daily series.
	DateFormatDayYear DateFormat = "day"
	// DateFormatRaw leaves the raw timestamp untouched.
	DateFormatRaw DateFormat = "raw"
)

// CombinedRow holds one value per source for a single timestamp.
type CombinedRow struct {
	Timestamp     string
	FormattedDate string
	// Time is the parsed timestamp, valid only when Parsed is set.
	Time   time.Time
	Parsed bool
	// Values has a key for every source in the merge. A nil value means
	// there was no reading for that source at this timestamp.
	Values map[string]*float64
}

// Value returns the cell for sourceID and whether a reading exists.
func (r CombinedRow) Value(sourceID string) (float64, bool) {
	v := r.Values[sourceID]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// MarshalJSON flattens the row into the shape charting libraries expect:
// {"timestamp": ..., "formattedDate": ..., "<sourceID>": value|null}.
func (r CombinedRow) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Values)+2)
	for id, v := range r.Values {
		m[id] = v
	}
	// source IDs can never shadow the row keys
	m["timestamp"] = r.Timestamp
	m["formattedDate"] = r.FormattedDate
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal row %s: %w", r.Timestamp, err)
	}
	return b, nil
}

// SourceTotal is the aggregate for a single source within one merge.
type SourceTotal struct {
	SourceID       string  `json:"sourceId"`
	Total          float64 `json:"total"`
	PercentOfGrand float64 `json:"percentOfGrand"`
}

// Summary is the totals output of a merge, one entry per source in the order
// the sources were given.
type Summary struct {
	Sources    []SourceTotal `json:"sources"`
	GrandTotal float64       `json:"grandTotal"`
}

// Float returns a pointer to v. It is handy when building readings.
func Float(v float64) *float64 {
	return &v
}
