package types

import "time"

// TimeRange is a resolved selection handed to the data-fetching boundary.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Label is for display only and is never parsed back.
	Label string `json:"label"`
}

// Duration returns End minus Start. It is negative for inverted custom ranges.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Layout holds the chart constants chosen from the viewport condition.
type Layout struct {
	ChartHeight        int  `json:"chartHeight"`
	XAxisLabelRotation int  `json:"xAxisLabelRotation"`
	XAxisHeight        int  `json:"xAxisHeight"`
	Compact            bool `json:"compact"`
}
