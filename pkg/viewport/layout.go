package viewport

import "github.com/meterboard/meterboard/pkg/types"

// MobilePredicate is the breakpoint below which charts switch to the compact
// layout.
const MobilePredicate = "(max-width: 640px)"

// LayoutFor returns the chart constants for the compact or regular layout.
func LayoutFor(compact bool) types.Layout {
	if compact {
		return types.Layout{
			ChartHeight:        300,
			XAxisLabelRotation: -45,
			XAxisHeight:        60,
			Compact:            true,
		}
	}
	return types.Layout{
		ChartHeight:        400,
		XAxisLabelRotation: 0,
		XAxisHeight:        30,
	}
}
