package series

import (
	"math"
	"sort"

	"github.com/meterboard/meterboard/pkg/types"
)

// rowIndex is the build-phase accumulator for a merge. It keeps rows keyed by
// raw timestamp along with the order keys were first seen so that the final
// sort is stable across calls.
type rowIndex struct {
	rows  map[string]*types.CombinedRow
	order []string
}

func newRowIndex(capacity int) *rowIndex {
	return &rowIndex{
		rows:  make(map[string]*types.CombinedRow, capacity),
		order: make([]string, 0, capacity),
	}
}

// get returns the row for the timestamp, creating a stub the first time the
// timestamp is seen.
func (idx *rowIndex) get(ts string, format types.DateFormat, sources []types.Source) *types.CombinedRow {
	if row, ok := idx.rows[ts]; ok {
		return row
	}
	t, ok := ParseTimestamp(ts)
	row := &types.CombinedRow{
		Timestamp:     ts,
		FormattedDate: FormatDate(ts, format),
		Time:          t,
		Parsed:        ok,
		Values:        make(map[string]*float64, len(sources)),
	}
	for _, s := range sources {
		row.Values[s.ID] = nil
	}
	idx.rows[ts] = row
	idx.order = append(idx.order, ts)
	return row
}

// materialize returns the rows sorted ascending by time. Rows whose timestamp
// could not be parsed are placed after all others in string order.
func (idx *rowIndex) materialize() []types.CombinedRow {
	out := make([]types.CombinedRow, 0, len(idx.order))
	for _, ts := range idx.order {
		out = append(out, *idx.rows[ts])
	}
	sort.SliceStable(out, func(i, j int) bool {
		iz, jz := !out[i].Parsed, !out[j].Parsed
		switch {
		case iz && jz:
			return out[i].Timestamp < out[j].Timestamp
		case iz != jz:
			return jz
		default:
			return out[i].Time.Before(out[j].Time)
		}
	})
	return out
}

// Merge aligns the readings of every source by timestamp. The result has one
// row per distinct raw timestamp and every row carries a key for each source.
// Readings whose SourceID does not match a source are ignored, as are readings
// listed under a map key that is not one of the sources.
//
// A reading with a nil value still creates its row; the cell stays nil. If the
// same source reports the same timestamp twice the later reading wins.
func Merge(sources []types.Source, readings map[string][]types.Reading, format types.DateFormat) []types.CombinedRow {
	var n int
	for _, s := range sources {
		n += len(readings[s.ID])
	}
	idx := newRowIndex(n)
	for _, s := range sources {
		for _, r := range readings[s.ID] {
			if r.SourceID != "" && r.SourceID != s.ID {
				continue
			}
			row := idx.get(r.Timestamp, format, sources)
			if r.Value == nil || math.IsNaN(*r.Value) || math.IsInf(*r.Value, 0) {
				// malformed, keep an earlier value rather than blanking it out
				continue
			}
			v := *r.Value
			row.Values[s.ID] = &v
		}
	}
	return idx.materialize()
}

// Totals sums each source across rows and computes its share of the grand
// total. Every source is present in the output, in the order given, even when
// it contributed nothing. Percentages are 0 when the grand total is 0.
func Totals(sources []types.Source, rows []types.CombinedRow) types.Summary {
	summary := types.Summary{
		Sources: make([]types.SourceTotal, 0, len(sources)),
	}
	for _, s := range sources {
		var total float64
		for _, row := range rows {
			if v, ok := row.Value(s.ID); ok {
				total += v
			}
		}
		summary.Sources = append(summary.Sources, types.SourceTotal{
			SourceID: s.ID,
			Total:    total,
		})
		summary.GrandTotal += total
	}
	if summary.GrandTotal == 0 {
		return summary
	}
	for i := range summary.Sources {
		summary.Sources[i].PercentOfGrand = summary.Sources[i].Total / summary.GrandTotal * 100
	}
	return summary
}

// Chart is a merged dataset ready to be serialized for a charting frontend.
type Chart struct {
	Sources []types.Source      `json:"sources"`
	Rows    []types.CombinedRow `json:"rows"`
	Totals  types.Summary       `json:"totals"`
}

// Build merges readings and computes totals in one call.
func Build(sources []types.Source, readings map[string][]types.Reading, format types.DateFormat) Chart {
	rows := Merge(sources, readings, format)
	return Chart{
		Sources: sources,
		Rows:    rows,
		Totals:  Totals(sources, rows),
	}
}
