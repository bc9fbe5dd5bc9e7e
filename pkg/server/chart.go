package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/meterboard/meterboard/pkg/catalog"
	"github.com/meterboard/meterboard/pkg/log"
	"github.com/meterboard/meterboard/pkg/metrics"
	"github.com/meterboard/meterboard/pkg/series"
	"github.com/meterboard/meterboard/pkg/storage"
	"github.com/meterboard/meterboard/pkg/timerange"
	"github.com/meterboard/meterboard/pkg/types"
	"github.com/meterboard/meterboard/pkg/viewport"
)

// palette assigns colors to sources in request order unless the catalog
// names one.
var palette = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

type chartResponse struct {
	Kind   string          `json:"kind"`
	Range  types.TimeRange `json:"range"`
	Layout types.Layout    `json:"layout"`
	series.Chart
}

func parseDateFormat(v string) (types.DateFormat, error) {
	switch f := types.DateFormat(v); f {
	case types.DateFormatMonthYear, types.DateFormatDayYear, types.DateFormatRaw:
		return f, nil
	default:
		return "", fmt.Errorf("unknown date format: %q", v)
	}
}

// parseSources builds the chart sources from repeated "source" parameters.
// An optional "name" parameter at the same position overrides the display
// name.
func parseSources(r *http.Request, c *catalog.Catalog) ([]types.Source, error) {
	q := r.URL.Query()
	ids := q["source"]
	names := q["name"]
	if len(ids) == 0 {
		return nil, errors.New("at least one source is required")
	}
	seen := make(map[string]struct{}, len(ids))
	sources := make([]types.Source, 0, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errors.New("source cannot be empty")
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("duplicate source: %s", id)
		}
		seen[id] = struct{}{}
		name := c.Name(id)
		if i < len(names) && strings.TrimSpace(names[i]) != "" {
			name = strings.TrimSpace(names[i])
		}
		color, ok := c.Color(id)
		if !ok {
			color = palette[i%len(palette)]
		}
		sources = append(sources, types.Source{
			ID:    id,
			Name:  name,
			Color: color,
		})
	}
	return sources, nil
}

// parseKind returns the measurement kind of the chart. Every source must be
// recorded in that unit: a catalog entry with a different unit is rejected so
// that totals never add up different units.
func parseKind(r *http.Request, sources []types.Source, c *catalog.Catalog) (string, error) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = storage.KindElectricity
	}
	if !slices.Contains(storage.Kinds(), kind) {
		return "", fmt.Errorf("%w: %s", storage.ErrUnknownKind, kind)
	}
	for _, src := range sources {
		if m, ok := c.Lookup(src.ID); ok && m.Unit != "" && m.Unit != kind {
			return "", fmt.Errorf("source %s records %s, not %s", src.ID, m.Unit, kind)
		}
	}
	return kind, nil
}

// parseRange resolves the requested range. Custom ranges with the end before
// the start are rejected here; the resolver itself passes them through.
func (s *Server) parseRange(r *http.Request) (types.TimeRange, error) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start != "" || end != "" {
		if start == "" || end == "" {
			return types.TimeRange{}, errors.New("start and end must be given together")
		}
		tr, err := timerange.ResolveCustom(start, end)
		if err != nil {
			return types.TimeRange{}, err
		}
		if tr.Duration() < 0 {
			return types.TimeRange{}, errors.New("end date is before start date")
		}
		return tr, nil
	}
	preset := q.Get("preset")
	if preset == "" {
		preset = s.defaultPreset
	}
	return timerange.ResolvePreset(preset, s.now())
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	sources, err := parseSources(r, s.catalog)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := parseKind(r, sources, s.catalog)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tr, err := s.parseRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}
	format := s.defaultFormat
	if v := q.Get("format"); v != "" {
		if format, err = parseDateFormat(v); err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	// the client reports its viewport width; without one the regular layout
	// is used
	var facility viewport.Facility
	if v := q.Get("width"); v != "" {
		width, err := strconv.Atoi(v)
		if err != nil || width <= 0 {
			writeJSONError(w, "invalid width", http.StatusBadRequest)
			return
		}
		facility = viewport.NewWidthFacility(width)
	}
	compact := viewport.Observe(ctx, facility, s.mobilePredicate)
	defer compact.Close()

	// custom end dates are inclusive, the store's stop bound is not
	fetch := tr
	if q.Get("start") != "" {
		fetch.End = fetch.End.AddDate(0, 0, 1)
	}

	ids := make([]string, len(sources))
	for i, src := range sources {
		ids[i] = src.ID
	}
	readings, err := s.storage.GetReadings(ctx, kind, ids, fetch)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get readings", slog.Any("sources", ids), slog.String("range", tr.Label), slog.Any("error", err))
		writeJSONError(w, "failed to get readings", http.StatusInternalServerError)
		return
	}

	chart := series.Build(sources, readings, format)
	metrics.ObserveChart(len(sources), len(chart.Rows))

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, chartResponse{
		Kind:   kind,
		Range:  tr,
		Layout: viewport.LayoutFor(compact.Value()),
		Chart:  chart,
	})
}
