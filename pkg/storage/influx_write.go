package storage

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/meterboard/meterboard/pkg/log"
	"github.com/meterboard/meterboard/pkg/metrics"
	"github.com/meterboard/meterboard/pkg/series"
	"github.com/meterboard/meterboard/pkg/types"
)

// WriteReadings stores readings under the measurement for kind, tagged by
// their SourceID. It backs the seed tool; the dashboard never writes.
// Readings without a value or with an unparseable timestamp are skipped.
func (f *InfluxProvider) WriteReadings(ctx context.Context, kind string, readings []types.Reading) (written int, err error) {
	if !slices.Contains(Kinds(), kind) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		ts, ok := series.ParseTimestamp(r.Timestamp)
		if !ok || r.Value == nil || r.SourceID == "" {
			log.Ctx(ctx).DebugContext(ctx, "skipping reading", slog.String("source", r.SourceID), slog.String("timestamp", r.Timestamp))
			continue
		}
		points = append(points, influxdb2.NewPoint(
			kind,
			map[string]string{"entity_id": r.SourceID},
			map[string]any{"value": *r.Value},
			ts,
		))
	}
	if len(points) == 0 {
		return 0, nil
	}

	start := time.Now()
	defer func() {
		metrics.ObserveStoreQuery("write", metrics.Result(err), time.Since(start))
	}()

	if err := f.client.WriteAPIBlocking(f.org, f.bucket).WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("failed to write readings: %w", err)
	}
	return len(points), nil
}
