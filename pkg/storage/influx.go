package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/levenlabs/go-lflag"
	"github.com/meterboard/meterboard/pkg/common"
	"github.com/meterboard/meterboard/pkg/log"
	"github.com/meterboard/meterboard/pkg/metrics"
	"github.com/meterboard/meterboard/pkg/types"
)

// DiscoveryLookback is how far back meter discovery searches for readings.
const DiscoveryLookback = 90 * 24 * time.Hour

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("range end is before start")

// placeholders are values shipped in example env files that must never reach
// a real connection.
var placeholders = []string{
	"changeme",
	"your-token",
	"your-org",
	"your_token_here",
	"my-token",
	"xxx",
}

var fluxEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// InfluxProvider implements Database on top of InfluxDB 2.x. Meter readings
// live in a single bucket, one measurement per unit, tagged by entity_id
// with the reading in the "value" field.
type InfluxProvider struct {
	client influxdb2.Client
	query  api.QueryAPI

	url     string
	token   string
	org     string
	bucket  string
	timeout time.Duration
}

var _ Database = (*InfluxProvider)(nil)

// ConfiguredInflux sets up the InfluxDB provider without initializing it.
// It registers flags for configuration.
func ConfiguredInflux() *InfluxProvider {
	url := lflag.String("influx-url", envDefault("INFLUX_URL", "http://localhost:8086"), "InfluxDB server URL")
	token := lflag.String("influx-token", envDefault("INFLUX_TOKEN", ""), "InfluxDB API token")
	org := lflag.String("influx-org", envDefault("INFLUX_ORG", ""), "InfluxDB organization")
	bucket := lflag.String("influx-bucket", envDefault("INFLUX_BUCKET", "lampfi"), "InfluxDB bucket holding meter readings")
	timeout := lflag.Duration("influx-timeout", 30*time.Second, "Timeout for a single InfluxDB request")

	f := &InfluxProvider{}

	lflag.Do(func() {
		f.url = *url
		f.token = *token
		f.org = *org
		f.bucket = *bucket
		f.timeout = *timeout
	})

	return f
}

// NewInfluxProvider creates a provider with explicit settings. Init must still
// be called before use.
func NewInfluxProvider(url, token, org, bucket string, timeout time.Duration) *InfluxProvider {
	return &InfluxProvider{
		url:     url,
		token:   token,
		org:     org,
		bucket:  bucket,
		timeout: timeout,
	}
}

func isPlaceholder(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return true
	}
	if strings.HasPrefix(v, "<") && strings.HasSuffix(v, ">") {
		return true
	}
	return slices.Contains(placeholders, v)
}

// Validate checks that every connection setting is present and not a
// placeholder.
func (f *InfluxProvider) Validate() error {
	for _, s := range []struct{ name, value string }{
		{"influx-url", f.url},
		{"influx-token", f.token},
		{"influx-org", f.org},
		{"influx-bucket", f.bucket},
	} {
		if isPlaceholder(s.value) {
			return fmt.Errorf("%w: %s is missing or a placeholder", ErrNotConfigured, s.name)
		}
	}
	return nil
}

// Init creates the InfluxDB client.
// This must be called before using the provider methods.
func (f *InfluxProvider) Init(ctx context.Context) error {
	if err := f.Validate(); err != nil {
		return err
	}
	opts := influxdb2.DefaultOptions().SetHTTPClient(common.HTTPClient(f.timeout))
	f.client = influxdb2.NewClientWithOptions(f.url, f.token, opts)
	f.query = f.client.QueryAPI(f.org)

	// an unreachable server is not fatal at startup, requests will fail
	// until it comes back
	if ok, err := f.client.Ping(ctx); err != nil || !ok {
		log.Ctx(ctx).WarnContext(ctx, "influxdb not reachable", slog.String("url", f.url), slog.Any("error", err))
	}
	return nil
}

// Close closes the InfluxDB client.
func (f *InfluxProvider) Close() error {
	if f.client != nil {
		f.client.Close()
	}
	return nil
}

func (f *InfluxProvider) discoverQuery(kinds []string) string {
	measurements := make([]string, len(kinds))
	for i, k := range kinds {
		measurements[i] = fmt.Sprintf(`r["_measurement"] == "%s"`, fluxEscaper.Replace(k))
	}
	return fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: -%dd)
		|> filter(fn: (r) => %s)
		|> filter(fn: (r) => r["_field"] == "value")
		|> keep(columns: ["entity_id"])
		|> group()
		|> distinct(column: "entity_id")
	`, fluxEscaper.Replace(f.bucket), int(DiscoveryLookback.Hours()/24), strings.Join(measurements, " or "))
}

// DiscoverMeters implements Database.
func (f *InfluxProvider) DiscoverMeters(ctx context.Context, kinds ...string) (ids []string, err error) {
	if len(kinds) == 0 {
		kinds = Kinds()
	}
	for _, k := range kinds {
		if !slices.Contains(Kinds(), k) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
		}
	}

	start := time.Now()
	defer func() {
		metrics.ObserveStoreQuery("discover", metrics.Result(err), time.Since(start))
	}()

	result, err := f.query.Query(ctx, f.discoverQuery(kinds))
	if err != nil {
		return nil, fmt.Errorf("failed to query meters: %w", err)
	}
	defer result.Close()

	seen := make(map[string]struct{})
	for result.Next() {
		id, ok := result.Record().Value().(string)
		if !ok || strings.TrimSpace(id) == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read meters: %w", err)
	}
	slices.Sort(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (f *InfluxProvider) readingsQuery(kind string, meterIDs []string, r types.TimeRange) string {
	filters := make([]string, len(meterIDs))
	for i, id := range meterIDs {
		filters[i] = fmt.Sprintf(`r["entity_id"] == "%s"`, fluxEscaper.Replace(id))
	}
	return fmt.Sprintf(`
		from(bucket: "%s")
		|> range(start: %s, stop: %s)
		|> filter(fn: (r) => r["_measurement"] == "%s")
		|> filter(fn: (r) => %s)
		|> filter(fn: (r) => r["_field"] == "value")
		|> group(columns: ["entity_id"])
		|> sort(columns: ["_time"])
	`, fluxEscaper.Replace(f.bucket), r.Start.UTC().Format(time.RFC3339Nano), r.End.UTC().Format(time.RFC3339Nano), fluxEscaper.Replace(kind), strings.Join(filters, " or "))
}

// GetReadings implements Database.
func (f *InfluxProvider) GetReadings(ctx context.Context, kind string, meterIDs []string, r types.TimeRange) (out map[string][]types.Reading, err error) {
	if !slices.Contains(Kinds(), kind) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	out = make(map[string][]types.Reading, len(meterIDs))
	if len(meterIDs) == 0 {
		return out, nil
	}
	if r.End.Before(r.Start) {
		return nil, fmt.Errorf("%w: %s - %s", ErrInvalidRange, r.Start, r.End)
	}

	start := time.Now()
	defer func() {
		metrics.ObserveStoreQuery("readings", metrics.Result(err), time.Since(start))
	}()

	result, err := f.query.Query(ctx, f.readingsQuery(kind, meterIDs, r))
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer result.Close()

	for result.Next() {
		rec := result.Record()
		id, ok := rec.ValueByKey("entity_id").(string)
		if !ok || id == "" {
			continue
		}
		out[id] = append(out[id], types.Reading{
			Timestamp: rec.Time().UTC().Format(time.RFC3339Nano),
			Value:     toFloat(rec.Value()),
			SourceID:  id,
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("failed to read readings: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetched readings", slog.String("kind", kind), slog.Int("meters", len(out)), slog.String("range", r.Label))
	return out, nil
}

// toFloat converts a Flux value into a reading value. Anything that is not
// numeric becomes nil so the merge treats it as missing.
func toFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return &n
	case int64:
		f := float64(n)
		return &f
	case uint64:
		f := float64(n)
		return &f
	default:
		return nil
	}
}
