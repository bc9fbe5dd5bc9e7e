package storage

import (
	"context"
	"errors"

	"github.com/meterboard/meterboard/pkg/types"
)

// Measurement kinds the store records meter readings under. They double as
// the unit of every reading in the measurement.
const (
	KindElectricity = "kWh"
	KindWater       = "m³"
)

var (
	// ErrNotConfigured is returned when connection settings are missing or
	// still set to placeholder values.
	ErrNotConfigured = errors.New("time-series store not configured")
	// ErrUnknownKind is returned for a measurement kind outside Kinds.
	ErrUnknownKind = errors.New("unknown measurement kind")
)

// Kinds lists the measurement kinds searched by meter discovery.
func Kinds() []string {
	return []string{KindElectricity, KindWater}
}

// Database is the read side of the time-series store.
type Database interface {
	// DiscoverMeters returns the sorted, distinct meter IDs that reported in
	// the discovery lookback window. With no kinds every known kind is
	// searched.
	DiscoverMeters(ctx context.Context, kinds ...string) ([]string, error)

	// GetReadings returns the raw readings of each meter recorded under
	// kind in the range, keyed by meter ID. Meters without readings have no
	// key. Restricting to one kind keeps every reading in one unit.
	GetReadings(ctx context.Context, kind string, meterIDs []string, r types.TimeRange) (map[string][]types.Reading, error)

	// Lifecycle
	Close() error
}
