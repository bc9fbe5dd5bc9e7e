package storagemock

import (
	"context"

	"github.com/meterboard/meterboard/pkg/storage"
	"github.com/meterboard/meterboard/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

// DiscoverMeters records kinds as a single []string argument.
func (m *MockDatabase) DiscoverMeters(ctx context.Context, kinds ...string) ([]string, error) {
	args := m.Called(ctx, kinds)
	if len(args) > 0 {
		ids, _ := args.Get(0).([]string)
		return ids, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) GetReadings(ctx context.Context, kind string, meterIDs []string, r types.TimeRange) (map[string][]types.Reading, error) {
	args := m.Called(ctx, kind, meterIDs, r)
	if len(args) > 0 {
		readings, _ := args.Get(0).(map[string][]types.Reading)
		return readings, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
