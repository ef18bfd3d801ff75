package storagemock

import (
	"context"
	"time"

	"github.com/raterudder/c2c/pkg/storage"
	"github.com/raterudder/c2c/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetIntegrationConfiguration(ctx context.Context, userID, integrationID int64) (types.IntegrationConfiguration, error) {
	args := m.Called(ctx, userID, integrationID)
	if len(args) > 0 {
		return args.Get(0).(types.IntegrationConfiguration), args.Error(1)
	}
	return types.IntegrationConfiguration{}, nil
}

func (m *MockDatabase) ListIntegrationConfigurations(ctx context.Context, userID int64) ([]types.IntegrationConfiguration, error) {
	args := m.Called(ctx, userID)
	if len(args) > 0 {
		return args.Get(0).([]types.IntegrationConfiguration), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) SaveIntegrationConfiguration(ctx context.Context, config types.IntegrationConfiguration) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *MockDatabase) DeleteIntegrationConfiguration(ctx context.Context, userID, integrationID int64) error {
	args := m.Called(ctx, userID, integrationID)
	return args.Error(0)
}

func (m *MockDatabase) GetDatumStreamConfiguration(ctx context.Context, userID, streamID int64) (types.DatumStreamConfiguration, error) {
	args := m.Called(ctx, userID, streamID)
	if len(args) > 0 {
		return args.Get(0).(types.DatumStreamConfiguration), args.Error(1)
	}
	return types.DatumStreamConfiguration{}, nil
}

func (m *MockDatabase) SaveDatumStreamConfiguration(ctx context.Context, config types.DatumStreamConfiguration) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *MockDatabase) GetControlConfiguration(ctx context.Context, nodeID int64, controlID string) (types.ControlConfiguration, error) {
	args := m.Called(ctx, nodeID, controlID)
	if len(args) > 0 {
		return args.Get(0).(types.ControlConfiguration), args.Error(1)
	}
	return types.ControlConfiguration{}, nil
}

func (m *MockDatabase) SaveControlConfiguration(ctx context.Context, config types.ControlConfiguration) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *MockDatabase) AddEvent(ctx context.Context, userID int64, event types.AuditEvent) error {
	args := m.Called(ctx, userID, event)
	return args.Error(0)
}

func (m *MockDatabase) GetEvents(ctx context.Context, userID int64, start, end time.Time) ([]types.AuditEvent, error) {
	args := m.Called(ctx, userID, start, end)
	if len(args) > 0 {
		return args.Get(0).([]types.AuditEvent), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
