package main

import (
	"context"
	"testing"
	"time"

	"github.com/raterudder/c2c/pkg/c2c"
	"github.com/raterudder/c2c/pkg/storage/storagemock"
	"github.com/raterudder/c2c/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	db := &storagemock.MockDatabase{}
	db.On("ListIntegrationConfigurations", mock.Anything, int64(1)).Return([]types.IntegrationConfiguration{
		{UserID: 1, ID: 7},
	}, nil)
	db.On("DeleteIntegrationConfiguration", mock.Anything, int64(1), int64(7)).Return(nil)

	var integration types.IntegrationConfiguration
	db.On("SaveIntegrationConfiguration", mock.Anything, mock.AnythingOfType("types.IntegrationConfiguration")).Run(func(args mock.Arguments) {
		integration = args.Get(1).(types.IntegrationConfiguration)
	}).Return(nil)
	var stream types.DatumStreamConfiguration
	db.On("SaveDatumStreamConfiguration", mock.Anything, mock.AnythingOfType("types.DatumStreamConfiguration")).Run(func(args mock.Arguments) {
		stream = args.Get(1).(types.DatumStreamConfiguration)
	}).Return(nil)
	var control types.ControlConfiguration
	db.On("SaveControlConfiguration", mock.Anything, mock.AnythingOfType("types.ControlConfiguration")).Run(func(args mock.Arguments) {
		control = args.Get(1).(types.ControlConfiguration)
	}).Return(nil)
	db.On("GetEvents", mock.Anything, int64(1), now.Add(-24*time.Hour), now.Add(time.Minute)).Return([]types.AuditEvent{
		{ID: "e1", Timestamp: now, Data: map[string]any{"state": "Completed"}},
	}, nil)

	require.NoError(t, seed(ctx, db, 1, now))
	db.AssertExpectations(t)

	assert.Equal(t, c2c.MockID, integration.ServiceIdentifier)
	assert.True(t, integration.Enabled)
	assert.Equal(t, int64(1), integration.UserID)

	assert.Equal(t, integration.ID, stream.IntegrationID)
	assert.Equal(t, []string{"/1/inverter", "/1/meter"}, stream.SourceValueRefs)
	assert.Len(t, stream.Properties, 2)

	assert.Equal(t, integration.ID, control.IntegrationID)
	assert.Equal(t, "/power/limit", control.ControlID)
	assert.True(t, control.Enabled)
}

func TestSeedSaveError(t *testing.T) {
	db := &storagemock.MockDatabase{}
	db.On("ListIntegrationConfigurations", mock.Anything, int64(1)).Return([]types.IntegrationConfiguration{}, nil)
	db.On("SaveIntegrationConfiguration", mock.Anything, mock.Anything).Return(assert.AnError)

	err := seed(context.Background(), db, 1, time.Now())
	assert.ErrorIs(t, err, assert.AnError)
	db.AssertNotCalled(t, "SaveDatumStreamConfiguration", mock.Anything, mock.Anything)
}
