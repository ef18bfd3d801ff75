package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/raterudder/c2c/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirestoreProvider(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	// Use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	t.Run("Integrations", func(t *testing.T) {
		c := types.IntegrationConfiguration{
			UserID:            1,
			ID:                2,
			Name:              "Roof",
			ServiceIdentifier: "solaredge",
			Enabled:           true,
			ServiceProperties: map[string]any{"apiKey": "abc"},
		}
		require.NoError(t, f.SaveIntegrationConfiguration(ctx, c))

		got, err := f.GetIntegrationConfiguration(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, "solaredge", got.ServiceIdentifier)
		assert.Equal(t, "abc", got.StringProperty("apiKey"))

		list, err := f.ListIntegrationConfigurations(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, f.DeleteIntegrationConfiguration(ctx, 1, 2))
		_, err = f.GetIntegrationConfiguration(ctx, 1, 2)
		assert.ErrorIs(t, err, ErrIntegrationNotFound)
	})

	t.Run("InvalidUserID", func(t *testing.T) {
		_, err := f.GetIntegrationConfiguration(ctx, 0, 2)
		assert.ErrorContains(t, err, "userID must be positive")
	})

	t.Run("DatumStreams", func(t *testing.T) {
		c := types.DatumStreamConfiguration{
			UserID:          1,
			ID:              3,
			IntegrationID:   2,
			SourceID:        "/SE/{siteId}",
			SourceValueRefs: []string{"/123/abc"},
		}
		require.NoError(t, f.SaveDatumStreamConfiguration(ctx, c))

		got, err := f.GetDatumStreamConfiguration(ctx, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, c.SourceValueRefs, got.SourceValueRefs)

		_, err = f.GetDatumStreamConfiguration(ctx, 1, 99)
		assert.ErrorIs(t, err, ErrDatumStreamNotFound)
	})

	t.Run("Controls", func(t *testing.T) {
		c := types.ControlConfiguration{
			UserID:        1,
			ID:            4,
			IntegrationID: 2,
			NodeID:        100,
			ControlID:     "/power/limit",
			Enabled:       true,
		}
		require.NoError(t, f.SaveControlConfiguration(ctx, c))

		got, err := f.GetControlConfiguration(ctx, 100, "/power/limit")
		require.NoError(t, err)
		assert.Equal(t, c, got)

		_, err = f.GetControlConfiguration(ctx, 100, "/missing")
		assert.ErrorIs(t, err, ErrControlNotFound)
	})

	t.Run("Events", func(t *testing.T) {
		now := time.Now().Truncate(time.Second).UTC()
		e := types.AuditEvent{
			ID:        "evt-1",
			Timestamp: now,
			Tags:      []string{"c2c", "control", "instruction"},
			Data:      map[string]any{"state": "Completed"},
		}
		require.NoError(t, f.AddEvent(ctx, 1, e))
		assert.Error(t, f.AddEvent(ctx, 1, e), "events cannot be overwritten")

		events, err := f.GetEvents(ctx, 1, now.Add(-time.Minute), now.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "Completed", events[0].Data["state"])
	})
}

func TestControlDocID(t *testing.T) {
	id, err := controlDocID(12, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, "12:%2Fa%2Fb", id)

	_, err = controlDocID(12, "")
	assert.Error(t, err)
}
