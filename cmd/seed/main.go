package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/c2c/pkg/c2c"
	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/storage"
	"github.com/raterudder/c2c/pkg/types"
)

const (
	seedIntegrationID = 1
	seedStreamID      = 1
	seedNodeID        = 100
	seedControlID     = "/power/limit"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	userID := lflag.String("seed-user-id", "1", "User ID that owns the seeded configurations")
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	uid, err := strconv.ParseInt(*userID, 10, 64)
	if err != nil || uid <= 0 {
		log.Ctx(ctx).ErrorContext(ctx, "invalid seed-user-id", slog.String("value", *userID))
		os.Exit(1)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding mock integration", slog.Int64("userID", uid))
	if err := seed(ctx, s, uid, time.Now()); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}

// seed replaces the user's integrations with one mock provider integration
// plus a datum stream and a control on it, then prints the user's recent
// audit events.
func seed(ctx context.Context, db storage.Database, userID int64, now time.Time) error {
	existing, err := db.ListIntegrationConfigurations(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list integrations: %w", err)
	}
	for _, c := range existing {
		if err := db.DeleteIntegrationConfiguration(ctx, userID, c.ID); err != nil {
			return fmt.Errorf("failed to delete integration %d: %w", c.ID, err)
		}
	}

	integration := types.IntegrationConfiguration{
		UserID:            userID,
		ID:                seedIntegrationID,
		Name:              "Simulated solar site",
		ServiceIdentifier: c2c.MockID,
		Enabled:           true,
		ServiceProperties: map[string]any{"timeZone": "America/Chicago"},
		Created:           now,
		Modified:          now,
	}
	if err := db.SaveIntegrationConfiguration(ctx, integration); err != nil {
		return fmt.Errorf("failed to save integration: %w", err)
	}

	stream := types.DatumStreamConfiguration{
		UserID:          userID,
		ID:              seedStreamID,
		IntegrationID:   seedIntegrationID,
		Name:            "Site 1 production",
		Enabled:         true,
		ObjectID:        seedNodeID,
		SourceID:        "/MOCK/{siteId}/{deviceId}",
		SourceValueRefs: []string{"/1/inverter", "/1/meter"},
		Properties: []types.DatumStreamProperty{
			{Enabled: true, PropertyType: types.PropertyTypeInstantaneous, PropertyName: "watts", ValueReference: "/{siteId}/{deviceId}/watts", Multiplier: 1},
			{Enabled: true, PropertyType: types.PropertyTypeAccumulating, PropertyName: "wattHours", ValueReference: "/{siteId}/{deviceId}/wattHours", Multiplier: 1},
		},
	}
	if err := db.SaveDatumStreamConfiguration(ctx, stream); err != nil {
		return fmt.Errorf("failed to save datum stream: %w", err)
	}

	control := types.ControlConfiguration{
		UserID:           userID,
		ID:               1,
		IntegrationID:    seedIntegrationID,
		NodeID:           seedNodeID,
		ControlID:        seedControlID,
		ControlReference: "/1/inverter/limit",
		Enabled:          true,
	}
	if err := db.SaveControlConfiguration(ctx, control); err != nil {
		return fmt.Errorf("failed to save control: %w", err)
	}

	fmt.Printf("Seeded integration %d, datum stream %d and control %s on node %d\n",
		integration.ID, stream.ID, control.ControlID, control.NodeID)

	events, err := db.GetEvents(ctx, userID, now.Add(-24*time.Hour), now.Add(time.Minute))
	if err != nil {
		return fmt.Errorf("failed to get events: %w", err)
	}
	for _, e := range events {
		fmt.Printf("Event %s at %s: %v\n", e.ID, e.Timestamp.Format(time.RFC3339), e.Data["state"])
	}
	return nil
}
