package storage

import (
	"context"
	"time"

	"github.com/raterudder/c2c/pkg/types"
)

// Database defines the interface for persisting integration configurations
// and the audit event log.
type Database interface {
	// Integrations
	GetIntegrationConfiguration(ctx context.Context, userID, integrationID int64) (types.IntegrationConfiguration, error)
	ListIntegrationConfigurations(ctx context.Context, userID int64) ([]types.IntegrationConfiguration, error)
	SaveIntegrationConfiguration(ctx context.Context, config types.IntegrationConfiguration) error
	DeleteIntegrationConfiguration(ctx context.Context, userID, integrationID int64) error

	// Datum Streams
	GetDatumStreamConfiguration(ctx context.Context, userID, streamID int64) (types.DatumStreamConfiguration, error)
	SaveDatumStreamConfiguration(ctx context.Context, config types.DatumStreamConfiguration) error

	// Controls
	GetControlConfiguration(ctx context.Context, nodeID int64, controlID string) (types.ControlConfiguration, error)
	SaveControlConfiguration(ctx context.Context, config types.ControlConfiguration) error

	// Events
	AddEvent(ctx context.Context, userID int64, event types.AuditEvent) error
	GetEvents(ctx context.Context, userID int64, start, end time.Time) ([]types.AuditEvent, error)

	// Lifecycle
	Close() error
}
