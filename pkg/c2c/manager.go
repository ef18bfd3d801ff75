package c2c

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/metrics"
	"github.com/raterudder/c2c/pkg/storage"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/text/language"
)

// IntegrationStore loads integration configurations.
type IntegrationStore interface {
	GetIntegrationConfiguration(ctx context.Context, userID, integrationID int64) (types.IntegrationConfiguration, error)
}

// ConfigurationStore loads the configurations the Manager operates on.
type ConfigurationStore interface {
	IntegrationStore
	GetControlConfiguration(ctx context.Context, nodeID int64, controlID string) (types.ControlConfiguration, error)
}

// EventAppender appends audit events to a user's event log.
type EventAppender interface {
	AddEvent(ctx context.Context, userID int64, event types.AuditEvent) error
}

// InstructionEventTags are attached to every instruction audit event.
var InstructionEventTags = []string{"c2c", "control", "instruction"}

// Manager routes operations to the provider of an integration and audits
// every executed instruction.
type Manager struct {
	services *Map
	store    ConfigurationStore
	events   EventAppender
	clock    Clock
	metrics  *metrics.Registry

	newEventID func() string
}

// NewManager creates a Manager. reg may be nil.
func NewManager(services *Map, store ConfigurationStore, events EventAppender, clock Clock, reg *metrics.Registry) *Manager {
	if clock == nil {
		clock = SystemClock
	}
	return &Manager{
		services:   services,
		store:      store,
		events:     events,
		clock:      clock,
		metrics:    reg,
		newEventID: uuid.NewString,
	}
}

// Services returns the provider registry.
func (m *Manager) Services() *Map {
	return m.services
}

// Validate validates config with its provider.
func (m *Manager) Validate(ctx context.Context, config types.IntegrationConfiguration, locale language.Tag) types.Result {
	svc, err := m.services.Service(config.ServiceIdentifier)
	if err != nil {
		p := printerFor(locale)
		return types.Result{
			Code:    CodeUnknownService,
			Message: p.Sprintf(msgUnknownService, config.ServiceIdentifier),
		}
	}
	ctx = log.WithAttrs(ctx,
		slog.String("service", config.ServiceIdentifier),
		slog.String("integration", config.SystemIdentifier()),
	)
	res := svc.Validate(ctx, config, locale)
	m.metrics.RecordValidation(config.ServiceIdentifier, res.Success)
	return res
}

// ValidateIntegration loads an integration and validates it.
func (m *Manager) ValidateIntegration(ctx context.Context, userID, integrationID int64, locale language.Tag) (types.Result, error) {
	config, err := m.store.GetIntegrationConfiguration(ctx, userID, integrationID)
	if err != nil {
		return types.Result{}, err
	}
	return m.Validate(ctx, config, locale), nil
}

// DataValues lists the provider hierarchy of an integration.
func (m *Manager) DataValues(ctx context.Context, userID, integrationID int64, filters map[string]any) ([]types.DataValue, error) {
	config, svc, err := m.integration(ctx, userID, integrationID)
	if err != nil {
		return nil, err
	}
	return svc.DataValues(ctx, config, filters)
}

// Datum queries the provider of stream's integration.
func (m *Manager) Datum(ctx context.Context, stream types.DatumStreamConfiguration, filter types.DatumQueryFilter) (*types.DatumQueryResult, error) {
	config, svc, err := m.integration(ctx, stream.UserID, stream.IntegrationID)
	if err != nil {
		return nil, err
	}
	ctx = log.WithAttrs(ctx, slog.Int64("streamId", stream.ID))
	return svc.Datum(ctx, config, stream, filter)
}

func (m *Manager) integration(ctx context.Context, userID, integrationID int64) (types.IntegrationConfiguration, Service, error) {
	config, err := m.store.GetIntegrationConfiguration(ctx, userID, integrationID)
	if err != nil {
		return types.IntegrationConfiguration{}, nil, err
	}
	svc, err := m.services.Service(config.ServiceIdentifier)
	if err != nil {
		return types.IntegrationConfiguration{}, nil, err
	}
	return config, svc, nil
}

// ExecuteInstruction executes instruction against the control controlID on
// the instruction's node and records exactly one audit event for it.
//
// An absent or disabled control returns storage.ErrControlNotFound and is not
// audited. An absent integration declines the instruction and returns
// storage.ErrIntegrationNotFound along with the declined status.
func (m *Manager) ExecuteInstruction(ctx context.Context, controlID string, instruction types.Instruction) (types.InstructionStatus, error) {
	control, err := m.store.GetControlConfiguration(ctx, instruction.NodeID, controlID)
	if err != nil {
		return types.InstructionStatus{}, err
	}
	if !control.Enabled {
		return types.InstructionStatus{}, fmt.Errorf("%w: %s is disabled", storage.ErrControlNotFound, controlID)
	}

	ctx = log.WithAttrs(ctx,
		slog.Int64("instructionId", instruction.ID),
		slog.Int64("nodeId", control.NodeID),
		slog.String("controlId", control.ControlID),
		slog.String("topic", instruction.Topic),
	)

	var (
		status    types.InstructionStatus
		serviceID string
		execErr   error
	)
	config, err := m.store.GetIntegrationConfiguration(ctx, control.UserID, control.IntegrationID)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to load integration for control", slog.Any("error", err))
		status = declined(instruction, m.clock.Now(), "integration not available")
		execErr = err
	} else if svc, err := m.services.Service(config.ServiceIdentifier); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "no provider for integration", slog.Any("error", err))
		status = declined(instruction, m.clock.Now(), err.Error())
		serviceID = config.ServiceIdentifier
		execErr = err
	} else {
		serviceID = config.ServiceIdentifier
		status = svc.ExecuteInstruction(ctx, config, control, instruction)
	}

	instruction.State = status.State
	instruction.StatusDate = status.StatusDate
	instruction.ResultParameters = status.ResultParameters

	log.Ctx(ctx).InfoContext(ctx, "executed instruction", slog.String("state", string(status.State)))
	m.metrics.RecordInstruction(serviceID, instruction.Topic, string(status.State))
	m.audit(ctx, control, instruction)

	return status, execErr
}

// audit appends the event for an executed instruction. Failures are logged
// and counted but never change the outcome of the instruction.
func (m *Manager) audit(ctx context.Context, control types.ControlConfiguration, instruction types.Instruction) {
	event := m.instructionEvent(ctx, control, instruction)
	if err := m.events.AddEvent(ctx, control.UserID, event); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to add instruction event", slog.String("eventId", event.ID), slog.Any("error", err))
		m.metrics.RecordAuditFailure()
	}
}

func (m *Manager) instructionEvent(ctx context.Context, control types.ControlConfiguration, instruction types.Instruction) types.AuditEvent {
	data := map[string]any{
		"configId":      control.ID,
		"integrationId": control.IntegrationID,
		"instructionId": instruction.ID,
		"state":         string(instruction.State),
		"topic":         instruction.Topic,
	}
	if serialized, err := instructionMap(instruction); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to serialize instruction", slog.Any("error", err))
	} else {
		data["instruction"] = serialized
	}
	return types.AuditEvent{
		ID:        m.newEventID(),
		Timestamp: m.clock.Now(),
		Tags:      append([]string(nil), InstructionEventTags...),
		Data:      data,
	}
}

func instructionMap(instruction types.Instruction) (map[string]any, error) {
	b, err := json.Marshal(instruction)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("instruction serialized to null")
	}
	return out, nil
}
