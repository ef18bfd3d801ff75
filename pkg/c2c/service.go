package c2c

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/c2c/pkg/auth"
	"github.com/raterudder/c2c/pkg/common"
	"github.com/raterudder/c2c/pkg/metrics"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/text/language"
)

// ErrUnknownService is returned when no provider is registered for a service
// identifier.
var ErrUnknownService = errors.New("unknown integration service")

// Service is a cloud integration provider.
type Service interface {
	// Info describes the provider and its settings.
	Info() types.ServiceInfo

	// Validate checks that config has every required setting and that the
	// provider accepts its credentials.
	Validate(ctx context.Context, config types.IntegrationConfiguration, locale language.Tag) types.Result

	// DataValues lists the provider hierarchy below the node described by
	// filters. Empty filters list the top level.
	DataValues(ctx context.Context, config types.IntegrationConfiguration, filters map[string]any) ([]types.DataValue, error)

	// Datum queries the provider for stream data in the range of filter.
	Datum(ctx context.Context, config types.IntegrationConfiguration, stream types.DatumStreamConfiguration, filter types.DatumQueryFilter) (*types.DatumQueryResult, error)

	// ExecuteInstruction carries out instruction against control and returns
	// its terminal status.
	ExecuteInstruction(ctx context.Context, config types.IntegrationConfiguration, control types.ControlConfiguration, instruction types.Instruction) types.InstructionStatus
}

// Configured registers the flags of every provider and returns a Map holding
// all of them. OAuth providers obtain their tokens through a shared
// auth.Manager whose registrations are resolved from store.
func Configured(store IntegrationStore, reg *metrics.Registry) *Map {
	timeout := lflag.Duration("http-timeout", time.Minute, "Timeout for requests to cloud providers")

	client := common.HTTPClient(time.Minute)
	transport := NewHTTPTransport(client, reg)

	m := NewMap()
	oauth := auth.NewManager(RegistrationLookup(store, m), client)

	m.SetService(AlsoEnergyID, configuredAlsoEnergy(transport, oauth))
	m.SetService(FroniusID, configuredFronius(transport))
	m.SetService(SolarEdgeID, configuredSolarEdge(transport))
	m.SetService(EnphaseID, configuredEnphase(transport, oauth))
	m.SetService(MockID, NewMock(SystemClock))

	lflag.Do(func() {
		client.Timeout = *timeout
	})

	return m
}

// Map holds the registered providers by service identifier.
type Map struct {
	mu       sync.Mutex
	services map[string]Service
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{
		services: make(map[string]Service),
	}
}

// SetService registers s under id, replacing any existing provider.
func (m *Map) SetService(id string, s Service) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[id] = s
}

// Service returns the provider registered under id.
func (m *Map) Service(id string) (Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, id)
	}
	return s, nil
}

// ListServices returns the info of every provider ordered by ID. Hidden
// providers are only included when showHidden is true.
func (m *Map) ListServices(showHidden bool) []types.ServiceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]types.ServiceInfo, 0, len(m.services))
	for _, s := range m.services {
		info := s.Info()
		if info.Hidden && !showHidden {
			continue
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}
