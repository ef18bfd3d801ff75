package c2c

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/text/language"
)

// MockID is the service identifier of the simulated provider.
const MockID = "mock"

const mockMaxQuerySpan = 7 * 24 * time.Hour

var mockGranularities = GranularityTable{
	{Name: "1m", MaxSpan: time.Hour, Interval: time.Minute},
	{Name: "5m", MaxSpan: 24 * time.Hour, Interval: 5 * time.Minute},
	{Name: "1h", MaxSpan: mockMaxQuerySpan, Interval: time.Hour},
}

var mockPlaceholders = []string{"siteId", "deviceId"}

var mockSites = []string{"1", "2"}

var mockDevices = map[string]string{
	"inverter": "Inverter",
	"meter":    "Site Meter",
}

// Mock is a simulated provider that makes no network calls. Inverters follow
// a solar bell curve peaking at 12:30 and meters a home load oscillating
// between 1 and 2 kW.
type Mock struct {
	clock Clock

	mu     sync.Mutex
	values map[string]string
}

// NewMock creates a Mock provider.
func NewMock(clock Clock) *Mock {
	return &Mock{
		clock:  clock,
		values: make(map[string]string),
	}
}

// Info implements Service.
func (m *Mock) Info() types.ServiceInfo {
	return types.ServiceInfo{
		ID:   MockID,
		Name: "Mock",
		Settings: []types.SettingSpecifier{
			{
				Key:         "timeZone",
				Name:        "Time Zone",
				Type:        "string",
				Description: "Location used for the simulated day, defaults to UTC.",
			},
		},
		Placeholders: mockPlaceholders,
		Hidden:       true,
	}
}

// Validate implements Service. The only check is that the time zone loads.
func (m *Mock) Validate(ctx context.Context, config types.IntegrationConfiguration, locale language.Tag) types.Result {
	return validateConfiguration(ctx, m.Info(), config, locale, func(ctx context.Context) error {
		_, err := m.location(config)
		return err
	})
}

func (m *Mock) location(config types.IntegrationConfiguration) (*time.Location, error) {
	tz := config.StringProperty("timeZone")
	if tz == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(tz)
}

// DataValues implements Service.
func (m *Mock) DataValues(ctx context.Context, config types.IntegrationConfiguration, filters map[string]any) ([]types.DataValue, error) {
	siteID := types.PropertyString(filters, "siteId")
	if siteID == "" {
		values := make([]types.DataValue, 0, len(mockSites))
		for _, id := range mockSites {
			values = append(values, types.DataValue{
				Name:        "Mock Site " + id,
				Reference:   "/" + id,
				Identifiers: []string{id},
			})
		}
		return values, nil
	}

	deviceID := types.PropertyString(filters, "deviceId")
	var values []types.DataValue
	for _, id := range []string{"inverter", "meter"} {
		if deviceID != "" && id != deviceID {
			continue
		}
		v := types.DataValue{
			Name:        mockDevices[id],
			Reference:   "/" + siteID + "/" + id,
			Identifiers: []string{siteID, id},
		}
		if deviceID != "" {
			for _, field := range []string{"watts", "wattHours"} {
				v.Children = append(v.Children, types.DataValue{
					Name:        field,
					Reference:   v.Reference + "/" + field,
					Identifiers: []string{siteID, id, field},
				})
			}
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unknown mock device %q", deviceID)
	}
	return values, nil
}

// Datum implements Service. Property value references take the form
// /{siteId}/{deviceId}/<watts|wattHours>.
func (m *Mock) Datum(ctx context.Context, config types.IntegrationConfiguration, stream types.DatumStreamConfiguration, filter types.DatumQueryFilter) (*types.DatumQueryResult, error) {
	loc, err := m.location(config)
	if err != nil {
		return nil, err
	}
	start, end, next := queryRange(m.clock, filter, mockMaxQuerySpan)
	step := mockGranularities.ForQueryDateRange(start, end).Interval
	datum := newDatumSet(stream.ObjectID)

	for _, set := range ResolvePlaceholderSets(mockPlaceholders, stream.Placeholders, stream.SourceValueRefs) {
		siteID := types.PropertyString(set, "siteId")
		deviceID := types.PropertyString(set, "deviceId")
		if siteID == "" || deviceID == "" {
			return nil, fmt.Errorf("stream %d missing siteId or deviceId placeholder", stream.ID)
		}
		props := resolveProperties(stream, set)
		prefix := "/" + siteID + "/" + deviceID + "/"
		sourceID := ResolveTemplate(stream.SourceID, set)

		for ts := start.Truncate(step); ts.Before(end); ts = ts.Add(step) {
			if ts.Before(start) {
				continue
			}
			watts, wattHours := mockReading(deviceID, ts.In(loc))
			for _, p := range props {
				if !strings.HasPrefix(p.Reference, prefix) {
					continue
				}
				switch lastSegment(p.Reference) {
				case "watts":
					datum.add(sourceID, ts, p, watts)
				case "wattHours":
					datum.add(sourceID, ts, p, wattHours)
				}
			}
		}
	}

	return &types.DatumQueryResult{
		Results:         datum.results(),
		NextQueryFilter: next,
	}, nil
}

// mockReading returns the simulated power and the energy accumulated since
// local midnight for device at t.
func mockReading(deviceID string, t time.Time) (watts, wattHours float64) {
	hour := float64(t.Hour()) + float64(t.Minute())/60.0 + float64(t.Second())/3600.0
	switch deviceID {
	case "inverter":
		if hour >= 6 && hour <= 19 {
			watts = 3000 * math.Sin((hour-6)/13*math.Pi)
		}
		h := math.Min(math.Max(hour, 6), 19)
		wattHours = 3000 * 13 / math.Pi * (1 - math.Cos((h-6)/13*math.Pi))
	default:
		watts = 1500 + 500*math.Sin(hour*math.Pi)
		wattHours = 1500*hour + 500/math.Pi*(1-math.Cos(hour*math.Pi))
	}
	return watts, wattHours
}

// ExecuteInstruction implements Service. Control writes are simulated and
// can be read back with ControlValue.
func (m *Mock) ExecuteInstruction(ctx context.Context, config types.IntegrationConfiguration, control types.ControlConfiguration, instruction types.Instruction) types.InstructionStatus {
	return executeInstruction(ctx, m.clock.Now(), config, control, instruction, m.setControlValue)
}

func (m *Mock) setControlValue(ctx context.Context, config types.IntegrationConfiguration, control types.ControlConfiguration, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[mockControlKey(config, control.ControlID)] = value
	log.Ctx(ctx).InfoContext(
		ctx,
		"simulated control write",
		slog.String("controlId", control.ControlID),
		slog.String("controlReference", control.ControlReference),
		slog.String("value", value),
	)
	return nil
}

// ControlValue returns the last value written to controlID through config.
func (m *Mock) ControlValue(config types.IntegrationConfiguration, controlID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[mockControlKey(config, controlID)]
	return v, ok
}

func mockControlKey(config types.IntegrationConfiguration, controlID string) string {
	return config.SystemIdentifier() + "/" + strconv.Quote(controlID)
}
