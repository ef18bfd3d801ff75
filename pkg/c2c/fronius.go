package c2c

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/text/language"
)

// FroniusID is the service identifier of the Fronius Solar.web provider.
const FroniusID = "fronius"

const (
	froniusDefaultBaseURL = "https://api.solarweb.com/swqapi"
	froniusMaxQuerySpan   = 24 * time.Hour
)

var froniusPlaceholders = []string{"systemId", "deviceId"}

// froniusChannels are the history channels offered per device type.
var froniusChannels = map[string][]string{
	"Inverter":   {"EnergyExported", "PowerReal_PAC_Sum"},
	"SmartMeter": {"EnergyReal_WAC_Sum_Consumed", "EnergyReal_WAC_Sum_Produced", "PowerReal_P_Sum"},
	"Battery":    {"StateOfCharge", "PowerBattCharge", "PowerBattDischarge"},
}

// Fronius implements Service for the Fronius Solar.web query API. Requests
// are authorized with an access key pair.
type Fronius struct {
	rest  *RestClient
	clock Clock
}

// NewFronius creates a Fronius provider talking to baseURL.
func NewFronius(baseURL string, transport Transport, clock Clock) *Fronius {
	return &Fronius{
		rest: &RestClient{
			BaseURL:   baseURL,
			Transport: transport,
			Authorizer: KeyAuthorizer{
				"AccessKeyId":    "accessKeyId",
				"AccessKeyValue": "accessKeyValue",
			},
		},
		clock: clock,
	}
}

func configuredFronius(transport Transport) *Fronius {
	baseURL := lflag.String("fronius-base-url", froniusDefaultBaseURL, "Base URL of the Fronius Solar.web query API")
	f := NewFronius(froniusDefaultBaseURL, transport, SystemClock)
	lflag.Do(func() {
		f.rest.BaseURL = *baseURL
	})
	return f
}

// Info implements Service.
func (f *Fronius) Info() types.ServiceInfo {
	return types.ServiceInfo{
		ID:   FroniusID,
		Name: "Fronius Solar.web",
		Settings: []types.SettingSpecifier{
			{
				Key:      "accessKeyId",
				Name:     "Access Key ID",
				Type:     "string",
				Required: true,
			},
			{
				Key:      "accessKeyValue",
				Name:     "Access Key Value",
				Type:     "password",
				Required: true,
				Secure:   true,
			},
		},
		Placeholders: froniusPlaceholders,
	}
}

// Validate implements Service by listing the account's PV systems.
func (f *Fronius) Validate(ctx context.Context, config types.IntegrationConfiguration, locale language.Tag) types.Result {
	return validateConfiguration(ctx, f.Info(), config, locale, func(ctx context.Context) error {
		return f.rest.Get(ctx, config, "/pvsystems", url.Values{"offset": {"0"}, "limit": {"1"}}, nil)
	})
}

type froniusSystemsResponse struct {
	PVSystems []struct {
		PVSystemID string  `json:"pvSystemId"`
		Name       string  `json:"name"`
		TimeZone   string  `json:"timeZone"`
		PeakPower  float64 `json:"peakPower"`
	} `json:"pvSystems"`
}

type froniusDevicesResponse struct {
	Devices []struct {
		DeviceID   string `json:"deviceId"`
		DeviceName string `json:"deviceName"`
		DeviceType string `json:"deviceType"`
		IsActive   bool   `json:"isActive"`
	} `json:"devices"`
}

// DataValues implements Service. The hierarchy is systems, then devices, then
// channels.
func (f *Fronius) DataValues(ctx context.Context, config types.IntegrationConfiguration, filters map[string]any) ([]types.DataValue, error) {
	systemID := types.PropertyString(filters, "systemId")
	if systemID == "" {
		var res froniusSystemsResponse
		if err := f.rest.Get(ctx, config, "/pvsystems", nil, &res); err != nil {
			return nil, err
		}
		values := make([]types.DataValue, 0, len(res.PVSystems))
		for _, s := range res.PVSystems {
			values = append(values, types.DataValue{
				Name:        s.Name,
				Reference:   "/" + s.PVSystemID,
				Identifiers: []string{s.PVSystemID},
				Metadata: map[string]any{
					"timeZone":  s.TimeZone,
					"peakPower": s.PeakPower,
				},
			})
		}
		return values, nil
	}

	var res froniusDevicesResponse
	if err := f.rest.Get(ctx, config, "/pvsystems/"+systemID+"/devices", nil, &res); err != nil {
		return nil, err
	}
	deviceID := types.PropertyString(filters, "deviceId")
	var values []types.DataValue
	for _, d := range res.Devices {
		if deviceID != "" && d.DeviceID != deviceID {
			continue
		}
		v := types.DataValue{
			Name:        d.DeviceName,
			Reference:   "/" + systemID + "/" + d.DeviceID,
			Identifiers: []string{systemID, d.DeviceID},
			Metadata: map[string]any{
				"deviceType": d.DeviceType,
				"active":     d.IsActive,
			},
		}
		if deviceID != "" {
			for _, ch := range froniusChannels[d.DeviceType] {
				v.Children = append(v.Children, types.DataValue{
					Name:        ch,
					Reference:   v.Reference + "/" + ch,
					Identifiers: []string{systemID, d.DeviceID, ch},
				})
			}
		}
		values = append(values, v)
	}
	return values, nil
}

type froniusHistResponse struct {
	Data []struct {
		LogDateTime time.Time `json:"logDateTime"`
		LogDuration int       `json:"logDuration"`
		Channels    []struct {
			ChannelName string   `json:"channelName"`
			ChannelType string   `json:"channelType"`
			Unit        string   `json:"unit"`
			Value       *float64 `json:"value"`
		} `json:"channels"`
	} `json:"data"`
}

// Datum implements Service. Property value references take the form
// /{systemId}/{deviceId}/<channel>.
func (f *Fronius) Datum(ctx context.Context, config types.IntegrationConfiguration, stream types.DatumStreamConfiguration, filter types.DatumQueryFilter) (*types.DatumQueryResult, error) {
	start, end, next := queryRange(f.clock, filter, froniusMaxQuerySpan)
	datum := newDatumSet(stream.ObjectID)

	for _, set := range ResolvePlaceholderSets(froniusPlaceholders, stream.Placeholders, stream.SourceValueRefs) {
		systemID := types.PropertyString(set, "systemId")
		deviceID := types.PropertyString(set, "deviceId")
		if systemID == "" || deviceID == "" {
			return nil, fmt.Errorf("stream %d missing systemId or deviceId placeholder", stream.ID)
		}

		prefix := "/" + systemID + "/" + deviceID + "/"
		channels := make(map[string][]streamProperty)
		for _, p := range resolveProperties(stream, set) {
			if !strings.HasPrefix(p.Reference, prefix) {
				continue
			}
			ch := lastSegment(p.Reference)
			channels[ch] = append(channels[ch], p)
		}
		if len(channels) == 0 {
			continue
		}
		names := make([]string, 0, len(channels))
		for name := range channels {
			names = append(names, name)
		}
		sort.Strings(names)

		q := url.Values{
			"from":    {start.UTC().Format(time.RFC3339)},
			"to":      {end.UTC().Format(time.RFC3339)},
			"channel": {strings.Join(names, ",")},
		}
		var res froniusHistResponse
		if err := f.rest.Get(ctx, config, "/pvsystems/"+systemID+"/devices/"+deviceID+"/histdata", q, &res); err != nil {
			return nil, err
		}

		sourceID := ResolveTemplate(stream.SourceID, set)
		for _, entry := range res.Data {
			if entry.LogDateTime.IsZero() {
				log.Ctx(ctx).DebugContext(ctx, "skipping fronius entry without date", slog.String("deviceId", deviceID))
				continue
			}
			for _, ch := range entry.Channels {
				if ch.Value == nil {
					continue
				}
				for _, p := range channels[ch.ChannelName] {
					datum.add(sourceID, entry.LogDateTime, p, *ch.Value)
				}
			}
		}
	}

	return &types.DatumQueryResult{
		Results:         datum.results(),
		NextQueryFilter: next,
	}, nil
}

// ExecuteInstruction implements Service. The query API has no write access.
func (f *Fronius) ExecuteInstruction(ctx context.Context, config types.IntegrationConfiguration, control types.ControlConfiguration, instruction types.Instruction) types.InstructionStatus {
	return executeInstruction(ctx, f.clock.Now(), config, control, instruction, nil)
}
