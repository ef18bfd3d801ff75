package c2c

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/text/language"
)

// SolarEdgeID is the service identifier of the SolarEdge provider.
const SolarEdgeID = "solaredge"

const (
	solarEdgeDefaultBaseURL = "https://monitoringapi.solaredge.com"
	solarEdgeTimeLayout     = "2006-01-02 15:04:05"
	solarEdgeMaxQuerySpan   = 30 * 24 * time.Hour
)

var solarEdgeGranularities = GranularityTable{
	{Name: "QUARTER_OF_AN_HOUR", MaxSpan: 24 * time.Hour, Interval: 15 * time.Minute},
	{Name: "HOUR", MaxSpan: 7 * 24 * time.Hour, Interval: time.Hour},
	{Name: "DAY", MaxSpan: solarEdgeMaxQuerySpan, Interval: 24 * time.Hour},
}

var solarEdgePlaceholders = []string{"siteId"}

// solarEdgeMeters are the meter types reported by the power details endpoint.
var solarEdgeMeters = []string{"Production", "Consumption", "SelfConsumption", "FeedIn", "Purchased"}

// SolarEdge implements Service for the SolarEdge monitoring API. Requests
// are authorized with the integration's API key.
type SolarEdge struct {
	rest  *RestClient
	clock Clock
}

// NewSolarEdge creates a SolarEdge provider talking to baseURL.
func NewSolarEdge(baseURL string, transport Transport, clock Clock) *SolarEdge {
	return &SolarEdge{
		rest: &RestClient{
			BaseURL:    baseURL,
			Transport:  transport,
			Authorizer: KeyAuthorizer{"X-API-Key": "apiKey"},
		},
		clock: clock,
	}
}

func configuredSolarEdge(transport Transport) *SolarEdge {
	baseURL := lflag.String("solaredge-base-url", solarEdgeDefaultBaseURL, "Base URL of the SolarEdge monitoring API")
	s := NewSolarEdge(solarEdgeDefaultBaseURL, transport, SystemClock)
	lflag.Do(func() {
		s.rest.BaseURL = *baseURL
	})
	return s
}

// Info implements Service.
func (s *SolarEdge) Info() types.ServiceInfo {
	return types.ServiceInfo{
		ID:   SolarEdgeID,
		Name: "SolarEdge",
		Settings: []types.SettingSpecifier{
			{
				Key:      "apiKey",
				Name:     "API Key",
				Type:     "password",
				Required: true,
				Secure:   true,
			},
		},
		Placeholders: solarEdgePlaceholders,
	}
}

// Validate implements Service by listing the account's sites.
func (s *SolarEdge) Validate(ctx context.Context, config types.IntegrationConfiguration, locale language.Tag) types.Result {
	return validateConfiguration(ctx, s.Info(), config, locale, func(ctx context.Context) error {
		return s.rest.Get(ctx, config, "/sites/list", url.Values{"size": {"1"}}, nil)
	})
}

type solarEdgeSite struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	PeakPower float64 `json:"peakPower"`
	Location  struct {
		TimeZone string `json:"timeZone"`
	} `json:"location"`
}

type solarEdgeSitesResponse struct {
	Sites struct {
		Count int             `json:"count"`
		Site  []solarEdgeSite `json:"site"`
	} `json:"sites"`
}

// DataValues implements Service. Without filters the sites are listed, with
// a siteId filter the meters of that site.
func (s *SolarEdge) DataValues(ctx context.Context, config types.IntegrationConfiguration, filters map[string]any) ([]types.DataValue, error) {
	siteID := types.PropertyString(filters, "siteId")
	if siteID != "" {
		values := make([]types.DataValue, 0, len(solarEdgeMeters))
		for _, meter := range solarEdgeMeters {
			values = append(values, types.DataValue{
				Name:        meter,
				Reference:   "/" + siteID + "/" + meter,
				Identifiers: []string{siteID, meter},
				Metadata:    map[string]any{"unit": "W"},
			})
		}
		return values, nil
	}

	var res solarEdgeSitesResponse
	if err := s.rest.Get(ctx, config, "/sites/list", nil, &res); err != nil {
		return nil, err
	}
	values := make([]types.DataValue, 0, len(res.Sites.Site))
	for _, site := range res.Sites.Site {
		id := strconv.FormatInt(site.ID, 10)
		values = append(values, types.DataValue{
			Name:        site.Name,
			Reference:   "/" + id,
			Identifiers: []string{id},
			Metadata: map[string]any{
				"status":    site.Status,
				"peakPower": site.PeakPower,
				"timeZone":  site.Location.TimeZone,
			},
		})
	}
	return values, nil
}

type solarEdgePowerDetailsResponse struct {
	PowerDetails struct {
		TimeUnit string `json:"timeUnit"`
		Unit     string `json:"unit"`
		Meters   []struct {
			Type   string `json:"type"`
			Values []struct {
				Date  string   `json:"date"`
				Value *float64 `json:"value"`
			} `json:"values"`
		} `json:"meters"`
	} `json:"powerDetails"`
}

// Datum implements Service. Property value references take the form
// /{siteId}/<meter>. Dates are interpreted in the timeZone placeholder, or
// UTC.
func (s *SolarEdge) Datum(ctx context.Context, config types.IntegrationConfiguration, stream types.DatumStreamConfiguration, filter types.DatumQueryFilter) (*types.DatumQueryResult, error) {
	start, end, next := queryRange(s.clock, filter, solarEdgeMaxQuerySpan)
	granularity := solarEdgeGranularities.ForQueryDateRange(start, end)
	datum := newDatumSet(stream.ObjectID)

	for _, set := range ResolvePlaceholderSets(solarEdgePlaceholders, stream.Placeholders, stream.SourceValueRefs) {
		siteID := types.PropertyString(set, "siteId")
		if siteID == "" {
			return nil, fmt.Errorf("stream %d missing siteId placeholder", stream.ID)
		}
		loc, err := placeholderLocation(set)
		if err != nil {
			return nil, err
		}

		prefix := "/" + siteID + "/"
		meters := make(map[string][]streamProperty)
		for _, p := range resolveProperties(stream, set) {
			if !strings.HasPrefix(p.Reference, prefix) {
				continue
			}
			meter := lastSegment(p.Reference)
			meters[meter] = append(meters[meter], p)
		}
		if len(meters) == 0 {
			continue
		}
		names := make([]string, 0, len(meters))
		for name := range meters {
			names = append(names, name)
		}
		sort.Strings(names)

		q := url.Values{
			"startTime": {start.In(loc).Format(solarEdgeTimeLayout)},
			"endTime":   {end.In(loc).Format(solarEdgeTimeLayout)},
			"timeUnit":  {granularity.Name},
			"meters":    {strings.Join(names, ",")},
		}
		var res solarEdgePowerDetailsResponse
		if err := s.rest.Get(ctx, config, "/site/"+siteID+"/powerDetails", q, &res); err != nil {
			return nil, err
		}

		sourceID := ResolveTemplate(stream.SourceID, set)
		for _, meter := range res.PowerDetails.Meters {
			props := meters[meter.Type]
			for _, v := range meter.Values {
				if v.Value == nil {
					continue
				}
				ts, err := time.ParseInLocation(solarEdgeTimeLayout, v.Date, loc)
				if err != nil {
					log.Ctx(ctx).DebugContext(ctx, "skipping solaredge value with invalid date", slog.String("date", v.Date))
					continue
				}
				for _, p := range props {
					datum.add(sourceID, ts, p, *v.Value)
				}
			}
		}
	}

	return &types.DatumQueryResult{
		Results:         datum.results(),
		NextQueryFilter: next,
	}, nil
}

// ExecuteInstruction implements Service. SolarEdge controls are read-only.
func (s *SolarEdge) ExecuteInstruction(ctx context.Context, config types.IntegrationConfiguration, control types.ControlConfiguration, instruction types.Instruction) types.InstructionStatus {
	return executeInstruction(ctx, s.clock.Now(), config, control, instruction, nil)
}

// placeholderLocation loads the timeZone placeholder of set, defaulting to
// UTC.
func placeholderLocation(set map[string]any) (*time.Location, error) {
	tz := types.PropertyString(set, "timeZone")
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timeZone placeholder %q: %w", tz, err)
	}
	return loc, nil
}
