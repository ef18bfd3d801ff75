package c2c

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/c2c/pkg/auth"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/text/language"
)

// EnphaseID is the service identifier of the Enphase provider.
const EnphaseID = "enphase"

const (
	enphaseDefaultBaseURL  = "https://api.enphaseenergy.com/api/v4"
	enphaseDefaultTokenURL = "https://api.enphaseenergy.com/oauth/token"
	enphaseMaxQuerySpan    = 7 * 24 * time.Hour
)

var enphaseGranularities = GranularityTable{
	{Name: "day", MaxSpan: 24 * time.Hour, Interval: 15 * time.Minute},
	{Name: "week", MaxSpan: enphaseMaxQuerySpan, Interval: 15 * time.Minute},
}

var enphasePlaceholders = []string{"systemId"}

// enphaseFields are the numeric values of a microinverter production
// interval.
var enphaseFields = map[string]string{
	"powr": "W",
	"enwh": "Wh",
}

// Enphase implements Service for the Enphase monitoring API v4. Tokens are
// obtained with the OAuth client credentials grant and every request carries
// the integration's API key.
type Enphase struct {
	rest     *RestClient
	clock    Clock
	tokenURL string
}

// NewEnphase creates an Enphase provider talking to baseURL with tokens from
// manager.
func NewEnphase(baseURL, tokenURL string, transport Transport, manager AuthorizationManager, clock Clock) *Enphase {
	return &Enphase{
		rest: &RestClient{
			BaseURL:    baseURL,
			Transport:  transport,
			Authorizer: OAuthAuthorizer{Manager: manager},
		},
		clock:    clock,
		tokenURL: tokenURL,
	}
}

func configuredEnphase(transport Transport, manager AuthorizationManager) *Enphase {
	baseURL := lflag.String("enphase-base-url", enphaseDefaultBaseURL, "Base URL of the Enphase API")
	tokenURL := lflag.String("enphase-token-url", enphaseDefaultTokenURL, "OAuth token URL of the Enphase API")
	e := NewEnphase(enphaseDefaultBaseURL, enphaseDefaultTokenURL, transport, manager, SystemClock)
	lflag.Do(func() {
		e.rest.BaseURL = *baseURL
		e.tokenURL = *tokenURL
	})
	return e
}

// Info implements Service.
func (e *Enphase) Info() types.ServiceInfo {
	return types.ServiceInfo{
		ID:   EnphaseID,
		Name: "Enphase",
		Settings: []types.SettingSpecifier{
			{
				Key:      "apiKey",
				Name:     "API Key",
				Type:     "password",
				Required: true,
				Secure:   true,
			},
			{
				Key:      "clientId",
				Name:     "Client ID",
				Type:     "string",
				Required: true,
			},
			{
				Key:      "clientSecret",
				Name:     "Client Secret",
				Type:     "password",
				Required: true,
				Secure:   true,
			},
		},
		Placeholders: enphasePlaceholders,
	}
}

// OAuthRegistration implements OAuthService.
func (e *Enphase) OAuthRegistration(config types.IntegrationConfiguration) (auth.Registration, error) {
	clientID := config.StringProperty("clientId")
	clientSecret := config.StringProperty("clientSecret")
	if clientID == "" || clientSecret == "" {
		return auth.Registration{}, errors.New("enphase integration missing client id or secret")
	}
	return auth.Registration{
		TokenURL:     e.tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	}, nil
}

func (e *Enphase) get(ctx context.Context, config types.IntegrationConfiguration, path string, q url.Values, dest any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", config.StringProperty("apiKey"))
	return e.rest.Get(ctx, config, path, q, dest)
}

// Validate implements Service by listing the account's systems.
func (e *Enphase) Validate(ctx context.Context, config types.IntegrationConfiguration, locale language.Tag) types.Result {
	return validateConfiguration(ctx, e.Info(), config, locale, func(ctx context.Context) error {
		return e.get(ctx, config, "/systems", url.Values{"size": {"1"}}, nil)
	})
}

type enphaseSystemsResponse struct {
	Systems []struct {
		SystemID int64  `json:"system_id"`
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
		Status   string `json:"status"`
	} `json:"systems"`
}

// DataValues implements Service. Without filters the systems are listed, with
// a systemId filter the production fields of that system.
func (e *Enphase) DataValues(ctx context.Context, config types.IntegrationConfiguration, filters map[string]any) ([]types.DataValue, error) {
	systemID := types.PropertyString(filters, "systemId")
	if systemID != "" {
		values := make([]types.DataValue, 0, len(enphaseFields))
		for _, field := range []string{"enwh", "powr"} {
			values = append(values, types.DataValue{
				Name:        field,
				Reference:   "/" + systemID + "/" + field,
				Identifiers: []string{systemID, field},
				Metadata:    map[string]any{"unit": enphaseFields[field]},
			})
		}
		return values, nil
	}

	var res enphaseSystemsResponse
	if err := e.get(ctx, config, "/systems", nil, &res); err != nil {
		return nil, err
	}
	values := make([]types.DataValue, 0, len(res.Systems))
	for _, s := range res.Systems {
		id := strconv.FormatInt(s.SystemID, 10)
		values = append(values, types.DataValue{
			Name:        s.Name,
			Reference:   "/" + id,
			Identifiers: []string{id},
			Metadata: map[string]any{
				"timeZone": s.Timezone,
				"status":   s.Status,
			},
		})
	}
	return values, nil
}

type enphaseTelemetryResponse struct {
	SystemID    int64            `json:"system_id"`
	Granularity string           `json:"granularity"`
	Intervals   []map[string]any `json:"intervals"`
}

// Datum implements Service. Property value references take the form
// /{systemId}/<field> where field is powr or enwh.
func (e *Enphase) Datum(ctx context.Context, config types.IntegrationConfiguration, stream types.DatumStreamConfiguration, filter types.DatumQueryFilter) (*types.DatumQueryResult, error) {
	start, end, next := queryRange(e.clock, filter, enphaseMaxQuerySpan)
	granularity := enphaseGranularities.ForQueryDateRange(start, end)
	datum := newDatumSet(stream.ObjectID)

	for _, set := range ResolvePlaceholderSets(enphasePlaceholders, stream.Placeholders, stream.SourceValueRefs) {
		systemID := types.PropertyString(set, "systemId")
		if systemID == "" {
			return nil, fmt.Errorf("stream %d missing systemId placeholder", stream.ID)
		}

		prefix := "/" + systemID + "/"
		fields := make(map[string][]streamProperty)
		for _, p := range resolveProperties(stream, set) {
			if !strings.HasPrefix(p.Reference, prefix) {
				continue
			}
			field := lastSegment(p.Reference)
			fields[field] = append(fields[field], p)
		}
		if len(fields) == 0 {
			continue
		}

		q := url.Values{
			"start_at":    {strconv.FormatInt(start.Unix(), 10)},
			"granularity": {granularity.Name},
		}
		var res enphaseTelemetryResponse
		if err := e.get(ctx, config, "/systems/"+systemID+"/telemetry/production_micro", q, &res); err != nil {
			return nil, err
		}

		sourceID := ResolveTemplate(stream.SourceID, set)
		for _, interval := range res.Intervals {
			endAt, ok := toFloat(interval["end_at"])
			if !ok {
				continue
			}
			ts := time.Unix(int64(endAt), 0).UTC()
			if ts.Before(start) || !ts.Before(end) {
				continue
			}
			for field, props := range fields {
				for _, p := range props {
					datum.add(sourceID, ts, p, interval[field])
				}
			}
		}
	}

	return &types.DatumQueryResult{
		Results:         datum.results(),
		NextQueryFilter: next,
	}, nil
}

// ExecuteInstruction implements Service. Enphase controls are read-only.
func (e *Enphase) ExecuteInstruction(ctx context.Context, config types.IntegrationConfiguration, control types.ControlConfiguration, instruction types.Instruction) types.InstructionStatus {
	return executeInstruction(ctx, e.clock.Now(), config, control, instruction, nil)
}
