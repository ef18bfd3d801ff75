package c2c

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/c2c/pkg/auth"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/text/language"
)

// AlsoEnergyID is the service identifier of the AlsoEnergy provider.
const AlsoEnergyID = "alsoenergy"

const (
	alsoEnergyDefaultBaseURL  = "https://api.alsoenergy.com"
	alsoEnergyDefaultTokenURL = "https://api.alsoenergy.com/Auth/token"
	alsoEnergyMaxQuerySpan    = 31 * 24 * time.Hour
)

var alsoEnergyGranularities = GranularityTable{
	{Name: "Raw", MaxSpan: 15 * time.Minute},
	{Name: "Bin5Min", MaxSpan: 24 * time.Hour, Interval: 5 * time.Minute},
	{Name: "BinHour", MaxSpan: alsoEnergyMaxQuerySpan, Interval: time.Hour},
}

var alsoEnergyPlaceholders = []string{"siteId", "hardwareId"}

// AlsoEnergy implements Service for the AlsoEnergy PowerTrack API. Tokens
// are obtained with the OAuth password grant using the integration's
// username and password.
type AlsoEnergy struct {
	rest     *RestClient
	clock    Clock
	tokenURL string
}

// NewAlsoEnergy creates an AlsoEnergy provider talking to baseURL with
// tokens from manager.
func NewAlsoEnergy(baseURL, tokenURL string, transport Transport, manager AuthorizationManager, clock Clock) *AlsoEnergy {
	return &AlsoEnergy{
		rest: &RestClient{
			BaseURL:    baseURL,
			Transport:  transport,
			Authorizer: OAuthAuthorizer{Manager: manager},
		},
		clock:    clock,
		tokenURL: tokenURL,
	}
}

func configuredAlsoEnergy(transport Transport, manager AuthorizationManager) *AlsoEnergy {
	baseURL := lflag.String("alsoenergy-base-url", alsoEnergyDefaultBaseURL, "Base URL of the AlsoEnergy API")
	tokenURL := lflag.String("alsoenergy-token-url", alsoEnergyDefaultTokenURL, "OAuth token URL of the AlsoEnergy API")
	a := NewAlsoEnergy(alsoEnergyDefaultBaseURL, alsoEnergyDefaultTokenURL, transport, manager, SystemClock)
	lflag.Do(func() {
		a.rest.BaseURL = *baseURL
		a.tokenURL = *tokenURL
	})
	return a
}

// Info implements Service.
func (a *AlsoEnergy) Info() types.ServiceInfo {
	return types.ServiceInfo{
		ID:   AlsoEnergyID,
		Name: "AlsoEnergy",
		Settings: []types.SettingSpecifier{
			{
				Key:      "username",
				Name:     "Username",
				Type:     "string",
				Required: true,
			},
			{
				Key:      "password",
				Name:     "Password",
				Type:     "password",
				Required: true,
				Secure:   true,
			},
		},
		Placeholders: alsoEnergyPlaceholders,
	}
}

// OAuthRegistration implements OAuthService.
func (a *AlsoEnergy) OAuthRegistration(config types.IntegrationConfiguration) (auth.Registration, error) {
	username := config.StringProperty("username")
	password := config.StringProperty("password")
	if username == "" || password == "" {
		return auth.Registration{}, errors.New("alsoenergy integration missing username or password")
	}
	return auth.Registration{
		TokenURL: a.tokenURL,
		Username: username,
		Password: password,
	}, nil
}

// Validate implements Service by listing the account's sites.
func (a *AlsoEnergy) Validate(ctx context.Context, config types.IntegrationConfiguration, locale language.Tag) types.Result {
	return validateConfiguration(ctx, a.Info(), config, locale, func(ctx context.Context) error {
		return a.rest.Get(ctx, config, "/Sites", nil, nil)
	})
}

type alsoEnergySitesResponse struct {
	Items []struct {
		SiteID   int64  `json:"siteId"`
		SiteName string `json:"siteName"`
	} `json:"items"`
}

type alsoEnergyHardwareResponse struct {
	Hardware []struct {
		ID             int64    `json:"id"`
		Name           string   `json:"name"`
		FunctionCode   string   `json:"functionCode"`
		FieldsArchived []string `json:"fieldsArchived"`
	} `json:"hardware"`
}

// DataValues implements Service. The hierarchy is sites, then hardware, then
// archived fields.
func (a *AlsoEnergy) DataValues(ctx context.Context, config types.IntegrationConfiguration, filters map[string]any) ([]types.DataValue, error) {
	siteID := types.PropertyString(filters, "siteId")
	if siteID == "" {
		var res alsoEnergySitesResponse
		if err := a.rest.Get(ctx, config, "/Sites", nil, &res); err != nil {
			return nil, err
		}
		values := make([]types.DataValue, 0, len(res.Items))
		for _, s := range res.Items {
			id := strconv.FormatInt(s.SiteID, 10)
			values = append(values, types.DataValue{
				Name:        s.SiteName,
				Reference:   "/" + id,
				Identifiers: []string{id},
			})
		}
		return values, nil
	}

	var res alsoEnergyHardwareResponse
	if err := a.rest.Get(ctx, config, "/Sites/"+siteID+"/Hardware", url.Values{"includeArchivedFields": {"true"}}, &res); err != nil {
		return nil, err
	}
	values := make([]types.DataValue, 0, len(res.Hardware))
	for _, h := range res.Hardware {
		id := strconv.FormatInt(h.ID, 10)
		v := types.DataValue{
			Name:        h.Name,
			Reference:   "/" + siteID + "/" + id,
			Identifiers: []string{siteID, id},
			Metadata:    map[string]any{"functionCode": h.FunctionCode},
		}
		for _, field := range h.FieldsArchived {
			v.Children = append(v.Children, types.DataValue{
				Name:        field,
				Reference:   v.Reference + "/" + field,
				Identifiers: []string{siteID, id, field},
			})
		}
		values = append(values, v)
	}
	return values, nil
}

// alsoEnergyDataResponse holds one row per timestamp with values ordered like
// the requested fields.
type alsoEnergyDataResponse struct {
	Items []struct {
		Timestamp time.Time  `json:"timestamp"`
		Data      []*float64 `json:"data"`
	} `json:"items"`
}

// Datum implements Service. Property value references take the form
// /{siteId}/{hardwareId}/<field>.
func (a *AlsoEnergy) Datum(ctx context.Context, config types.IntegrationConfiguration, stream types.DatumStreamConfiguration, filter types.DatumQueryFilter) (*types.DatumQueryResult, error) {
	start, end, next := queryRange(a.clock, filter, alsoEnergyMaxQuerySpan)
	granularity := alsoEnergyGranularities.ForQueryDateRange(start, end)
	datum := newDatumSet(stream.ObjectID)

	for _, set := range ResolvePlaceholderSets(alsoEnergyPlaceholders, stream.Placeholders, stream.SourceValueRefs) {
		siteID := types.PropertyString(set, "siteId")
		hardwareID := types.PropertyString(set, "hardwareId")
		if siteID == "" || hardwareID == "" {
			return nil, fmt.Errorf("stream %d missing siteId or hardwareId placeholder", stream.ID)
		}

		prefix := "/" + siteID + "/" + hardwareID + "/"
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
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		q := url.Values{
			"from":    {start.UTC().Format(time.RFC3339)},
			"to":      {end.UTC().Format(time.RFC3339)},
			"binSize": {granularity.Name},
			"fields":  {strings.Join(names, ",")},
			"tz":      {"UTC"},
		}
		var res alsoEnergyDataResponse
		if err := a.rest.Get(ctx, config, "/Sites/"+siteID+"/Hardware/"+hardwareID+"/Data", q, &res); err != nil {
			return nil, err
		}

		sourceID := ResolveTemplate(stream.SourceID, set)
		for _, item := range res.Items {
			for i, v := range item.Data {
				if v == nil || i >= len(names) {
					continue
				}
				for _, p := range fields[names[i]] {
					datum.add(sourceID, item.Timestamp, p, *v)
				}
			}
		}
	}

	return &types.DatumQueryResult{
		Results:         datum.results(),
		NextQueryFilter: next,
	}, nil
}

// ExecuteInstruction implements Service. AlsoEnergy controls are read-only.
func (a *AlsoEnergy) ExecuteInstruction(ctx context.Context, config types.IntegrationConfiguration, control types.ControlConfiguration, instruction types.Instruction) types.InstructionStatus {
	return executeInstruction(ctx, a.clock.Now(), config, control, instruction, nil)
}
