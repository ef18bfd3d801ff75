package c2c

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raterudder/c2c/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolarEdge(t *testing.T) {
	config := types.IntegrationConfiguration{
		UserID:            1,
		ID:                2,
		ServiceIdentifier: SolarEdgeID,
		ServiceProperties: map[string]any{"apiKey": "se-key"},
	}

	t.Run("DataValues Sites", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "se-key", r.Header.Get("X-API-Key"))
			if r.URL.Path != "/sites/list" {
				http.Error(w, "not found", 404)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"sites": map[string]any{
					"count": 1,
					"site": []map[string]any{
						{"id": 123, "name": "Home", "status": "Active", "peakPower": 9.8, "location": map[string]any{"timeZone": "America/New_York"}},
					},
				},
			})
		}))
		defer ts.Close()

		se := NewSolarEdge(ts.URL, NewHTTPTransport(ts.Client(), nil), testClock)
		values, err := se.DataValues(context.Background(), config, nil)
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, "Home", values[0].Name)
		assert.Equal(t, "/123", values[0].Reference)
		assert.Equal(t, []string{"123"}, values[0].Identifiers)
		assert.Equal(t, "America/New_York", values[0].Metadata["timeZone"])
	})

	t.Run("DataValues Meters", func(t *testing.T) {
		transport := &fakeTransport{}
		se := NewSolarEdge("https://se.example.com", transport, testClock)
		values, err := se.DataValues(context.Background(), config, map[string]any{"siteId": "123"})
		require.NoError(t, err)
		require.Len(t, values, len(solarEdgeMeters))
		assert.Equal(t, "/123/Production", values[0].Reference)
		assert.Empty(t, transport.calls())
	})

	t.Run("Datum", func(t *testing.T) {
		var queries []string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "se-key", r.Header.Get("X-API-Key"))
			queries = append(queries, r.URL.Path+"?"+r.URL.RawQuery)
			q := r.URL.Query()
			assert.Equal(t, "2024-06-01 11:00:00", q.Get("startTime"))
			assert.Equal(t, "2024-06-01 12:00:00", q.Get("endTime"))
			assert.Equal(t, "QUARTER_OF_AN_HOUR", q.Get("timeUnit"))
			assert.Equal(t, "Consumption,Production", q.Get("meters"))
			json.NewEncoder(w).Encode(map[string]any{
				"powerDetails": map[string]any{
					"timeUnit": "QUARTER_OF_AN_HOUR",
					"unit":     "W",
					"meters": []map[string]any{
						{"type": "Production", "values": []map[string]any{
							{"date": "2024-06-01 11:00:00", "value": 1000.0},
							{"date": "2024-06-01 11:15:00", "value": 1200.0},
							{"date": "2024-06-01 11:30:00"},
						}},
						{"type": "Consumption", "values": []map[string]any{
							{"date": "2024-06-01 11:00:00", "value": 500.0},
						}},
					},
				},
			})
		}))
		defer ts.Close()

		stream := types.DatumStreamConfiguration{
			ID:              9,
			ObjectID:        77,
			SourceID:        "/SE/{siteId}",
			SourceValueRefs: []string{"/123", "/456"},
			Properties: []types.DatumStreamProperty{
				{Enabled: true, PropertyType: types.PropertyTypeInstantaneous, PropertyName: "watts", ValueReference: "/{siteId}/Production"},
				{Enabled: true, PropertyType: types.PropertyTypeInstantaneous, PropertyName: "consumptionWatts", ValueReference: "/{siteId}/Consumption", Multiplier: 0.001},
				{Enabled: false, PropertyType: types.PropertyTypeInstantaneous, PropertyName: "ignored", ValueReference: "/{siteId}/FeedIn"},
			},
		}

		se := NewSolarEdge(ts.URL, NewHTTPTransport(ts.Client(), nil), testClock)
		res, err := se.Datum(context.Background(), config, stream, types.DatumQueryFilter{StartDate: testNow.Add(-time.Hour)})
		require.NoError(t, err)
		assert.Nil(t, res.NextQueryFilter)
		assert.Equal(t, []string{
			"/site/123/powerDetails?endTime=2024-06-01+12%3A00%3A00&meters=Consumption%2CProduction&startTime=2024-06-01+11%3A00%3A00&timeUnit=QUARTER_OF_AN_HOUR",
			"/site/456/powerDetails?endTime=2024-06-01+12%3A00%3A00&meters=Consumption%2CProduction&startTime=2024-06-01+11%3A00%3A00&timeUnit=QUARTER_OF_AN_HOUR",
		}, queries)

		require.Len(t, res.Results, 4)
		first := res.Results[0]
		assert.Equal(t, "/SE/123", first.SourceID)
		assert.Equal(t, int64(77), first.ObjectID)
		assert.Equal(t, time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC), first.Timestamp)
		assert.Equal(t, map[string]float64{"watts": 1000, "consumptionWatts": 0.5}, first.Instantaneous)
		assert.Equal(t, "/SE/456", res.Results[1].SourceID)
		assert.Equal(t, map[string]float64{"watts": 1200}, res.Results[2].Instantaneous)
	})

	t.Run("Datum Long Range", func(t *testing.T) {
		transport := &fakeTransport{body: `{"powerDetails":{"meters":[]}}`}
		se := NewSolarEdge("https://se.example.com", transport, testClock)
		stream := types.DatumStreamConfiguration{
			SourceValueRefs: []string{"/123"},
			Properties: []types.DatumStreamProperty{
				{Enabled: true, PropertyType: types.PropertyTypeAccumulating, PropertyName: "wattHours", ValueReference: "/{siteId}/Production"},
			},
		}
		start := testNow.Add(-60 * 24 * time.Hour)
		res, err := se.Datum(context.Background(), config, stream, types.DatumQueryFilter{StartDate: start, EndDate: testNow})
		require.NoError(t, err)
		require.NotNil(t, res.NextQueryFilter)
		assert.Equal(t, start.Add(solarEdgeMaxQuerySpan), res.NextQueryFilter.StartDate)
		assert.Equal(t, testNow, res.NextQueryFilter.EndDate)
		calls := transport.calls()
		require.Len(t, calls, 1)
		assert.Contains(t, calls[0].URI, "timeUnit=DAY")
	})

	t.Run("Datum Missing Placeholder", func(t *testing.T) {
		se := NewSolarEdge("https://se.example.com", &fakeTransport{}, testClock)
		_, err := se.Datum(context.Background(), config, types.DatumStreamConfiguration{}, types.DatumQueryFilter{})
		assert.Error(t, err)
	})

	t.Run("Instructions Declined", func(t *testing.T) {
		se := NewSolarEdge("https://se.example.com", &fakeTransport{}, testClock)
		status := se.ExecuteInstruction(context.Background(), config, types.ControlConfiguration{ControlID: "c"}, types.Instruction{
			ID:         1,
			Topic:      types.TopicSetControlParameter,
			Parameters: map[string]string{"c": "1"},
		})
		assert.Equal(t, types.InstructionStateDeclined, status.State)
	})
}
