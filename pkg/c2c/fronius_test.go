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

func TestFronius(t *testing.T) {
	config := types.IntegrationConfiguration{
		UserID:            1,
		ID:                2,
		ServiceIdentifier: FroniusID,
		ServiceProperties: map[string]any{
			"accessKeyId":    "FKIA123",
			"accessKeyValue": "secret",
		},
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("AccessKeyId") != "FKIA123" || r.Header.Get("AccessKeyValue") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/swqapi/pvsystems":
			json.NewEncoder(w).Encode(map[string]any{
				"pvSystems": []map[string]any{
					{"pvSystemId": "sys-1", "name": "Roof", "timeZone": "Europe/Vienna", "peakPower": 5000},
				},
			})
		case "/swqapi/pvsystems/sys-1/devices":
			json.NewEncoder(w).Encode(map[string]any{
				"devices": []map[string]any{
					{"deviceId": "inv-1", "deviceName": "Symo", "deviceType": "Inverter", "isActive": true},
					{"deviceId": "sm-1", "deviceName": "Meter", "deviceType": "SmartMeter", "isActive": true},
				},
			})
		case "/swqapi/pvsystems/sys-1/devices/inv-1/histdata":
			q := r.URL.Query()
			assert.Equal(t, "2024-06-01T11:00:00Z", q.Get("from"))
			assert.Equal(t, "2024-06-01T12:00:00Z", q.Get("to"))
			assert.Equal(t, "EnergyExported,PowerReal_PAC_Sum", q.Get("channel"))
			json.NewEncoder(w).Encode(map[string]any{
				"data": []map[string]any{
					{
						"logDateTime": "2024-06-01T11:05:00Z",
						"logDuration": 300,
						"channels": []map[string]any{
							{"channelName": "EnergyExported", "channelType": "Energy", "unit": "Wh", "value": 120.5},
							{"channelName": "PowerReal_PAC_Sum", "channelType": "Power", "unit": "W", "value": 1446},
						},
					},
					{
						"logDateTime": "2024-06-01T11:10:00Z",
						"logDuration": 300,
						"channels": []map[string]any{
							{"channelName": "EnergyExported", "channelType": "Energy", "unit": "Wh", "value": nil},
						},
					},
				},
			})
		default:
			http.Error(w, "not found: "+r.URL.Path, http.StatusNotFound)
		}
	}))
	defer ts.Close()

	f := NewFronius(ts.URL+"/swqapi", NewHTTPTransport(ts.Client(), nil), testClock)

	t.Run("Systems", func(t *testing.T) {
		values, err := f.DataValues(context.Background(), config, nil)
		require.NoError(t, err)
		require.Len(t, values, 1)
		assert.Equal(t, "/sys-1", values[0].Reference)
		assert.Equal(t, "Europe/Vienna", values[0].Metadata["timeZone"])
	})

	t.Run("Devices", func(t *testing.T) {
		values, err := f.DataValues(context.Background(), config, map[string]any{"systemId": "sys-1"})
		require.NoError(t, err)
		require.Len(t, values, 2)
		assert.Equal(t, []string{"sys-1", "inv-1"}, values[0].Identifiers)
		assert.Empty(t, values[0].Children)
	})

	t.Run("Channels", func(t *testing.T) {
		values, err := f.DataValues(context.Background(), config, map[string]any{"systemId": "sys-1", "deviceId": "sm-1"})
		require.NoError(t, err)
		require.Len(t, values, 1)
		require.Len(t, values[0].Children, 3)
		assert.Equal(t, "/sys-1/sm-1/EnergyReal_WAC_Sum_Consumed", values[0].Children[0].Reference)
	})

	t.Run("Datum", func(t *testing.T) {
		stream := types.DatumStreamConfiguration{
			ObjectID:        5,
			SourceID:        "/FR/{deviceId}",
			Placeholders:    map[string]any{"systemId": "sys-1"},
			SourceValueRefs: []string{"/sys-1/inv-1"},
			Properties: []types.DatumStreamProperty{
				{Enabled: true, PropertyType: types.PropertyTypeAccumulating, PropertyName: "wattHours", ValueReference: "/{systemId}/{deviceId}/EnergyExported"},
				{Enabled: true, PropertyType: types.PropertyTypeInstantaneous, PropertyName: "watts", ValueReference: "/{systemId}/{deviceId}/PowerReal_PAC_Sum"},
			},
		}
		res, err := f.Datum(context.Background(), config, stream, types.DatumQueryFilter{})
		require.NoError(t, err)
		require.Len(t, res.Results, 1)
		d := res.Results[0]
		assert.Equal(t, "/FR/inv-1", d.SourceID)
		assert.True(t, d.Timestamp.Equal(time.Date(2024, 6, 1, 11, 5, 0, 0, time.UTC)))
		assert.Equal(t, map[string]float64{"wattHours": 120.5}, d.Accumulating)
		assert.Equal(t, map[string]float64{"watts": 1446}, d.Instantaneous)
	})

	t.Run("Bad Credentials", func(t *testing.T) {
		bad := config
		bad.ServiceProperties = map[string]any{"accessKeyId": "x", "accessKeyValue": "y"}
		_, err := f.DataValues(context.Background(), bad, nil)
		assert.ErrorIs(t, err, ErrTransport)
	})
}
