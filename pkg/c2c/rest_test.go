package c2c

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/raterudder/c2c/pkg/common"
	"github.com/raterudder/c2c/pkg/metrics"
	"github.com/raterudder/c2c/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRestClientGet(t *testing.T) {
	config := types.IntegrationConfiguration{
		UserID: 1,
		ID:     2,
		ServiceProperties: map[string]any{
			"accessKeyId":    "id",
			"accessKeyValue": "secret",
		},
	}

	t.Run("Key Authorization", func(t *testing.T) {
		transport := &fakeTransport{body: `{"name":"x"}`}
		c := &RestClient{
			BaseURL:   "https://api.example.com/swqapi",
			Transport: transport,
			Authorizer: KeyAuthorizer{
				"AccessKeyId":    "accessKeyId",
				"AccessKeyValue": "accessKeyValue",
			},
		}
		var dest struct {
			Name string `json:"name"`
		}
		require.NoError(t, c.Get(context.Background(), config, "/pvsystems", url.Values{"limit": {"1"}}, &dest))
		assert.Equal(t, "x", dest.Name)

		calls := transport.calls()
		require.Len(t, calls, 1)
		assert.Equal(t, http.MethodGet, calls[0].Method)
		assert.Equal(t, "https://api.example.com/swqapi/pvsystems?limit=1", calls[0].URI)
		assert.Equal(t, "application/json", calls[0].Header.Get("Accept"))
		assert.Equal(t, "id", calls[0].Header.Get("AccessKeyId"))
		assert.Equal(t, "secret", calls[0].Header.Get("AccessKeyValue"))
	})

	t.Run("Missing Key", func(t *testing.T) {
		transport := &fakeTransport{}
		c := &RestClient{
			BaseURL:    "https://api.example.com",
			Transport:  transport,
			Authorizer: KeyAuthorizer{"X-API-Key": "apiKey"},
		}
		err := c.Get(context.Background(), config, "/sites/list", nil, nil)
		assert.ErrorIs(t, err, ErrTransport)
		assert.Empty(t, transport.calls())
	})

	t.Run("OAuth Authorization", func(t *testing.T) {
		transport := &fakeTransport{}
		manager := &fakeAuthManager{token: "tok"}
		c := &RestClient{
			BaseURL:    "https://api.example.com",
			Transport:  transport,
			Authorizer: OAuthAuthorizer{Manager: manager},
		}
		require.NoError(t, c.Get(context.Background(), config, "/Sites", nil, nil))

		assert.Equal(t, []string{"1:2"}, manager.calls())
		calls := transport.calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "https://api.example.com/Sites", calls[0].URI)
		assert.Equal(t, "Bearer tok", calls[0].Header.Get("Authorization"))
	})

	t.Run("OAuth Failure", func(t *testing.T) {
		transport := &fakeTransport{}
		manager := &fakeAuthManager{err: errors.New("denied")}
		c := &RestClient{
			BaseURL:    "https://api.example.com",
			Transport:  transport,
			Authorizer: OAuthAuthorizer{Manager: manager},
		}
		err := c.Get(context.Background(), config, "/Sites", nil, nil)
		assert.ErrorIs(t, err, ErrTransport)
		assert.Len(t, manager.calls(), 1)
		assert.Empty(t, transport.calls())
	})

	t.Run("Non 2xx", func(t *testing.T) {
		transport := &fakeTransport{status: http.StatusForbidden, body: "nope"}
		c := &RestClient{BaseURL: "https://api.example.com", Transport: transport}
		err := c.Get(context.Background(), config, "/x", nil, nil)
		assert.ErrorIs(t, err, ErrTransport)
		assert.Len(t, transport.calls(), 1, "requests are never retried")
	})

	t.Run("Transport Fault", func(t *testing.T) {
		transport := &fakeTransport{err: errors.New("connection reset")}
		c := &RestClient{BaseURL: "https://api.example.com", Transport: transport}
		err := c.Get(context.Background(), config, "/x", nil, nil)
		assert.ErrorIs(t, err, ErrTransport)
		assert.Len(t, transport.calls(), 1)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		transport := &fakeTransport{body: "{"}
		c := &RestClient{BaseURL: "https://api.example.com", Transport: transport}
		var dest map[string]any
		assert.Error(t, c.Get(context.Background(), config, "/x", nil, &dest))
	})
}

func TestHTTPTransport(t *testing.T) {
	var gotUA, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotKey = r.Header.Get("X-API-Key")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	reg := metrics.NewRegistry()
	transport := NewHTTPTransport(common.HTTPClient(0), reg)

	resp, err := transport.Exchange(context.Background(), http.MethodGet, srv.URL+"/ok", http.Header{"X-Api-Key": {"k"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Equal(t, common.UserAgent(), gotUA)
	assert.Equal(t, "k", gotKey)

	resp, err = transport.Exchange(context.Background(), http.MethodGet, srv.URL+"/missing", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	count, err := testutil.GatherAndCount(reg, "c2c_provider_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
