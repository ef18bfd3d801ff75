package c2c

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/metrics"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/oauth2"
)

// ErrTransport is returned when a request to a cloud provider could not be
// authorized, failed in transit, or returned a non-2xx status.
var ErrTransport = errors.New("cloud provider request failed")

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 16 << 20

// Response is the raw result of an exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs one HTTP exchange with a cloud provider.
type Transport interface {
	Exchange(ctx context.Context, method, uri string, header http.Header, body []byte) (*Response, error)
}

// HTTPTransport is a Transport backed by an *http.Client.
type HTTPTransport struct {
	client  *http.Client
	metrics *metrics.Registry
}

// NewHTTPTransport returns a Transport using client that records each
// exchange in reg. reg may be nil.
func NewHTTPTransport(client *http.Client, reg *metrics.Registry) *HTTPTransport {
	return &HTTPTransport{client: client, metrics: reg}
}

// Exchange implements Transport.
func (t *HTTPTransport) Exchange(ctx context.Context, method, uri string, header http.Header, body []byte) (*Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, r)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		t.metrics.RecordProviderRequest(req.URL.Host, 0, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	t.metrics.RecordProviderRequest(req.URL.Host, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
	}, nil
}

// AuthorizationManager hands out OAuth tokens per client registration ID.
type AuthorizationManager interface {
	Authorize(ctx context.Context, registrationID string) (*oauth2.Token, error)
}

// Authorizer adds credentials for an integration to outgoing headers.
type Authorizer interface {
	Authorize(ctx context.Context, config types.IntegrationConfiguration, header http.Header) error
}

// KeyAuthorizer maps request header names to the service property keys whose
// values are sent in them.
type KeyAuthorizer map[string]string

// Authorize implements Authorizer.
func (a KeyAuthorizer) Authorize(ctx context.Context, config types.IntegrationConfiguration, header http.Header) error {
	for name, key := range a {
		v := config.StringProperty(key)
		if v == "" {
			return fmt.Errorf("missing %s setting", key)
		}
		header.Set(name, v)
	}
	return nil
}

// OAuthAuthorizer sends a bearer token obtained for the integration's system
// identifier.
type OAuthAuthorizer struct {
	Manager AuthorizationManager
}

// Authorize implements Authorizer.
func (a OAuthAuthorizer) Authorize(ctx context.Context, config types.IntegrationConfiguration, header http.Header) error {
	if a.Manager == nil {
		return errors.New("no authorization manager")
	}
	tok, err := a.Manager.Authorize(ctx, config.SystemIdentifier())
	if err != nil {
		return err
	}
	if tok == nil || tok.AccessToken == "" {
		return errors.New("authorization returned no access token")
	}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	return nil
}

// RestClient executes authorized JSON requests against one provider API.
// It never retries.
type RestClient struct {
	BaseURL    string
	Transport  Transport
	Authorizer Authorizer
}

// Get requests path, relative to BaseURL, with query and decodes a JSON
// response into dest if dest is non-nil.
func (c *RestClient) Get(ctx context.Context, config types.IntegrationConfiguration, path string, query url.Values, dest any) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	u.Path, err = url.JoinPath(u.Path, path)
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	header := make(http.Header)
	header.Set("Accept", "application/json")
	if c.Authorizer != nil {
		if err := c.Authorizer.Authorize(ctx, config, header); err != nil {
			return fmt.Errorf("%w: authorization: %w", ErrTransport, err)
		}
	}

	resp, err := c.Transport.Exchange(ctx, http.MethodGet, u.String(), header, nil)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "provider request failed", slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("%w: %s: %w", ErrTransport, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Ctx(ctx).WarnContext(
			ctx,
			"provider returned error status",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", truncate(string(resp.Body), 512)),
		)
		return fmt.Errorf("%w: %s: status %d", ErrTransport, path, resp.StatusCode)
	}

	if dest == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, dest); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode provider response", slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
