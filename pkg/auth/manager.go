package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"sync"

	"github.com/raterudder/c2c/pkg/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrUnknownRegistration is returned when a client registration ID cannot be
// resolved.
var ErrUnknownRegistration = errors.New("unknown client registration")

// Registration describes how to obtain tokens for one client registration.
// When Username is set the password grant is used, otherwise the client
// credentials grant.
type Registration struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scopes       []string
}

// RegistrationLookup resolves a client registration ID to its registration.
type RegistrationLookup func(ctx context.Context, registrationID string) (Registration, error)

type cachedSource struct {
	reg Registration
	src oauth2.TokenSource
}

// Manager hands out access tokens per client registration. Token sources are
// cached per registration and refreshed by oauth2 as they expire. A cached
// source is replaced when its registration changes.
type Manager struct {
	lookup RegistrationLookup
	client *http.Client

	mu      sync.Mutex
	sources map[string]cachedSource
}

// NewManager creates a Manager that resolves registrations with lookup and
// talks to token endpoints with client.
func NewManager(lookup RegistrationLookup, client *http.Client) *Manager {
	return &Manager{
		lookup:  lookup,
		client:  client,
		sources: make(map[string]cachedSource),
	}
}

// Authorize returns a valid access token for the given client registration.
func (m *Manager) Authorize(ctx context.Context, registrationID string) (*oauth2.Token, error) {
	reg, err := m.lookup(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrUnknownRegistration, registrationID, err)
	}
	if reg.TokenURL == "" {
		return nil, fmt.Errorf("registration %s missing token url", registrationID)
	}

	src, err := m.source(ctx, registrationID, reg)
	if err != nil {
		return nil, err
	}
	tok, err := src.Token()
	if err != nil {
		// drop the source so the next call starts from a fresh grant
		m.Invalidate(registrationID)
		log.Ctx(ctx).WarnContext(ctx, "failed to get oauth token", slog.String("registrationId", registrationID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to get token for %s: %w", registrationID, err)
	}
	return tok, nil
}

// Invalidate forgets any cached token for the given registration.
func (m *Manager) Invalidate(registrationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, registrationID)
}

func (m *Manager) source(ctx context.Context, registrationID string, reg Registration) (oauth2.TokenSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.sources[registrationID]; ok && reflect.DeepEqual(c.reg, reg) {
		return c.src, nil
	}

	// the source outlives this request so it must not use the request context
	srcCtx := context.Background()
	if m.client != nil {
		srcCtx = context.WithValue(srcCtx, oauth2.HTTPClient, m.client)
	}

	var src oauth2.TokenSource
	if reg.Username != "" {
		conf := &oauth2.Config{
			ClientID:     reg.ClientID,
			ClientSecret: reg.ClientSecret,
			Scopes:       reg.Scopes,
			Endpoint: oauth2.Endpoint{
				TokenURL:  reg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
		log.Ctx(ctx).DebugContext(ctx, "requesting oauth password grant", slog.String("registrationId", registrationID))
		tok, err := conf.PasswordCredentialsToken(context.WithValue(ctx, oauth2.HTTPClient, m.httpClient()), reg.Username, reg.Password)
		if err != nil {
			return nil, fmt.Errorf("password grant failed for %s: %w", registrationID, err)
		}
		src = conf.TokenSource(srcCtx, tok)
	} else {
		conf := &clientcredentials.Config{
			ClientID:     reg.ClientID,
			ClientSecret: reg.ClientSecret,
			TokenURL:     reg.TokenURL,
			Scopes:       reg.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		src = oauth2.ReuseTokenSource(nil, conf.TokenSource(srcCtx))
	}

	m.sources[registrationID] = cachedSource{reg: reg, src: src}
	return src, nil
}

func (m *Manager) httpClient() *http.Client {
	if m.client != nil {
		return m.client
	}
	return http.DefaultClient
}
