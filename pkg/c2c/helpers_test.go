package c2c

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/text/language"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

var testClock = ClockFunc(func() time.Time { return testNow })

type exchange struct {
	Method string
	URI    string
	Header http.Header
}

// fakeTransport records every exchange and answers with a canned response.
type fakeTransport struct {
	mu        sync.Mutex
	exchanges []exchange

	status int
	body   string
	err    error
}

func (t *fakeTransport) Exchange(ctx context.Context, method, uri string, header http.Header, body []byte) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.exchanges = append(t.exchanges, exchange{Method: method, URI: uri, Header: header.Clone()})
	if t.err != nil {
		return nil, t.err
	}
	status := t.status
	if status == 0 {
		status = http.StatusOK
	}
	return &Response{StatusCode: status, Header: http.Header{}, Body: []byte(t.body)}, nil
}

func (t *fakeTransport) calls() []exchange {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]exchange(nil), t.exchanges...)
}

// fakeAuthManager hands out a fixed token and records the registration IDs
// it was asked for.
type fakeAuthManager struct {
	mu    sync.Mutex
	ids   []string
	token string
	err   error
}

func (m *fakeAuthManager) Authorize(ctx context.Context, registrationID string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = append(m.ids, registrationID)
	if m.err != nil {
		return nil, m.err
	}
	return &oauth2.Token{AccessToken: m.token, TokenType: "Bearer"}, nil
}

func (m *fakeAuthManager) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

var testLocale = language.English
