package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type tokenEndpoint struct {
	mu     sync.Mutex
	forms  []url.Values
	status int
	body   map[string]any
}

func (e *tokenEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	e.mu.Lock()
	e.forms = append(e.forms, r.PostForm)
	status, body := e.status, e.body
	e.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (e *tokenEndpoint) lastForm() url.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.forms) == 0 {
		return nil
	}
	return e.forms[len(e.forms)-1]
}

func newTestProvider(t *testing.T, endpoint *tokenEndpoint) *OAuth2Provider {
	t.Helper()
	srv := httptest.NewServer(endpoint)
	t.Cleanup(srv.Close)

	return NewOAuth2Provider(ProviderConfig{
		ClientID:     "app-key",
		ClientSecret: "app-secret",
		AuthURL:      srv.URL + "/oauth2/authorize",
		TokenURL:     srv.URL + "/oauth2/token",
		RedirectURL:  "https://drawer.test/auth/callback",
		SubjectField: "account_id",
		HTTPClient:   srv.Client(),
	})
}

func TestOAuth2Provider_Exchange(t *testing.T) {
	endpoint := &tokenEndpoint{body: map[string]any{
		"access_token":  "A1",
		"refresh_token": "R1",
		"expires_in":    3600,
		"token_type":    "bearer",
		"account_id":    "dbid:AAH4f99",
	}}
	p := newTestProvider(t, endpoint)

	grant, err := p.Exchange(context.Background(), "code123", oauth2.VerifierOption("verifier"))
	require.NoError(t, err)

	assert.Equal(t, "A1", grant.AccessToken)
	assert.Equal(t, "R1", grant.RefreshToken)
	assert.Equal(t, 3600*time.Second, grant.ExpiresIn)
	assert.Equal(t, "dbid:AAH4f99", grant.Subject)

	form := endpoint.lastForm()
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "code123", form.Get("code"))
	assert.Equal(t, "app-key", form.Get("client_id"))
	assert.Equal(t, "app-secret", form.Get("client_secret"))
	assert.Equal(t, "https://drawer.test/auth/callback", form.Get("redirect_uri"))
	assert.Equal(t, "verifier", form.Get("code_verifier"))
}

func TestOAuth2Provider_ExchangeRejected(t *testing.T) {
	endpoint := &tokenEndpoint{
		status: http.StatusBadRequest,
		body:   map[string]any{"error": "invalid_grant"},
	}
	p := newTestProvider(t, endpoint)

	_, err := p.Exchange(context.Background(), "stale")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestOAuth2Provider_Refresh(t *testing.T) {
	endpoint := &tokenEndpoint{body: map[string]any{
		"access_token": "A2",
		"expires_in":   "14400",
		"token_type":   "bearer",
	}}
	p := newTestProvider(t, endpoint)

	grant, err := p.Refresh(context.Background(), "R1")
	require.NoError(t, err)

	assert.Equal(t, "A2", grant.AccessToken)
	assert.Equal(t, 14400*time.Second, grant.ExpiresIn)

	form := endpoint.lastForm()
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "R1", form.Get("refresh_token"))
	assert.Equal(t, "app-key", form.Get("client_id"))
	assert.Equal(t, "app-secret", form.Get("client_secret"))
}

func TestOAuth2Provider_RefreshRotated(t *testing.T) {
	endpoint := &tokenEndpoint{body: map[string]any{
		"access_token":  "A2",
		"refresh_token": "R2",
		"expires_in":    3600,
	}}
	p := newTestProvider(t, endpoint)

	grant, err := p.Refresh(context.Background(), "R1")
	require.NoError(t, err)

	assert.Equal(t, "R2", grant.RefreshToken)
}

func TestOAuth2Provider_RefreshRejected(t *testing.T) {
	endpoint := &tokenEndpoint{
		status: http.StatusBadRequest,
		body:   map[string]any{"error": "invalid_grant", "error_description": "refresh token is malformed"},
	}
	p := newTestProvider(t, endpoint)

	_, err := p.Refresh(context.Background(), "R1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestOAuth2Provider_RefreshWithoutTokenSkipsNetwork(t *testing.T) {
	endpoint := &tokenEndpoint{}
	p := newTestProvider(t, endpoint)

	_, err := p.Refresh(context.Background(), "")

	require.Error(t, err)
	assert.Nil(t, endpoint.lastForm())
}

func TestOAuth2Provider_MissingAccessToken(t *testing.T) {
	endpoint := &tokenEndpoint{body: map[string]any{"token_type": "bearer"}}
	p := newTestProvider(t, endpoint)

	_, err := p.Exchange(context.Background(), "code123")

	require.Error(t, err)
}

func TestOAuth2Provider_AuthCodeURL(t *testing.T) {
	p := newTestProvider(t, &tokenEndpoint{})

	raw := p.AuthCodeURL("state-1", oauth2.S256ChallengeOption("verifier"), oauth2.SetAuthURLParam("token_access_type", "offline"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/oauth2/authorize", u.Path)
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "app-key", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "offline", q.Get("token_access_type"))
}
