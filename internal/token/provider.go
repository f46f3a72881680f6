package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Provider talks to the identity provider's token endpoint.
type Provider interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (Grant, error)
	Refresh(ctx context.Context, refreshToken string) (Grant, error)
}

// ProviderConfig configures an OAuth2Provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string
	Scopes       []string
	// SubjectField names the token response field identifying the principal.
	SubjectField string
	HTTPClient   *http.Client
}

// OAuth2Provider implements Provider with golang.org/x/oauth2. Client credentials are
// sent in the request body.
type OAuth2Provider struct {
	config       *oauth2.Config
	subjectField string
	httpClient   *http.Client
}

func NewOAuth2Provider(cfg ProviderConfig) *OAuth2Provider {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &OAuth2Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		subjectField: cfg.SubjectField,
		httpClient:   httpClient,
	}
}

func (p *OAuth2Provider) AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string {
	return p.config.AuthCodeURL(state, opts...)
}

func (p *OAuth2Provider) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (Grant, error) {
	tok, err := p.config.Exchange(p.clientContext(ctx), code, opts...)
	if err != nil {
		return Grant{}, describeRetrieveError(err)
	}
	return p.grantFrom(tok)
}

func (p *OAuth2Provider) Refresh(ctx context.Context, refreshToken string) (Grant, error) {
	if refreshToken == "" {
		return Grant{}, errors.New("no refresh token granted")
	}

	// An empty access token forces the token source to hit the endpoint.
	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Grant{}, describeRetrieveError(err)
	}
	return p.grantFrom(tok)
}

func (p *OAuth2Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

func (p *OAuth2Provider) grantFrom(tok *oauth2.Token) (Grant, error) {
	if tok.AccessToken == "" {
		return Grant{}, errors.New("token response without access_token")
	}

	g := Grant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn(tok),
		Expiry:       tok.Expiry,
	}
	if p.subjectField != "" {
		if v, ok := tok.Extra(p.subjectField).(string); ok {
			g.Subject = v
		}
	}
	return g, nil
}

// expiresIn reads the provider's expires_in as sent, rather than the library's derived expiry.
func expiresIn(tok *oauth2.Token) time.Duration {
	var seconds int64
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		seconds = int64(v)
	case int64:
		seconds = v
	case json.Number:
		seconds, _ = v.Int64()
	case string:
		seconds, _ = strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	}
	if seconds <= 0 {
		seconds = tok.ExpiresIn
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func describeRetrieveError(err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil {
		if rErr.ErrorCode != "" {
			return fmt.Errorf("token endpoint returned %d %s: %w", rErr.Response.StatusCode, rErr.ErrorCode, err)
		}
		return fmt.Errorf("token endpoint returned %d: %w", rErr.Response.StatusCode, err)
	}
	return fmt.Errorf("token endpoint request failed: %w", err)
}
