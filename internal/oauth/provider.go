// Package oauth adapts OpenID Connect providers to the session service's
// verifier interface. Token verification goes through the provider's
// published JWKS via discovery; no provider keys are configured by hand.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"bridgelayer.app/internal/auth"
)

// Config carries the per-provider OIDC settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	DiscoveryURL string
	Scopes       []string
}

// claimsDecoder is what a verified ID token must offer. *oidc.IDToken
// satisfies it; tests substitute a fake.
type claimsDecoder interface {
	Claims(v any) error
}

type tokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (claimsDecoder, error)
}

type oidcVerifier struct {
	inner *oidc.IDTokenVerifier
}

func (v oidcVerifier) Verify(ctx context.Context, rawIDToken string) (claimsDecoder, error) {
	return v.inner.Verify(ctx, rawIDToken)
}

// Provider verifies ID tokens for one OIDC issuer and implements
// auth.OAuthVerifier.
type Provider struct {
	name     string
	verifier tokenVerifier
	oauth    oauth2.Config
}

// NewProvider runs OIDC discovery against cfg.DiscoveryURL and builds a
// verifier pinned to the configured client id.
func NewProvider(ctx context.Context, name string, cfg Config) (*Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, errors.New("oauth: provider name is required")
	}
	if cfg.ClientID == "" || cfg.DiscoveryURL == "" {
		return nil, errors.New("oauth: client id and discovery url are required")
	}

	issuer, err := oidc.NewProvider(ctx, cfg.DiscoveryURL)
	if err != nil {
		return nil, fmt.Errorf("oauth: discover %s: %w", name, err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}
	return &Provider{
		name:     name,
		verifier: oidcVerifier{inner: issuer.Verifier(&oidc.Config{ClientID: cfg.ClientID})},
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     issuer.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

// Name returns the provider key the session service registers this under.
func (p *Provider) Name() string { return p.name }

// AuthCodeURL returns the provider's consent URL for the given state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for the provider's raw ID token.
func (p *Provider) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("oauth: exchange: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", errors.New("oauth: token response carried no id_token")
	}
	return raw, nil
}

// Verify checks the raw ID token against the issuer's keys and maps its
// standard claims onto an identity.
func (p *Provider) Verify(ctx context.Context, rawIDToken string) (auth.OAuthIdentity, error) {
	if strings.TrimSpace(rawIDToken) == "" {
		return auth.OAuthIdentity{}, errors.New("oauth: empty id token")
	}
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return auth.OAuthIdentity{}, fmt.Errorf("oauth: verify id token: %w", err)
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return auth.OAuthIdentity{}, fmt.Errorf("oauth: decode claims: %w", err)
	}
	if claims.Sub == "" {
		return auth.OAuthIdentity{}, errors.New("oauth: id token missing sub")
	}
	if !claims.EmailVerified {
		return auth.OAuthIdentity{}, errors.New("oauth: email not verified by provider")
	}
	return auth.OAuthIdentity{
		ProviderID: claims.Sub,
		Email:      strings.ToLower(claims.Email),
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
	}, nil
}
