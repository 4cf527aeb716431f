package idp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Provider holds the configuration of the external OAuth2/OIDC identity
// provider (an App ID style tenant).
type Provider struct {
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	OAuthServerURL string `json:"oauth_server_url"`
	ProfilesURL    string `json:"profiles_url"`
	RedirectURI    string `json:"redirect_uri"`
}

// Sentinel errors for the gateway surface.
var (
	// ErrInvalidCredentials indicates the provider rejected a password grant.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrIdentityNotFound indicates the directory search returned no usable record.
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrProviderUnreachable indicates the provider itself could not be reached
	// or refused to authenticate the application.
	ErrProviderUnreachable = errors.New("identity provider unreachable")
)

// TokenResponse is the provider token endpoint response body.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type,omitempty"`
	ExpiresIn        int    `json:"expires_in,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Profile is the directory record returned for a verified identity.
type Profile struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Verification is the outcome of a passwordless identity check.
type Verification struct {
	Verified bool    `json:"verified"`
	Profile  Profile `json:"profile"`
	// Method records which rung of the fallback ladder produced the result:
	// "cloud_verified", "demo_allow" or "demo_allow_fallback".
	Method string `json:"method"`
}

// ValidateConfig checks that the provider configuration is usable.
func (p *Provider) ValidateConfig() error {
	if p.ClientID == "" {
		return fmt.Errorf("client ID is required")
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("client secret is required")
	}
	if p.OAuthServerURL == "" {
		return fmt.Errorf("oauth server URL is required")
	}
	if _, err := url.Parse(p.OAuthServerURL); err != nil {
		return fmt.Errorf("invalid oauth server URL: %w", err)
	}
	return nil
}

// TokenURL returns the provider token endpoint.
func (p *Provider) TokenURL() string {
	return p.OAuthServerURL + "/token"
}

// AuthorizationURL builds the browser authorization URL for the code flow.
func (p *Provider) AuthorizationURL() string {
	params := url.Values{}
	params.Set("client_id", p.ClientID)
	params.Set("response_type", "code")
	params.Set("redirect_uri", p.RedirectURI)
	params.Set("scope", "openid")
	return p.OAuthServerURL + "/authorization?" + params.Encode()
}

// ManagementURL returns the management API base. A configured profiles URL
// takes precedence; otherwise the base is derived from the oauth server URL,
// whose tenant path is shared between the two surfaces.
func (p *Provider) ManagementURL() string {
	if p.ProfilesURL != "" {
		return strings.TrimSuffix(p.ProfilesURL, "/")
	}
	return strings.Replace(p.OAuthServerURL, "/oauth/v4/", "/management/v4/", 1)
}

// UserSearchURL builds the directory-search endpoint for an email.
func (p *Provider) UserSearchURL(email string) string {
	return fmt.Sprintf("%s/users?email=%s", p.ManagementURL(), url.QueryEscape(email))
}
