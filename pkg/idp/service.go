package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Service performs token exchanges and directory lookups against the external
// identity provider. It is stateless between calls: application tokens are
// not cached since call volume is one per login attempt.
type Service struct {
	provider   Provider
	policy     IdentityVerificationPolicy
	httpClient *http.Client
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.httpClient = client
	}
}

// WithPolicy sets the identity verification policy.
func WithPolicy(policy IdentityVerificationPolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// NewService creates a gateway service for the given provider.
func NewService(provider Provider, opts ...Option) *Service {
	service := &Service{
		provider:   provider,
		policy:     DefaultIdentityVerificationPolicy(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Provider returns the configured provider.
func (s *Service) Provider() Provider {
	return s.provider
}

// AuthorizationRedirect returns the browser authorization URL, failing when
// the provider is not configured for the code flow.
func (s *Service) AuthorizationRedirect() (string, error) {
	if err := s.provider.ValidateConfig(); err != nil {
		return "", err
	}
	if s.provider.RedirectURI == "" {
		return "", fmt.Errorf("%w: redirect URI is not configured", ErrProviderUnreachable)
	}
	return s.provider.AuthorizationURL(), nil
}

// PasswordGrant performs an OAuth2 resource-owner-password-credentials
// exchange with client-credential Basic authentication.
func (s *Service) PasswordGrant(ctx context.Context, username, password string) (*TokenResponse, error) {
	data := url.Values{}
	data.Set("client_id", s.provider.ClientID)
	data.Set("grant_type", "password")
	data.Set("username", username)
	data.Set("password", password)
	data.Set("scope", "openid")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.provider.TokenURL(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.provider.ClientID, s.provider.ClientSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("Password grant request failed", "username", username, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	var tokenResponse TokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Password grant rejected", "username", username, "status", resp.StatusCode, "body", string(body))
		description := tokenResponse.ErrorDescription
		if description == "" {
			description = "Authentication failed"
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, description)
	}

	slog.Info("Password grant succeeded", "username", username, "expires_in", tokenResponse.ExpiresIn)
	return &tokenResponse, nil
}

// VerifyIdentityExists checks whether the username exists in the provider's
// directory without a password. The application authenticates itself with a
// client-credentials grant and then searches the directory by email.
//
// The fallback ladder degrades gracefully in restricted deployments:
//  1. application auth fails -> accept if the policy allows the username
//  2. search succeeds -> accept only a single "user"-role record
//  3. search denied (401/403) -> same policy fallback as 1
func (s *Service) VerifyIdentityExists(ctx context.Context, username string) (*Verification, error) {
	appToken, err := s.applicationToken(ctx)
	if err != nil {
		slog.Warn("Application authentication failed", "err", err)
		if s.policy.AllowsUnverified(username) {
			return &Verification{
				Verified: true,
				Profile:  Profile{Email: username, Name: "Demo User"},
				Method:   "demo_allow",
			}, nil
		}
		return nil, fmt.Errorf("%w: application authentication failed", ErrProviderUnreachable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.provider.UserSearchURL(username), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("Directory search request failed", "username", username, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return s.evaluateSearchResult(username, body)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		slog.Warn("Directory search denied", "username", username, "status", resp.StatusCode)
		if s.policy.AllowsUnverified(username) {
			return &Verification{
				Verified: true,
				Profile:  Profile{Email: username, Name: "Demo User"},
				Method:   "demo_allow_fallback",
			}, nil
		}
		return nil, fmt.Errorf("%w: user verification failed", ErrIdentityNotFound)
	}

	slog.Error("Directory search failed", "username", username, "status", resp.StatusCode, "body", string(body))
	return nil, fmt.Errorf("%w: directory search returned status %d", ErrProviderUnreachable, resp.StatusCode)
}

func (s *Service) evaluateSearchResult(username string, body []byte) (*Verification, error) {
	var searchResult struct {
		Users []Profile `json:"users"`
	}
	if err := json.Unmarshal(body, &searchResult); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	var matches []Profile
	for _, user := range searchResult.Users {
		if user.Role == "" || strings.EqualFold(user.Role, "user") {
			matches = append(matches, user)
		}
	}

	if len(matches) == 0 {
		slog.Info("No directory record for email", "username", username)
		return nil, fmt.Errorf("%w: user email not found in cloud directory", ErrIdentityNotFound)
	}
	if len(matches) > 1 {
		slog.Warn("Ambiguous directory match", "username", username, "count", len(matches))
		return nil, fmt.Errorf("%w: ambiguous directory match", ErrIdentityNotFound)
	}

	return &Verification{
		Verified: true,
		Profile:  matches[0],
		Method:   "cloud_verified",
	}, nil
}

// applicationToken authenticates the application itself via a
// client-credentials grant and returns the bearer token.
func (s *Service) applicationToken(ctx context.Context) (string, error) {
	conf := clientcredentials.Config{
		ClientID:     s.provider.ClientID,
		ClientSecret: s.provider.ClientSecret,
		TokenURL:     s.provider.TokenURL(),
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("client credentials grant failed: %w", err)
	}
	return token.AccessToken, nil
}

// ExchangeAuthorizationCode exchanges an authorization code for tokens.
// The provider expects a JSON body for this grant.
func (s *Service) ExchangeAuthorizationCode(ctx context.Context, code string) (*TokenResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     s.provider.ClientID,
		"grant_type":    "authorization_code",
		"redirect_uri":  s.provider.RedirectURI,
		"code":          code,
		"client_secret": s.provider.ClientSecret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.provider.TokenURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Error("Authorization code exchange failed", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Authorization code exchange rejected", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("failed to exchange token: status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResponse TokenResponse
	if err := json.Unmarshal(body, &tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	slog.Info("Authorization code exchanged", "token_type", tokenResponse.TokenType)
	return &tokenResponse, nil
}
