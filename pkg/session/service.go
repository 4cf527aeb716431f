package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/financialhub/login-core/pkg/device"
)

const (
	// DefaultEphemeralTTL matches the demo deployment's deliberately short
	// session lifetime.
	DefaultEphemeralTTL = 10 * time.Second

	// DefaultTrustedTTL is the trusted-device session lifetime.
	DefaultTrustedTTL = 365 * 24 * time.Hour

	// DefaultDirectTTL is the lifetime of a session issued by passwordless
	// identification against the remote provider.
	DefaultDirectTTL = 24 * time.Hour
)

// Service issues and revokes session credentials.
type Service struct {
	generator     TokenGenerator
	cookies       CookieSetter
	registrations *device.RegistrationService
	ephemeralTTL  time.Duration
	trustedTTL    time.Duration
	directTTL     time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithTokenGenerator replaces the default demo token generator.
func WithTokenGenerator(generator TokenGenerator) Option {
	return func(s *Service) {
		s.generator = generator
	}
}

// WithEphemeralTTL sets the ephemeral session lifetime.
func WithEphemeralTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ephemeralTTL = ttl
	}
}

// WithTrustedTTL sets the trusted-device session lifetime.
func WithTrustedTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.trustedTTL = ttl
	}
}

// WithDirectTTL sets the passwordless-identification session lifetime.
func WithDirectTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.directTTL = ttl
	}
}

// NewService creates a session issuer. registrations may be nil when the
// trusted-device path is disabled.
func NewService(cookies CookieSetter, registrations *device.RegistrationService, opts ...Option) *Service {
	service := &Service{
		generator:     &DemoTokenGenerator{},
		cookies:       cookies,
		registrations: registrations,
		ephemeralTTL:  DefaultEphemeralTTL,
		trustedTTL:    DefaultTrustedTTL,
		directTTL:     DefaultDirectTTL,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// IssueEphemeralSession mints the short-lived session granted after
// second-factor verification.
func (s *Service) IssueEphemeralSession(ctx context.Context, subject string) (Session, error) {
	return s.issue(subject, TierEphemeral, s.ephemeralTTL)
}

// IssueTrustedSession mints a long-lived trusted-device session and records
// the registration. The second factor is bypassed on this path by design.
func (s *Service) IssueTrustedSession(ctx context.Context, subject, userAgent, ip string) (Session, device.Registration, error) {
	sess, err := s.issue(subject, TierTrustedDevice, s.trustedTTL)
	if err != nil {
		return Session{}, device.Registration{}, err
	}

	var registration device.Registration
	if s.registrations != nil {
		registration, err = s.registrations.RegisterDevice(ctx, userAgent, ip)
		if err != nil {
			return Session{}, device.Registration{}, fmt.Errorf("failed to record trusted device: %w", err)
		}
	}
	return sess, registration, nil
}

// IssueDirectSession mints the session granted by passwordless
// identification against the remote provider. The fixed token shape is
// documented demo behavior.
func (s *Service) IssueDirectSession(ctx context.Context, subject string) (Session, error) {
	now := time.Now().UTC()
	sess := Session{
		Token:     fmt.Sprintf("ibm-direct-session-%s", subject),
		Tier:      TierEphemeral,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.directTTL),
	}
	slog.Info("Direct session issued", "subject", subject, "expiresAt", sess.ExpiresAt)
	return sess, nil
}

func (s *Service) issue(subject string, tier Tier, ttl time.Duration) (Session, error) {
	token, err := s.generator.GenerateToken(subject, tier, ttl)
	if err != nil {
		return Session{}, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now().UTC()
	sess := Session{
		Token:     token,
		Tier:      tier,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	slog.Info("Session issued", "tier", tier, "subject", subject, "expiresAt", sess.ExpiresAt)
	return sess, nil
}

// WriteCookie persists the session as the client-held credential.
func (s *Service) WriteCookie(w http.ResponseWriter, sess Session) error {
	return s.cookies.SetCookie(w, AuthTokenCookie, sess.Token, sess.ExpiresAt)
}

// WriteLocaleCookie persists the locale preference alongside the credential.
func (s *Service) WriteLocaleCookie(w http.ResponseWriter, locale string, expire time.Time) error {
	return s.cookies.SetCookie(w, LocaleCookie, locale, expire)
}

// RevokeSession clears the client-held credential. There is no server-side
// revocation list; a copied token stays valid until expiry. Production gap.
func (s *Service) RevokeSession(w http.ResponseWriter) error {
	return s.cookies.ClearCookie(w, AuthTokenCookie)
}
