package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// IdpConfig configures the external identity provider gateway.
type IdpConfig struct {
	ClientID       string `env:"IDP_CLIENT_ID" env-default:""`
	ClientSecret   string `env:"IDP_CLIENT_SECRET" env-default:""`
	OAuthServerURL string `env:"IDP_OAUTH_SERVER_URL" env-default:""`
	ProfilesURL    string `env:"IDP_PROFILES_URL" env-default:""`
	RedirectURI    string `env:"IDP_REDIRECT_URI" env-default:"http://localhost:4000/api/auth/callback"`
	DemoDomains    string `env:"IDP_DEMO_DOMAINS" env-default:"financialhub.com"`
}

// DemoDomainList splits the comma-separated demo domain setting.
func (c IdpConfig) DemoDomainList() []string {
	parts := strings.Split(c.DemoDomains, ",")
	domains := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			domains = append(domains, trimmed)
		}
	}
	return domains
}

// EmailConfig configures SMTP passcode delivery.
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     int    `env:"EMAIL_PORT" env-default:"587"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"no-reply@financialhub.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"true"`
}

// SessionConfig configures session issuance and cookies.
type SessionConfig struct {
	JwtSecret      string        `env:"SESSION_JWT_SECRET" env-default:""`
	CookieHttpOnly bool          `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure   bool          `env:"COOKIE_SECURE" env-default:"false"`
	EphemeralTTL   time.Duration `env:"SESSION_EPHEMERAL_TTL" env-default:"10s"`
	TrustedTTL     time.Duration `env:"SESSION_TRUSTED_TTL" env-default:"8760h"`
	DirectTTL      time.Duration `env:"SESSION_DIRECT_TTL" env-default:"24h"`
}

// LoginConfig configures the login orchestrator.
type LoginConfig struct {
	DemoAccounts       string        `env:"LOGIN_DEMO_ACCOUNTS" env-default:"26626656,27727756"`
	SMSDemoCodeEnabled bool          `env:"LOGIN_SMS_DEMO_CODE_ENABLED" env-default:"true"`
	SMSDemoCode        string        `env:"LOGIN_SMS_DEMO_CODE" env-default:"888888"`
	ChallengeTTL       time.Duration `env:"LOGIN_CHALLENGE_TTL" env-default:"10m"`
	DeliveryLogPath    string        `env:"LOGIN_DELIVERY_LOG" env-default:""`
	AttemptBurst       int           `env:"LOGIN_ATTEMPT_BURST" env-default:"10"`
	AttemptsPerMinute  float64       `env:"LOGIN_ATTEMPTS_PER_MINUTE" env-default:"10"`
}

// DemoAccountList splits the comma-separated demo account setting.
func (c LoginConfig) DemoAccountList() []string {
	parts := strings.Split(c.DemoAccounts, ",")
	accounts := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			accounts = append(accounts, trimmed)
		}
	}
	return accounts
}

// DeviceConfig configures trusted device registration storage.
type DeviceConfig struct {
	StorePath string `env:"DEVICE_STORE_PATH" env-default:"browsers.json"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `env:"HOST" env-default:"localhost"`
	Port int    `env:"PORT" env-default:"4000"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Config is the process configuration, read from the environment.
type Config struct {
	Server  ServerConfig
	Idp     IdpConfig
	Email   EmailConfig
	Session SessionConfig
	Login   LoginConfig
	Device  DeviceConfig
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}
