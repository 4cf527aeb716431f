package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:4000", cfg.Server.Addr())
	assert.Equal(t, []string{"financialhub.com"}, cfg.Idp.DemoDomainList())
	assert.Equal(t, []string{"26626656", "27727756"}, cfg.Login.DemoAccountList())
	assert.True(t, cfg.Login.SMSDemoCodeEnabled)
	assert.Equal(t, "888888", cfg.Login.SMSDemoCode)
	assert.Equal(t, 10*time.Second, cfg.Session.EphemeralTTL)
	assert.Equal(t, 365*24*time.Hour, cfg.Session.TrustedTTL)
	assert.True(t, cfg.Session.CookieHttpOnly)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("IDP_DEMO_DOMAINS", "a.example, b.example ,")
	t.Setenv("LOGIN_DEMO_ACCOUNTS", "11111111")
	t.Setenv("LOGIN_SMS_DEMO_CODE_ENABLED", "false")
	t.Setenv("SESSION_EPHEMERAL_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.Addr())
	assert.Equal(t, []string{"a.example", "b.example"}, cfg.Idp.DemoDomainList())
	assert.Equal(t, []string{"11111111"}, cfg.Login.DemoAccountList())
	assert.False(t, cfg.Login.SMSDemoCodeEnabled)
	assert.Equal(t, 30*time.Second, cfg.Session.EphemeralTTL)
}
