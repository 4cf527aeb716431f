package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmailNotifierRequiresPassword(t *testing.T) {
	_, err := NewEmailNotifier(SMTPConfig{Host: "smtp.example.org", Port: 587, Username: "mailer"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestNewEmailNotifier(t *testing.T) {
	notifier, err := NewEmailNotifier(SMTPConfig{
		Host:     "smtp.example.org",
		Port:     587,
		TLS:      true,
		Username: "mailer",
		Password: "relay-secret",
		From:     "no-reply@financialhub.com",
	})
	require.NoError(t, err)
	assert.NotNil(t, notifier)
	assert.Equal(t, "smtp.example.org", notifier.SMTPConfig.Host)
}

func TestEmailNotifierSendRequiresRecipient(t *testing.T) {
	notifier, err := NewEmailNotifier(SMTPConfig{
		Host:     "smtp.example.org",
		Port:     587,
		Password: "relay-secret",
		From:     "no-reply@financialhub.com",
	})
	require.NoError(t, err)

	err = notifier.Send(TwofaCodeNotice, NotificationData{}, NoticeTemplate{Subject: "Code"})
	assert.Error(t, err)
}
