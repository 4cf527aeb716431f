package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, notifier Notifier, logBuf *bytes.Buffer) *Dispatcher {
	t.Helper()
	manager, err := NewNotificationManagerWithOptions(
		WithTwofaCodeTemplate(),
		WithNotifier(EmailSystem, notifier),
	)
	require.NoError(t, err)

	var deliveryLog *DeliveryLog
	if logBuf != nil {
		deliveryLog = NewDeliveryLogWriter(logBuf)
	}
	return NewDispatcher(manager, deliveryLog)
}

func TestSendPasscode(t *testing.T) {
	mock := &MockNotifier{}
	var logBuf bytes.Buffer
	dispatcher := newTestDispatcher(t, mock, &logBuf)

	result, err := dispatcher.SendPasscode(context.Background(), "claire.moreau@financialhub.com", "123456", "Claire")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.MessageID)

	require.Len(t, mock.SentNotifications, 1)
	sent := mock.SentNotifications[0]
	assert.Equal(t, "claire.moreau@financialhub.com", sent.To)
	assert.Equal(t, "123456", sent.Data["Code"])
	assert.Equal(t, "Claire", sent.Data["Name"])

	var entry DeliveryLogEntry
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
	assert.Equal(t, "sent", entry.Outcome)
	assert.Equal(t, "claire.moreau@financialhub.com", entry.Recipient)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestSendPasscodeFailureIsLogged(t *testing.T) {
	mock := &MockNotifier{FailWith: errors.New("smtp down")}
	var logBuf bytes.Buffer
	dispatcher := newTestDispatcher(t, mock, &logBuf)

	result, err := dispatcher.SendPasscode(context.Background(), "claire.moreau@financialhub.com", "123456", "Claire")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "smtp down")

	var entry DeliveryLogEntry
	require.NoError(t, json.Unmarshal(logBuf.Bytes(), &entry))
	assert.Equal(t, "failed", entry.Outcome)
	assert.Contains(t, entry.Error, "smtp down")
}

func TestSendPasscodeWithoutDeliveryLog(t *testing.T) {
	mock := &MockNotifier{}
	dispatcher := newTestDispatcher(t, mock, nil)

	// A nil delivery log must not panic.
	result, err := dispatcher.SendPasscode(context.Background(), "user@example.org", "654321", "")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestTwofaCodeTemplateRendered(t *testing.T) {
	manager, err := NewNotificationManagerWithOptions(WithTwofaCodeTemplate())
	require.NoError(t, err)

	template, exists := manager.registry[TwofaCodeNotice][EmailSystem]
	require.True(t, exists)
	assert.Equal(t, "Votre code de vérification - Financial Hub", template.Subject)
	assert.Contains(t, template.Html, "{{.Code}}")
	assert.Contains(t, template.Html, "{{.Name}}")
}
