package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DeliveryResult reports the outcome of one passcode dispatch.
type DeliveryResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Dispatcher sends the current verification code through the out-of-band
// channel and records every attempt in the delivery log, independent of
// whether the caller treats a failure as fatal.
type Dispatcher struct {
	manager     *NotificationManager
	deliveryLog *DeliveryLog
}

// NewDispatcher creates a dispatcher. deliveryLog may be nil.
func NewDispatcher(manager *NotificationManager, deliveryLog *DeliveryLog) *Dispatcher {
	return &Dispatcher{
		manager:     manager,
		deliveryLog: deliveryLog,
	}
}

// SendPasscode delivers the verification code by email.
func (d *Dispatcher) SendPasscode(ctx context.Context, toAddress, code, displayName string) (DeliveryResult, error) {
	messageID := uuid.New().String()

	slog.Info("Dispatching verification code", "to", toAddress, "messageId", messageID)
	err := d.manager.Send(TwofaCodeNotice, EmailSystem, NotificationData{
		To: toAddress,
		Data: map[string]string{
			"Code": code,
			"Name": displayName,
			"Year": fmt.Sprintf("%d", time.Now().UTC().Year()),
		},
	})

	if err != nil {
		d.deliveryLog.Record(DeliveryLogEntry{
			Recipient: toAddress,
			Outcome:   "failed",
			MessageID: messageID,
			Error:     err.Error(),
		})
		return DeliveryResult{Success: false, Error: err.Error()}, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	d.deliveryLog.Record(DeliveryLogEntry{
		Recipient: toAddress,
		Outcome:   "sent",
		MessageID: messageID,
	})
	return DeliveryResult{Success: true, MessageID: messageID}, nil
}
