package notification

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DeliveryLogEntry is one append-only record of a delivery attempt.
type DeliveryLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Recipient string    `json:"recipient"`
	Outcome   string    `json:"outcome"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// DeliveryLog appends one JSON line per delivery attempt to durable storage.
// Recording never fails the caller; a write error is logged and dropped.
type DeliveryLog struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewDeliveryLog opens (or creates) the log file in append mode.
func NewDeliveryLog(path string) (*DeliveryLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return NewDeliveryLogWriter(f), nil
}

// NewDeliveryLogWriter creates a delivery log over an arbitrary writer.
func NewDeliveryLogWriter(w io.Writer) *DeliveryLog {
	return &DeliveryLog{enc: json.NewEncoder(w)}
}

// Record appends one entry.
func (l *DeliveryLog) Record(entry DeliveryLogEntry) {
	if l == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(entry); err != nil {
		slog.Error("Failed to append delivery log entry", "recipient", entry.Recipient, "err", err)
	}
}
