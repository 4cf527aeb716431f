package notification

import "errors"

// NotificationSystem represents a delivery system (email, sms).
type NotificationSystem string

// NoticeType represents a kind of notice sent to users.
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SMSSystem   NotificationSystem = "sms"

	// TwofaCodeNotice carries the six-digit verification code.
	TwofaCodeNotice NoticeType = "twofa_code"
)

var (
	// ErrDeliveryFailed indicates the out-of-band channel rejected or could
	// not accept the message.
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrConfiguration indicates a required relay credential is missing.
	// Fatal for the notification path only.
	ErrConfiguration = errors.New("notification configuration error")
)

// NotificationData is the payload handed to a notifier.
type NotificationData struct {
	To      string            // Recipient (email address, phone number)
	Subject string            // Optional subject override
	Body    string            // Plain body for systems without templates
	Data    map[string]string // Template data
}

// NoticeTemplate pairs a subject with optional text/html bodies.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// Notifier delivers a notice through one system.
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
