package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption configures a NotificationManager.
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration.
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithNotifier registers an arbitrary notifier for a system.
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithTwofaCodeTemplate registers the verification code template.
func WithTwofaCodeTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(TwofaCodeNotice, EmailSystem, NoticeTemplate{
			Subject: "Votre code de vérification - Financial Hub",
			Html:    loadTemplate("templates/email/twofa_code.html"),
		})
	}
}

// NewNotificationManagerWithOptions assembles a manager from options.
func NewNotificationManagerWithOptions(opts ...NotificationManagerOption) (*NotificationManager, error) {
	nm := NewNotificationManager()
	for _, opt := range opts {
		if err := opt(nm); err != nil {
			return nil, err
		}
	}
	return nm, nil
}
