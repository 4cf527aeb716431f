package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

// EmailNotifier delivers notices over authenticated SMTP.
type EmailNotifier struct {
	SMTPConfig SMTPConfig
	client     *mail.Client
}

// NewEmailNotifier creates a mail client for the relay. A missing password is
// a configuration error: the relay requires authenticated submission.
func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	if config.Password == "" {
		slog.Error("Missing mail relay password")
		return nil, fmt.Errorf("%w: missing relay password", ErrConfiguration)
	}

	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30 * time.Second),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(config.Username),
		mail.WithPassword(config.Password),
	}

	if !config.TLS {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
			mail.WithTLSPolicy(mail.NoTLS),
		)
	} else {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{InsecureSkipVerify: true}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	}

	slog.Info("Creating mail client", "host", config.Host, "port", config.Port)
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	return &EmailNotifier{SMTPConfig: config, client: client}, nil
}

// VerifyConnection dials the relay and disconnects, failing fast when the
// relay is unreachable or the credentials are rejected.
func (e *EmailNotifier) VerifyConnection(ctx context.Context) error {
	if err := e.client.DialWithContext(ctx); err != nil {
		slog.Error("Mail relay connection failed", "host", e.SMTPConfig.Host, "err", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if err := e.client.Close(); err != nil {
		slog.Warn("Failed to close relay connection", "err", err)
	}
	return nil
}

// Send renders the template and submits one message to the relay.
func (e *EmailNotifier) Send(noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	if notification.To == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}

	var htmlBody string
	if noticeTemplate.Html != "" {
		tmpl, err := template.New("html").Parse(noticeTemplate.Html)
		if err != nil {
			slog.Error("Failed to parse HTML template", "err", err)
			return err
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, notification.Data); err != nil {
			slog.Error("Failed to execute HTML template", "err", err)
			return err
		}
		htmlBody = buf.String()
	}

	subject := noticeTemplate.Subject
	if notification.Subject != "" {
		subject = notification.Subject
	}

	msg := mail.NewMsg()
	if err := msg.From(e.SMTPConfig.From); err != nil {
		slog.Error("Failed to set from address", "err", err)
		return err
	}
	if err := msg.To(notification.To); err != nil {
		slog.Error("Failed to set to address", "err", err)
		return err
	}
	msg.Subject(subject)
	msg.SetMessageIDWithValue(uuid.New().String())

	if htmlBody != "" {
		msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	} else {
		msg.SetBodyString(mail.TypeTextPlain, notification.Body)
	}

	if err := e.client.DialAndSend(msg); err != nil {
		slog.Error("Failed to send email", "to", notification.To, "err", err)
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	slog.Info("Email sent", "to", notification.To, "host", e.SMTPConfig.Host, "messageId", msg.GetMessageID())
	return nil
}
