package notification

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

var defaultTemplates = map[NoticeType]string{
	WelcomeNotice: "<p>Hello {{.Name}},</p><p>Your account has been created. Welcome aboard!</p>",
}

// EmailNotifier sends notices over SMTP.
type EmailNotifier struct {
	SMTPConfig SMTPConfig
	client     *mail.Client
	templates  map[NoticeType]string
}

// NewEmailNotifier creates an email notifier with the default templates.
func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
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

	slog.Info("Creating mail client", "Host", config.Host, "Port", config.Port)
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	return &EmailNotifier{
		SMTPConfig: config,
		client:     client,
		templates:  defaultTemplates,
	}, nil
}

// Send renders the notice template and delivers it to the recipient.
func (e *EmailNotifier) Send(noticeType NoticeType, notification NotificationData) error {
	if notification.To == "" {
		return fmt.Errorf("email notification requires 'To' address")
	}

	htmlBody := notification.Body
	if tmplText, ok := e.templates[noticeType]; ok && tmplText != "" {
		tmpl, err := template.New(string(noticeType)).Parse(tmplText)
		if err != nil {
			return fmt.Errorf("failed to parse template for %s: %w", noticeType, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, notification.Data); err != nil {
			return fmt.Errorf("failed to execute template for %s: %w", noticeType, err)
		}
		htmlBody = buf.String()
	}

	msg := mail.NewMsg()
	if err := msg.From(e.SMTPConfig.From); err != nil {
		return fmt.Errorf("failed to set from address: %w", err)
	}
	if err := msg.To(notification.To); err != nil {
		return fmt.Errorf("failed to set to address: %w", err)
	}
	msg.Subject(notification.Subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if err := e.client.DialAndSend(msg); err != nil {
		slog.Error("Failed to send email", "to", notification.To, "err", err)
		return err
	}

	slog.Info("Email sent", "to", notification.To, "notice", noticeType)
	return nil
}
