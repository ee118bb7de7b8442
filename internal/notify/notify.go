// Package notify delivers password reset links to account holders.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/wneessen/go-mail"

	"hris-portal/internal/auth"
	"hris-portal/internal/observability"
)

const resetSubject = "[CG HRIS] : Password Reset Request"

//go:embed templates/*
var templateFiles embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFiles, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFiles, "templates/*.txt"))
)

type resetEmailData struct {
	Tenant       string
	Link         string
	ExpiresIn    string
	SupportEmail string
}

type SMTPConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	SupportEmail string
	ResetTTL     time.Duration
}

// Sender is satisfied by *mail.Client.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPNotifier struct {
	sender       Sender
	from         string
	supportEmail string
	expiresIn    string
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(10 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return NewSMTPNotifierWithSender(client, from, cfg.SupportEmail, cfg.ResetTTL), nil
}

func NewSMTPNotifierWithSender(sender Sender, from, supportEmail string, resetTTL time.Duration) *SMTPNotifier {
	return &SMTPNotifier{
		sender:       sender,
		from:         from,
		supportEmail: supportEmail,
		expiresIn:    humanDuration(resetTTL),
	}
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, notice auth.PasswordResetNotice) error {
	msg, err := n.buildMessage(notice)
	if err != nil {
		return err
	}
	if err := n.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) buildMessage(notice auth.PasswordResetNotice) (*mail.Msg, error) {
	data := resetEmailData{
		Tenant:       notice.Tenant,
		Link:         notice.Link,
		ExpiresIn:    n.expiresIn,
		SupportEmail: n.supportEmail,
	}

	text, html, err := renderPasswordReset(data)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat("CG HRIS", n.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(notice.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(resetSubject)
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}

// renderPasswordReset produces the plain-text and HTML bodies.
func renderPasswordReset(data resetEmailData) (string, string, error) {
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, "reset_password.txt", data); err != nil {
		return "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, "reset_password.html", data); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}
	return text.String(), html.String(), nil
}

// LogNotifier stands in for SMTP in development. It records that a reset was
// requested without the link.
type LogNotifier struct {
	logger *observability.Logger
}

func NewLogNotifier(logger *observability.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, notice auth.PasswordResetNotice) error {
	n.logger.Warn("password_reset_email_not_sent", map[string]any{
		"to":     notice.To,
		"reason": "smtp not configured",
	})
	return nil
}

func humanDuration(d time.Duration) string {
	if d <= 0 {
		return "15 minutes"
	}
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
