// Package mailer builds MIME messages and delivers them over SMTP. When no SMTP
// host is configured a LogSender stands in so local environments never send mail.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cabinetworks/contractor-backend/pkg/config"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/wneessen/go-mail"
)

// Attachment is an in-memory file attached to a Message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a transport-agnostic email.
type Message struct {
	To          []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var errNoRecipients = errors.New("at least one recipient is required")

// Build converts msg into a go-mail message sent from the given address.
func Build(from string, msg Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, errNoRecipients
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("set recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}

	for _, att := range msg.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if err := m.AttachReader(att.Name, bytes.NewReader(att.Data), mail.WithFileContentType(mail.ContentType(contentType))); err != nil {
			return nil, fmt.Errorf("attach %s: %w", att.Name, err)
		}
	}
	return m, nil
}

// Size returns the encoded size of msg in bytes without sending it.
func Size(from string, msg Message) (int64, error) {
	m, err := Build(from, msg)
	if err != nil {
		return 0, err
	}
	n, err := m.WriteTo(io.Discard)
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}
	return n, nil
}

// SMTPSender delivers messages through a go-mail client.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender configures an SMTP client from cfg. No connection is opened
// until the first Send.
func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if strings.TrimSpace(cfg.Username) != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(strings.TrimSpace(cfg.Host), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := Build(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func tlsPolicy(value string) mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// LogSender records messages in the log instead of delivering them.
type LogSender struct {
	logg *logger.Logger
	from string
}

func NewLogSender(from string, logg *logger.Logger) *LogSender {
	return &LogSender{logg: logg, from: from}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	size, err := Size(s.from, msg)
	if err != nil {
		return err
	}
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"to":          strings.Join(msg.To, ","),
			"subject":     msg.Subject,
			"attachments": len(msg.Attachments),
			"bytes":       size,
		})
		s.logg.Info(ctx, "mail.logged")
	}
	return nil
}

// NewSender returns an SMTPSender when a host is configured and a LogSender otherwise.
func NewSender(cfg config.MailConfig, logg *logger.Logger) (Sender, error) {
	if !cfg.Enabled() {
		return NewLogSender(cfg.From, logg), nil
	}
	return NewSMTPSender(cfg)
}
