// Package notify renders a message template and dispatches it by email
// with the report attached.
package notify

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"

	"github.com/propital/dane-automation/internal/config"
	"github.com/propital/dane-automation/internal/domain"
)

// ErrAttachmentMissing means an attachment path was given but no file
// exists there.
var ErrAttachmentMissing = errors.New("notify: attachment file missing")

// ErrNoRecipients means dispatch was requested without any recipient.
var ErrNoRecipients = errors.New("notify: no recipients")

// Message is one outbound email, addressed to all recipients at once.
type Message struct {
	Subject        string
	Body           string
	To             []string
	AttachmentPath string
}

// Transport delivers a message. Implementations own the protocol; the
// notifier only decides what to send.
type Transport interface {
	Send(msg Message) error
}

// SMTPTransport sends messages through an SMTP server via gomail.
type SMTPTransport struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPTransport creates a transport from the SMTP settings.
func NewSMTPTransport(cfg config.SMTP) *SMTPTransport {
	return &SMTPTransport{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send builds and transmits the email.
func (t *SMTPTransport) Send(msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.AttachmentPath != "" {
		m.Attach(msg.AttachmentPath)
	}
	return t.dialer.DialAndSend(m)
}

// Notifier renders templates and hands the result to a transport.
type Notifier struct {
	store     *TemplateStore
	transport Transport
	log       zerolog.Logger
}

// NewNotifier creates a Notifier.
func NewNotifier(store *TemplateStore, transport Transport, log zerolog.Logger) *Notifier {
	return &Notifier{store: store, transport: transport, log: log}
}

// Dispatch renders the named template with vars and sends it to all
// recipients as a single message, attaching the file at attachmentPath
// when set. Template and attachment problems are returned as errors;
// a transport failure is not: it comes back as an unsuccessful
// DispatchResult so already-computed results survive a delivery outage.
func (n *Notifier) Dispatch(templateName string, vars map[string]string, attachmentPath string, recipients []string) (domain.DispatchResult, error) {
	if len(recipients) == 0 {
		return domain.DispatchResult{}, ErrNoRecipients
	}

	tpl, err := n.store.Render(templateName, vars)
	if err != nil {
		return domain.DispatchResult{}, err
	}

	if attachmentPath != "" {
		if _, err := os.Stat(attachmentPath); err != nil {
			return domain.DispatchResult{}, fmt.Errorf("%w: %q", ErrAttachmentMissing, attachmentPath)
		}
	}

	msg := Message{
		Subject:        tpl.Subject,
		Body:           tpl.Body,
		To:             recipients,
		AttachmentPath: attachmentPath,
	}

	if err := n.transport.Send(msg); err != nil {
		n.log.Error().Err(err).Strs("to", recipients).Msg("Email dispatch failed")
		return domain.DispatchResult{Success: false, Reason: err.Error()}, nil
	}

	n.log.Info().Strs("to", recipients).Str("template", templateName).Msg("Email dispatched")
	return domain.DispatchResult{Success: true}, nil
}
