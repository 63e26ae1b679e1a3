package alerting

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

type EmailMessage struct {
	To      []string
	Subject string
	Body    string
}

// EmailTransport delivers a rendered message; EmailNotifier only builds it.
type EmailTransport interface {
	Deliver(ctx context.Context, message EmailMessage) error
}

type EmailNotifier struct {
	transport  EmailTransport
	recipients []string
}

func NewEmailNotifier(transport EmailTransport, recipients ...string) *EmailNotifier {
	return &EmailNotifier{transport: transport, recipients: recipients}
}

func (n *EmailNotifier) Send(ctx context.Context, subject, body string) error {
	to := make([]string, len(n.recipients))
	copy(to, n.recipients)
	if err := n.transport.Deliver(ctx, EmailMessage{To: to, Subject: subject, Body: body}); err != nil {
		return fmt.Errorf("failed to deliver email to %s: %w", strings.Join(to, ","), err)
	}
	return nil
}

// SMTPTransport delivers mail through a relay using PLAIN auth when a username is set.
type SMTPTransport struct {
	Address  string
	From     string
	Username string
	Password string
}

func (t *SMTPTransport) Deliver(_ context.Context, message EmailMessage) error {
	var auth smtp.Auth
	if t.Username != "" {
		host := t.Address
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", t.Username, t.Password, host)
	}
	return smtp.SendMail(t.Address, auth, t.From, message.To, renderEmail(t.From, message))
}

func renderEmail(from string, message EmailMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(message.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", message.Subject)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(message.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
