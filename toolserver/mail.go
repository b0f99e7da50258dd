package toolserver

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultSMTPPort is used when SMTP_PORT is not set.
const DefaultSMTPPort = "587"

// Mailer sends a plain text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds the mail account settings.
type SMTPConfig struct {
	Server   string
	Port     string
	Sender   string
	Password string
	Timeout  time.Duration
}

// SMTPConfigFromEnv reads SMTP_SERVER, SMTP_PORT, SENDER_EMAIL and
// SENDER_PASSWORD.
func SMTPConfigFromEnv() SMTPConfig {
	return SMTPConfig{
		Server:   os.Getenv("SMTP_SERVER"),
		Port:     values.StringsCoalesce(os.Getenv("SMTP_PORT"), DefaultSMTPPort),
		Sender:   os.Getenv("SENDER_EMAIL"),
		Password: os.Getenv("SENDER_PASSWORD"),
		Timeout:  30 * time.Second,
	}
}

// SMTPMailer sends mail with STARTTLS and PLAIN authentication.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer returns a mailer for the account.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers the message, the body is wrapped in a short greeting.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.cfg.Server == "" || m.cfg.Sender == "" {
		return errors.New("SMTP_SERVER and SENDER_EMAIL must be set")
	}

	addr := net.JoinHostPort(m.cfg.Server, m.cfg.Port)
	d := net.Dialer{Timeout: m.cfg.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "unable to connect to %s", addr)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.cfg.Server)
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "smtp handshake failed")
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err = c.StartTLS(&tls.Config{ServerName: m.cfg.Server, MinVersion: tls.VersionTLS12}); err != nil {
			return errors.Wrap(err, "starttls failed")
		}
	}
	if m.cfg.Password != "" {
		if err = c.Auth(smtp.PlainAuth("", m.cfg.Sender, m.cfg.Password, m.cfg.Server)); err != nil {
			return errors.Wrap(err, "authentication failed")
		}
	}
	if err = c.Mail(m.cfg.Sender); err != nil {
		return errors.Wrap(err, "MAIL FROM rejected")
	}
	if err = c.Rcpt(to); err != nil {
		return errors.Wrapf(err, "RCPT TO %s rejected", to)
	}

	w, err := c.Data()
	if err != nil {
		return errors.Wrap(err, "DATA rejected")
	}
	if _, err = w.Write(ComposeMessage(m.cfg.Sender, to, subject, body)); err != nil {
		return errors.Wrap(err, "unable to write message")
	}
	if err = w.Close(); err != nil {
		return errors.Wrap(err, "message rejected")
	}
	return c.Quit()
}

// ComposeMessage renders the RFC 5322 message.
func ComposeMessage(from, to, subject, body string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString("Here's the answer to your query:\r\n\r\n")
	b.WriteString(body)
	b.WriteString("\r\n\r\nBest regards.\r\n")
	return b.Bytes()
}

// Email holds the arguments of shoot_email.
type Email struct {
	Body string `json:"body" jsonschema:"description=The body of the email"`
	// the misspelling is part of the tool's public schema
	RecipientEmail string `json:"receipient_email" jsonschema:"description=Email of the receipient"`
	Subject        string `json:"subject" jsonschema:"description=Subject of the email"`
}

// MailTool returns shoot_email. Delivery failures are reported as text so
// the model can read them.
func MailTool(mailer Mailer) ITool {
	return NewTool("shoot_email",
		"Given a text, take that text, and send it via an email to the receipient",
		func(ctx context.Context, e *Email) (*mcp.CallToolResult, error) {
			if err := mailer.Send(ctx, e.RecipientEmail, e.Subject, e.Body); err != nil {
				return mcp.NewToolResultText(fmt.Sprintf("Could not send the email. Error: %s.", err.Error())), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf(
				"Text:'%s' was successfully sent to the receipient %s with the subject '%s'",
				e.Body, e.RecipientEmail, e.Subject)), nil
		})
}
