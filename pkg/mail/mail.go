// Package mail sends customer notifications over SMTP.
//
//	msg := mail.To("customer@farm.lt").
//	    WithSubject("Order #12 is paid").
//	    Template(tmpl, data)
//	err := mail.Default().Send(ctx, msg)
//
// When MAIL_HOST is empty the default sender only logs the message.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"sync"

	"github.com/farmshop/storefront/config"
	"github.com/farmshop/storefront/pkg/logger"
)

// SMTP holds connection credentials.
type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// SMTPFromConfig reads the MAIL_* keys.
func SMTPFromConfig() SMTP {
	return SMTP{
		Host:     config.Get("MAIL_HOST", ""),
		Port:     config.Get("MAIL_PORT", "587"),
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
		From:     config.Get("MAIL_FROM", "shop@farm.local"),
		FromName: config.Get("MAIL_FROM_NAME", "Farm Shop"),
	}
}

// Message is a fluent builder for an email.
type Message struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
	err     error
}

// To starts a message to the given recipients.
func To(addresses ...string) *Message {
	return &Message{To: addresses, HTML: true}
}

func (m *Message) WithSubject(s string) *Message {
	m.Subject = s
	return m
}

// Text sets a plain-text body.
func (m *Message) Text(body string) *Message {
	m.Body = body
	m.HTML = false
	return m
}

// Template executes t with data into an HTML body. Execution errors surface
// from Send.
func (m *Message) Template(t *template.Template, data any) *Message {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		m.err = fmt.Errorf("mail: render: %w", err)
		return m
	}
	m.Body = buf.String()
	m.HTML = true
	return m
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}

var (
	defaultMu     sync.RWMutex
	defaultSender Sender
)

// Default returns the process-wide sender: SMTP when MAIL_HOST is set,
// otherwise a logging sender.
func Default() Sender {
	defaultMu.RLock()
	s := defaultSender
	defaultMu.RUnlock()
	if s != nil {
		return s
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSender == nil {
		if cfg := SMTPFromConfig(); cfg.Host != "" {
			defaultSender = &SMTPSender{cfg: cfg}
		} else {
			defaultSender = LogSender{}
		}
	}
	return defaultSender
}

// SetDefault replaces the process-wide sender (tests install a recorder).
func SetDefault(s Sender) {
	defaultMu.Lock()
	defaultSender = s
	defaultMu.Unlock()
}

// LogSender writes messages to the application log instead of sending them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, m *Message) error {
	if m.err != nil {
		return m.err
	}
	logger.WithCtx(ctx).Info("mail: not configured, logging message",
		"to", strings.Join(m.To, ","), "subject", m.Subject)
	return nil
}

// SMTPSender delivers through an SMTP relay. Port 465 uses implicit TLS;
// other ports use STARTTLS when the server offers it.
type SMTPSender struct {
	cfg SMTP
}

func NewSMTPSender(cfg SMTP) *SMTPSender { return &SMTPSender{cfg: cfg} }

func (s *SMTPSender) Send(ctx context.Context, m *Message) error {
	if m.err != nil {
		return m.err
	}
	if len(m.To) == 0 {
		return errors.New("mail: no recipients")
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	var d net.Dialer
	var conn net.Conn
	var err error
	if s.cfg.Port == "465" {
		conn, err = (&tls.Dialer{NetDialer: &d, Config: &tls.Config{ServerName: s.cfg.Host}}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mail: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mail: handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("mail: starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	for _, rcpt := range m.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: rcpt %s: %w", rcpt, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(m.raw(s.cfg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func (m *Message) raw(cfg SMTP) []byte {
	contentType := "text/plain"
	if m.HTML {
		contentType = "text/html"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", cfg.FromName, cfg.From)
	b.WriteString("To: " + strings.Join(m.To, ", ") + "\r\n")
	b.WriteString("Subject: " + m.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(m.Body)
	return []byte(b.String())
}
