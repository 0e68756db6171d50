package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/streamlinepay/platform/services/notification-service/internal/dispatch"
)

// SMTPSender delivers one message per notification to every recipient.
// Each Send opens its own connection, so concurrent use is safe.
type SMTPSender struct {
	addr    string
	host    string
	from    string
	auth    smtp.Auth
	timeout time.Duration
	send    func(ctx context.Context, to []string, msg []byte) error
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
	Timeout  time.Duration
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	host := strings.TrimSpace(cfg.Host)
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = DefaultFrom
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &SMTPSender{
		addr:    net.JoinHostPort(host, strings.TrimSpace(cfg.Port)),
		host:    host,
		from:    from,
		timeout: cfg.Timeout,
	}
	s.send = s.sendMail
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return s
}

func (s *SMTPSender) Send(ctx context.Context, n dispatch.Notification) error {
	if len(n.To) == 0 {
		return errors.New("notification has no recipients")
	}
	msg := buildMessage(s.from, n.To, n.Subject, n.Body)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.send(ctx, []string(n.To), []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", n.To, err)
	}
	return nil
}

// sendMail is smtp.SendMail over a connection bounded by ctx: the dial and
// every later read or write fail once ctx is done.
func (s *SMTPSender) sendMail(ctx context.Context, to []string, msg []byte) error {
	dialer := net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return err
		}
	}
	if s.auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp server does not support AUTH")
		}
		if err := c.Auth(s.auth); err != nil {
			return err
		}
	}
	if err := c.Mail(s.from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from string, to []string, subject, body string) string {
	// Minimal RFC 5322 message; enough for Mailpit and most SMTP relays.
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		strings.Join(to, ", "),
		subject,
		strings.ReplaceAll(body, "\n", "\r\n"),
	)
}

// LogSender writes notifications to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
	from   string
}

func NewLogSender(logger *slog.Logger, from string) *LogSender {
	return &LogSender{logger: logger, from: from}
}

func (s *LogSender) Send(_ context.Context, n dispatch.Notification) error {
	s.logger.Info("email (log provider)",
		"from", s.from,
		"to", n.To.String(),
		"subject", n.Subject,
		"body", n.Body,
		"kind", string(n.Kind),
		"event_id", n.EventID,
	)
	return nil
}
