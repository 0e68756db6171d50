package email

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/streamlinepay/platform/services/notification-service/internal/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPSenderSendsToAllRecipients(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mailpit", Port: "1025", From: "alerts@streamlinepay.com"})

	var gotTo []string
	var gotMsg []byte
	s.send = func(_ context.Context, to []string, msg []byte) error {
		gotTo, gotMsg = to, msg
		return nil
	}

	err := s.Send(context.Background(), dispatch.Notification{
		To:      dispatch.NewRecipients("security@streamlinepay.com", "v@x.com", "operations@streamlinepay.com"),
		Subject: "High Value Transaction Alert",
		Body:    "line one\nline two",
	})
	require.NoError(t, err)

	assert.Equal(t, "mailpit:1025", s.addr)
	assert.Equal(t, "alerts@streamlinepay.com", s.from)
	assert.Nil(t, s.auth)
	assert.Equal(t, []string{"security@streamlinepay.com", "v@x.com", "operations@streamlinepay.com"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "To: security@streamlinepay.com, v@x.com, operations@streamlinepay.com\r\n")
	assert.Contains(t, msg, "Subject: High Value Transaction Alert\r\n")
	assert.True(t, strings.HasSuffix(msg, "line one\r\nline two\r\n"))
}

func TestSMTPSenderErrors(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mailpit", Port: "1025", Username: "user", Password: "pw"})
	assert.NotNil(t, s.auth)
	assert.Equal(t, DefaultFrom, s.from)

	s.send = func(context.Context, []string, []byte) error { return errors.New("550 mailbox unavailable") }
	err := s.Send(context.Background(), dispatch.Notification{To: dispatch.NewRecipients("u@x.com")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550 mailbox unavailable")

	err = s.Send(context.Background(), dispatch.Notification{})
	assert.Error(t, err)
}

func TestSMTPSenderTimeout(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mailpit", Port: "1025", Timeout: 20 * time.Millisecond})
	s.send = func(ctx context.Context, _ []string, _ []byte) error {
		<-ctx.Done()
		return ctx.Err()
	}

	err := s.Send(context.Background(), dispatch.Notification{To: dispatch.NewRecipients("u@x.com")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewSender(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	sender, err := New(Config{Provider: "log"}, logger)
	require.NoError(t, err)
	require.IsType(t, &LogSender{}, sender)
	require.NoError(t, sender.Send(context.Background(), dispatch.Notification{
		Kind:    dispatch.KindWelcome,
		EventID: "u-1",
		To:      dispatch.NewRecipients("amr@x.com"),
		Subject: "Welcome to StreamlinePay!",
	}))
	assert.Contains(t, buf.String(), "amr@x.com")
	assert.Contains(t, buf.String(), "from="+DefaultFrom)

	sender, err = New(Config{Provider: "SMTP", SMTP: SMTPConfig{Host: "mailpit", Port: "1025"}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, sender)

	_, err = New(Config{Provider: "smtp"}, logger)
	assert.Error(t, err)

	_, err = New(Config{Provider: "carrier-pigeon"}, logger)
	assert.Error(t, err)
}

// fakeSMTP answers one SMTP session on a local listener and returns the
// received DATA on the channel.
func fakeSMTP(t *testing.T) (addr string, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }
		reply("220 mailpit ESMTP")
		var body strings.Builder
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 mailpit")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				reply("250 OK")
			case cmd == "DATA":
				reply("354 end with .")
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					body.WriteString(l)
				}
				out <- body.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unsupported")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestSMTPSenderDeliversOverTCP(t *testing.T) {
	addr, data := fakeSMTP(t)
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	s := NewSMTPSender(SMTPConfig{Host: host, Port: port, From: "alerts@streamlinepay.com", Timeout: 2 * time.Second})
	err = s.Send(context.Background(), dispatch.Notification{
		To:      dispatch.NewRecipients("u@x.com", "operations@streamlinepay.com"),
		Subject: "Debit Transaction Notification",
		Body:    "A debit of $10 has been processed",
	})
	require.NoError(t, err)

	select {
	case msg := <-data:
		assert.Contains(t, msg, "Subject: Debit Transaction Notification\r\n")
		assert.Contains(t, msg, "A debit of $10 has been processed")
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestSMTPSenderGivesUpOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	closed := make(chan struct{})
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		// never greet; wait for the client to hang up
		_, _ = conn.Read(make([]byte, 1))
		_ = conn.Close()
		close(closed)
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	s := NewSMTPSender(SMTPConfig{Host: host, Port: port, Timeout: 50 * time.Millisecond})

	start := time.Now()
	err = s.Send(context.Background(), dispatch.Notification{To: dispatch.NewRecipients("u@x.com")})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection left open after timeout")
	}
}
