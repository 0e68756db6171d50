package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/streamlinepay/platform/services/notification-service/internal/dispatch"
)

const DefaultFrom = "no-reply@streamlinepay.com"

// Sender is the mail transport used by the notification consumer.
type Sender interface {
	Send(ctx context.Context, n dispatch.Notification) error
}

type Config struct {
	Provider string // smtp | log
	SMTP     SMTPConfig
}

// New returns the sender selected by cfg.Provider.
func New(cfg Config, logger *slog.Logger) (Sender, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "smtp":
		if strings.TrimSpace(cfg.SMTP.Host) == "" {
			return nil, errors.New("email provider is smtp but SMTP_HOST is not set")
		}
		return NewSMTPSender(cfg.SMTP), nil
	case "log":
		from := cfg.SMTP.From
		if from == "" {
			from = DefaultFrom
		}
		return NewLogSender(logger, from), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
}
