package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streamlinepay/platform/libs/events"
	"github.com/streamlinepay/platform/services/notification-service/internal/dedup"
	"github.com/streamlinepay/platform/services/notification-service/internal/dispatch"
	"github.com/streamlinepay/platform/services/notification-service/internal/storage"
)

// ErrDeliveryPanic wraps a panic raised while delivering one notification.
var ErrDeliveryPanic = errors.New("notification delivery panicked")

// Notifier delivers a single notification. Implementations must be safe for
// concurrent use: every topic loop shares one.
type Notifier interface {
	Send(ctx context.Context, n dispatch.Notification) error
}

// Handler turns one raw message into notifications and sends them.
type Handler struct {
	rules    dispatch.Rules
	notifier Notifier
	dedup    dedup.Store
	recorder storage.Recorder
	logger   *slog.Logger
}

type Option func(*Handler)

// WithDedup suppresses notifications whose key was already claimed.
func WithDedup(store dedup.Store) Option {
	return func(h *Handler) { h.dedup = store }
}

// WithRecorder writes every attempt to the delivery log.
func WithRecorder(r storage.Recorder) Option {
	return func(h *Handler) { h.recorder = r }
}

func NewHandler(rules dispatch.Rules, notifier Notifier, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		rules:    rules,
		notifier: notifier,
		dedup:    dedup.Nop{},
		recorder: storage.NopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnMessage decodes payload according to topic, applies the rules and sends
// every resulting notification. A failed send does not stop the remaining
// ones. The returned error is informational: the caller acknowledges the
// message either way.
func (h *Handler) OnMessage(ctx context.Context, topic string, payload []byte) error {
	event, err := events.DecodeForTopic(topic, payload)
	if err != nil {
		return err
	}

	var errs []error
	for _, n := range h.rules.For(event) {
		if err := h.deliverIsolated(ctx, topic, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Kind, err))
		}
	}
	return errors.Join(errs...)
}

// deliverIsolated keeps a panic in one delivery from skipping the remaining
// notifications of the same event.
func (h *Handler) deliverIsolated(ctx context.Context, topic string, n dispatch.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDeliveryPanic, r)
			h.logger.Error("notification delivery panicked", "panic", r, "event_id", n.EventID, "kind", string(n.Kind))
		}
	}()
	return h.deliver(ctx, topic, n)
}

func (h *Handler) deliver(ctx context.Context, topic string, n dispatch.Notification) error {
	// Without an event id every event of a kind would share one key.
	claimed := n.EventID != ""
	if claimed {
		ok, err := h.dedup.Claim(ctx, n.DedupKey())
		if err != nil {
			h.logger.Warn("dedup check failed, sending anyway", "err", err, "event_id", n.EventID, "kind", string(n.Kind))
			ok, claimed = true, false
		}
		if !ok {
			h.logger.Info("duplicate notification skipped", "event_id", n.EventID, "kind", string(n.Kind))
			h.record(ctx, topic, n, storage.StatusDuplicate, "")
			return nil
		}
	}

	if err := h.send(ctx, n); err != nil {
		h.logger.Error("notification send failed", "err", err, "event_id", n.EventID, "kind", string(n.Kind), "to", n.To.String())
		h.record(ctx, topic, n, storage.StatusFailed, err.Error())
		if claimed {
			// A redelivered copy must be able to try again.
			if rerr := h.dedup.Release(ctx, n.DedupKey()); rerr != nil {
				h.logger.Warn("dedup release failed", "err", rerr, "event_id", n.EventID, "kind", string(n.Kind))
			}
		}
		return err
	}
	h.logger.Info("notification sent", "event_id", n.EventID, "kind", string(n.Kind), "to", n.To.String())
	h.record(ctx, topic, n, storage.StatusSent, "")
	return nil
}

func (h *Handler) send(ctx context.Context, n dispatch.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrDeliveryPanic, r)
		}
	}()
	return h.notifier.Send(ctx, n)
}

func (h *Handler) record(ctx context.Context, topic string, n dispatch.Notification, status, reason string) {
	err := h.recorder.Record(ctx, storage.Delivery{
		EventID:     n.EventID,
		Topic:       topic,
		Kind:        string(n.Kind),
		Recipients:  []string(n.To),
		Subject:     n.Subject,
		Status:      status,
		ErrorReason: reason,
	})
	if err != nil {
		h.logger.Error("failed to record delivery", "err", err, "event_id", n.EventID)
	}
}
