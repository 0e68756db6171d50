// Package dispatch decides which emails an event produces. It does no I/O.
package dispatch

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/streamlinepay/platform/libs/events"
)

type Kind string

const (
	KindWelcome   Kind = "welcome"
	KindDebit     Kind = "debit"
	KindCredit    Kind = "credit"
	KindHighValue Kind = "high_value"
)

const (
	DefaultSecurityAddress   = "security@streamlinepay.com"
	DefaultOperationsAddress = "operations@streamlinepay.com"
)

var DefaultHighValueThreshold = decimal.NewFromInt(1000)

// Notification is a fully resolved email, ready for a Notifier.
type Notification struct {
	Kind    Kind
	EventID string
	To      Recipients
	Subject string
	Body    string
}

// DedupKey identifies one notification of one event across redeliveries.
func (n Notification) DedupKey() string {
	return n.EventID + ":" + string(n.Kind)
}

type Rules struct {
	SecurityAddress    string
	OperationsAddress  string
	HighValueThreshold decimal.Decimal
}

// DefaultRules returns the production addresses and the 1000 threshold.
func DefaultRules() Rules {
	return Rules{
		SecurityAddress:    DefaultSecurityAddress,
		OperationsAddress:  DefaultOperationsAddress,
		HighValueThreshold: DefaultHighValueThreshold,
	}
}

// For dispatches on the concrete event type; unknown values yield nothing.
func (r Rules) For(event any) []Notification {
	switch e := event.(type) {
	case events.UserEvent:
		return r.ForUser(e)
	case events.TransactionEvent:
		return r.ForTransaction(e)
	default:
		return nil
	}
}

func (r Rules) ForUser(e events.UserEvent) []Notification {
	return []Notification{{
		Kind:    KindWelcome,
		EventID: e.ID,
		To:      NewRecipients(e.Email),
		Subject: "Welcome to StreamlinePay!",
		Body: fmt.Sprintf(
			"Dear %s,\n\nWelcome to StreamlinePay! Your account has been successfully created.",
			e.Username,
		),
	}}
}

// ForTransaction returns the type notification (DEBIT or CREDIT), if any,
// followed by the high-value alert when the amount is strictly above the
// threshold. The two rules are independent.
func (r Rules) ForTransaction(e events.TransactionEvent) []Notification {
	var out []Notification

	switch e.Type {
	case events.TypeDebit:
		out = append(out, Notification{
			Kind:    KindDebit,
			EventID: e.ID,
			To:      NewRecipients(e.UserEmail, r.OperationsAddress),
			Subject: "Debit Transaction Notification",
			Body: fmt.Sprintf(
				"A debit of $%s has been processed on your account %s",
				e.Amount.String(), e.AccountNumber,
			),
		})
	case events.TypeCredit:
		out = append(out, Notification{
			Kind:    KindCredit,
			EventID: e.ID,
			To:      NewRecipients(e.UserEmail, r.OperationsAddress),
			Subject: "Credit Transaction Notification",
			Body: fmt.Sprintf(
				"A credit of $%s has been processed to your account %s",
				e.Amount.String(), e.AccountNumber,
			),
		})
	}

	if e.Amount.GreaterThan(r.HighValueThreshold) {
		out = append(out, Notification{
			Kind:    KindHighValue,
			EventID: e.ID,
			To:      NewRecipients(r.SecurityAddress, e.UserEmail, r.OperationsAddress),
			Subject: "High Value Transaction Alert",
			Body: fmt.Sprintf(
				"High value transaction detected:\nAmount: $%s\nAccount: %s\nType: %s\nTime: %s",
				e.Amount.String(), e.AccountNumber, e.Type, e.Date,
			),
		})
	}
	return out
}
