// Package events defines the payloads exchanged between the producer
// services and the notification service, and the codec used on the wire.
package events

import (
	"github.com/shopspring/decimal"
)

// Topic names. Each topic carries exactly one event shape.
const (
	TopicUsers        = "users"
	TopicTransactions = "transactions"
)

// Transaction types recognised by the notification rules. The field itself is
// open: any other value travels unchanged.
const (
	TypeDebit  = "DEBIT"
	TypeCredit = "CREDIT"
)

// UserEvent is published on TopicUsers when a user is created.
type UserEvent struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TransactionEvent is published on TopicTransactions when a transaction is
// created. Date is an opaque display string; no format is enforced.
type TransactionEvent struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type"`
	Date          string          `json:"date"`
	UserEmail     string          `json:"userEmail"`
}

// EventType returns the header value identifying the payload kind on a topic.
func EventType(topic string) string {
	switch topic {
	case TopicUsers:
		return "user.created"
	case TopicTransactions:
		return "transaction.created"
	default:
		return topic
	}
}
