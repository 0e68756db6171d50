package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/streamlinepay/platform/libs/db"
	"github.com/streamlinepay/platform/libs/events"
)

type Transaction struct {
	ID            string
	AccountNumber string
	Amount        decimal.Decimal
	Type          string
	Date          string
	UserEmail     string
	CreatedAt     time.Time
}

func (t Transaction) Event() events.TransactionEvent {
	return events.TransactionEvent{
		ID:            t.ID,
		AccountNumber: t.AccountNumber,
		Amount:        t.Amount,
		Type:          t.Type,
		Date:          t.Date,
		UserEmail:     t.UserEmail,
	}
}

type TransactionRepository struct {
	pool *db.Pool
}

func NewTransactionRepository(pool *db.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Save(ctx context.Context, t Transaction) (Transaction, error) {
	return insertTransaction(ctx, r.pool, t)
}

func (r *TransactionRepository) SaveTx(ctx context.Context, tx pgx.Tx, t Transaction) (Transaction, error) {
	return insertTransaction(ctx, tx, t)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Amounts travel as text so numeric precision survives the round trip.
func insertTransaction(ctx context.Context, q queryRower, t Transaction) (Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO transactions (id, account_number, amount, type, date, user_email)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		RETURNING created_at
	`, t.ID, t.AccountNumber, t.Amount.String(), t.Type, t.Date, t.UserEmail).Scan(&t.CreatedAt)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (r *TransactionRepository) List(ctx context.Context) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_number, amount::text, type, date, user_email, created_at
		FROM transactions
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := []Transaction{}
	for rows.Next() {
		var (
			t      Transaction
			amount string
		)
		if err := rows.Scan(&t.ID, &t.AccountNumber, &amount, &t.Type, &t.Date, &t.UserEmail, &t.CreatedAt); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
