package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/streamlinepay/platform/libs/httpx"
	"github.com/streamlinepay/platform/services/transaction-service/internal/storage"
)

type Creator interface {
	PublishEntityCreated(ctx context.Context, t storage.Transaction) (storage.Transaction, error)
}

type Lister interface {
	List(ctx context.Context) ([]storage.Transaction, error)
}

type TransactionsHandler struct {
	creator  Creator
	lister   Lister
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewTransactionsHandler(creator Creator, lister Lister, logger *slog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		creator:  creator,
		lister:   lister,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// Amount accepts a JSON number or string.
type createTransactionRequest struct {
	AccountNumber string           `json:"accountNumber" validate:"required,max=64"`
	Amount        *decimal.Decimal `json:"amount" validate:"required"`
	Type          string           `json:"type" validate:"required,max=32"`
	Date          string           `json:"date" validate:"max=64"`
	UserEmail     string           `json:"userEmail" validate:"required,email"`
}

type transactionResponse struct {
	ID            string          `json:"id"`
	AccountNumber string          `json:"accountNumber"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type"`
	Date          string          `json:"date"`
	UserEmail     string          `json:"userEmail"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func toResponse(t storage.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		AccountNumber: t.AccountNumber,
		Amount:        t.Amount,
		Type:          t.Type,
		Date:          t.Date,
		UserEmail:     t.UserEmail,
		CreatedAt:     t.CreatedAt,
	}
}

// Transactions serves GET and POST on /api/transactions.
func (h *TransactionsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodGet:
		h.List(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *TransactionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.Type = strings.TrimSpace(req.Type)
	req.Date = strings.TrimSpace(req.Date)
	req.UserEmail = strings.TrimSpace(req.UserEmail)
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if req.Date == "" {
		req.Date = h.now().UTC().Format(time.RFC3339)
	}

	txn, err := h.creator.PublishEntityCreated(r.Context(), storage.Transaction{
		AccountNumber: req.AccountNumber,
		Amount:        *req.Amount,
		Type:          req.Type,
		Date:          req.Date,
		UserEmail:     req.UserEmail,
	})
	if err != nil {
		h.logger.Error("create transaction failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create transaction")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toResponse(txn))
}

func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	txns, err := h.lister.List(r.Context())
	if err != nil {
		h.logger.Error("list transactions failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toResponse(t))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" "+fe.Tag())
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}
