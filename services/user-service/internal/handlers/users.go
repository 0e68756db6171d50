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
	"github.com/streamlinepay/platform/libs/db"
	"github.com/streamlinepay/platform/libs/httpx"
	"github.com/streamlinepay/platform/services/user-service/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

// Creator persists a user and announces it; producer.Adapter and
// outbox.Producer both satisfy it.
type Creator interface {
	PublishEntityCreated(ctx context.Context, user storage.User) (storage.User, error)
}

type Lister interface {
	List(ctx context.Context) ([]storage.User, error)
}

type UsersHandler struct {
	creator  Creator
	lister   Lister
	validate *validator.Validate
	logger   *slog.Logger
}

func NewUsersHandler(creator Creator, lister Lister, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{
		creator:  creator,
		lister:   lister,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func toResponse(u storage.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

// Users serves GET and POST on /api/users.
func (h *UsersHandler) Users(w http.ResponseWriter, r *http.Request) {
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

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, err := h.creator.PublishEntityCreated(r.Context(), storage.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			httpx.WriteError(w, http.StatusConflict, "email already registered")
			return
		}
		h.logger.Error("create user failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toResponse(user))
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.lister.List(r.Context())
	if err != nil {
		h.logger.Error("list users failed", "err", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toResponse(u))
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
		fields = append(fields, strings.ToLower(fe.Field())+" "+fe.Tag())
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
