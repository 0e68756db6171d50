package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/streamlinepay/platform/services/user-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type mockCreator struct {
	mock.Mock
}

func (m *mockCreator) PublishEntityCreated(ctx context.Context, u storage.User) (storage.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(storage.User), args.Error(1)
}

type stubLister struct {
	users []storage.User
	err   error
}

func (s stubLister) List(context.Context) ([]storage.User, error) { return s.users, s.err }

func newHandler(c Creator, l Lister) *UsersHandler {
	return NewUsersHandler(c, l, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("pass123")
	require.NoError(t, err)
	assert.NotEqual(t, "pass123", hash)
	assert.NoError(t, verifyPassword(hash, "pass123"))
	assert.Error(t, verifyPassword(hash, "wrong-pass"))
}

func TestCreateUser(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	creator := new(mockCreator)
	creator.On("PublishEntityCreated", mock.Anything, mock.MatchedBy(func(u storage.User) bool {
		return u.ID == "" && u.Username == "amr" && u.Email == "amr@x.com" &&
			verifyPassword(u.PasswordHash, "secret1") == nil
	})).Return(storage.User{ID: "u-1", Username: "amr", Email: "amr@x.com", PasswordHash: "hash", CreatedAt: created}, nil).Once()

	rw := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(`{"username":" amr ","email":"amr@x.com","password":"secret1"}`))
	newHandler(creator, stubLister{}).Users(rw, req)

	assert.Equal(t, http.StatusCreated, rw.Code)
	assert.JSONEq(t, `{"id":"u-1","username":"amr","email":"amr@x.com","createdAt":"2024-05-01T10:00:00Z"}`, rw.Body.String())
	assert.NotContains(t, rw.Body.String(), "hash")
	creator.AssertExpectations(t)
}

func TestCreateUserErrors(t *testing.T) {
	testCases := []struct {
		name      string
		body      string
		createErr error
		want      int
	}{
		{name: "invalid json", body: `{`, want: http.StatusBadRequest},
		{name: "missing email", body: `{"username":"amr","password":"secret1"}`, want: http.StatusBadRequest},
		{name: "bad email", body: `{"username":"amr","email":"nope","password":"secret1"}`, want: http.StatusBadRequest},
		{name: "short password", body: `{"username":"amr","email":"amr@x.com","password":"123"}`, want: http.StatusBadRequest},
		{name: "duplicate email", body: `{"username":"amr","email":"amr@x.com","password":"secret1"}`, createErr: &pgconn.PgError{Code: "23505"}, want: http.StatusConflict},
		{name: "storage failure", body: `{"username":"amr","email":"amr@x.com","password":"secret1"}`, createErr: errors.New("db down"), want: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creator := new(mockCreator)
			if tc.createErr != nil {
				creator.On("PublishEntityCreated", mock.Anything, mock.Anything).Return(storage.User{}, tc.createErr).Once()
			}

			rw := httptest.NewRecorder()
			newHandler(creator, stubLister{}).Users(rw, httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(tc.body)))

			assert.Equal(t, tc.want, rw.Code)
			creator.AssertExpectations(t)
		})
	}
}

func TestListUsers(t *testing.T) {
	lister := stubLister{users: []storage.User{
		{ID: "u-1", Username: "amr", Email: "amr@x.com", PasswordHash: "h1"},
		{ID: "u-2", Username: "lea", Email: "lea@x.com", PasswordHash: "h2"},
	}}
	rw := httptest.NewRecorder()
	newHandler(new(mockCreator), lister).Users(rw, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), `"username":"lea"`)
	assert.NotContains(t, rw.Body.String(), "h1")

	rw = httptest.NewRecorder()
	newHandler(new(mockCreator), stubLister{err: errors.New("db down")}).Users(rw, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	assert.Equal(t, http.StatusInternalServerError, rw.Code)

	rw = httptest.NewRecorder()
	newHandler(new(mockCreator), lister).Users(rw, httptest.NewRequest(http.MethodDelete, "/api/users", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rw.Code)
}

func TestUserEventOmitsPassword(t *testing.T) {
	evt := storage.User{ID: "u-1", Username: "amr", Email: "amr@x.com", PasswordHash: "secret"}.Event()
	assert.Equal(t, "u-1", evt.ID)
	assert.Equal(t, "amr", evt.Username)
	assert.Equal(t, "amr@x.com", evt.Email)
}
