package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/streamlinepay/platform/libs/db"
	"github.com/streamlinepay/platform/libs/events"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Event is the payload announced on the users topic. The hash stays here.
func (u User) Event() events.UserEvent {
	return events.UserEvent{ID: u.ID, Username: u.Username, Email: u.Email}
}

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Save inserts user, assigning an ID when it has none.
func (r *UserRepository) Save(ctx context.Context, user User) (User, error) {
	return insertUser(ctx, r.pool, user)
}

func (r *UserRepository) SaveTx(ctx context.Context, tx pgx.Tx, user User) (User, error) {
	return insertUser(ctx, tx, user)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertUser(ctx context.Context, q queryRower, user User) (User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	err := q.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, user.ID, user.Username, user.Email, user.PasswordHash).Scan(&user.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
