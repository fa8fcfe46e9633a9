package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

func (c *Conf) InsertUser(ctx context.Context, nu NewUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 'user', NOW(), NOW())
		RETURNING id, name, email, role, created_at, updated_at
	`
	var u User
	err = c.db.QueryRowContext(ctx, query, uuid.NewString(), nu.Name, strings.ToLower(nu.Email), hash).Scan(
		&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "users_email_key") {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// Authenticate verifies the password for the given email and returns the user.
func (c *Conf) Authenticate(ctx context.Context, login Login) (User, error) {
	query := `
		SELECT id, name, email, password_hash, role, stripe_customer_id, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u User
	err := c.db.QueryRowContext(ctx, query, strings.ToLower(login.Email)).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(login.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (c *Conf) GetUser(ctx context.Context, userID string) (User, error) {
	query := `
		SELECT id, name, email, password_hash, role, stripe_customer_id, created_at, updated_at
		FROM users WHERE id = $1
	`
	var u User
	err := c.db.QueryRowContext(ctx, query, userID).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.StripeCustomerID, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// UpdateStripeCustomerID stores the processor-side customer reference, set
// when stripe reports a completed setup intent.
func (c *Conf) UpdateStripeCustomerID(ctx context.Context, userID string, customerID string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1
	`, userID, customerID)
	if err != nil {
		return fmt.Errorf("failed to update stripe customer id: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
