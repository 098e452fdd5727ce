// Package user implements account persistence and lookup.
package user

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RamfiAogusto/competitor-tracker/pkg/storage"
)

// Store provides persistence for User accounts.
type Store struct {
	db *storage.DB
}

// NewStore creates a new user store.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// User represents an account in the system.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (uuid.UUID, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	id := uuid.New()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), email, passwordHash, now)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail finds a user by their email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// GetUserByID finds a user by their ID.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE id = ?`, id.String())
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var idStr string
	u := &User{}
	if err := row.Scan(&idStr, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	u.ID = id
	return u, nil
}
