package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// CreateUser inserts a user; a duplicate username yields domain.ErrUsernameTaken
func (s *Storage) CreateUser(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, created_at)
		VALUES (:id, :username, :password_hash, :created_at)
	`

	if _, err := s.db.NamedExecContext(ctx, query, u); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrUsernameTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID loads a user by id
func (s *Storage) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = $1`, id)
}

// GetUserByUsername loads a user by username
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username)
}

func (s *Storage) getUser(ctx context.Context, query string, arg string) (*domain.User, error) {
	var u domain.User
	if err := s.db.GetContext(ctx, &u, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
