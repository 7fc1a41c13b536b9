package storage

import (
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for both services
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}
