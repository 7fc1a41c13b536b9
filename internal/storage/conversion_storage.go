package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/video2gif/internal/domain"
)

const conversionColumns = `id, owner_id, video_file_id, gif_file_id, webhook_url, created_at, updated_at`

// ConversionCursor marks the last row of a page
type ConversionCursor struct {
	CreatedAt time.Time
	ID        string
}

// ConversionFilter selects one page of an owner's conversions
type ConversionFilter struct {
	OwnerID  string
	PageSize int
	Cursor   *ConversionCursor
}

// CreateConversion inserts a pending conversion
func (s *Storage) CreateConversion(ctx context.Context, c *domain.Conversion) error {
	query := `
		INSERT INTO conversions (
			id, owner_id, video_file_id, gif_file_id, webhook_url, created_at, updated_at
		) VALUES (
			:id, :owner_id, :video_file_id, :gif_file_id, :webhook_url, :created_at, :updated_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("failed to create conversion: %w", err)
	}

	return nil
}

// GetConversion loads a conversion by id
func (s *Storage) GetConversion(ctx context.Context, id string) (*domain.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE id = $1`

	var c domain.Conversion
	if err := s.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversionNotFound
		}
		return nil, fmt.Errorf("failed to get conversion: %w", err)
	}

	return &c, nil
}

// GetConversionForOwner loads a conversion only if ownerID owns it
func (s *Storage) GetConversionForOwner(ctx context.Context, id, ownerID string) (*domain.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE id = $1 AND owner_id = $2`

	var c domain.Conversion
	if err := s.db.GetContext(ctx, &c, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversionNotFound
		}
		return nil, fmt.Errorf("failed to get conversion: %w", err)
	}

	return &c, nil
}

// ListConversions returns up to PageSize+1 rows, newest first, so callers can tell whether more exist
func (s *Storage) ListConversions(ctx context.Context, filter ConversionFilter) ([]domain.Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE owner_id = $1`
	args := []any{filter.OwnerID}

	if filter.Cursor != nil {
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, filter.PageSize+1)

	conversions := []domain.Conversion{}
	if err := s.db.SelectContext(ctx, &conversions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}

	return conversions, nil
}

// SetConversionOutput records the output blob. The update only applies
// while gif_file_id is NULL, so an output is written at most once.
func (s *Storage) SetConversionOutput(ctx context.Context, id, blobID string) error {
	query := `
		UPDATE conversions
		SET gif_file_id = $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND gif_file_id IS NULL
	`

	result, err := s.db.ExecContext(ctx, query, id, blobID)
	if err != nil {
		return fmt.Errorf("failed to set conversion output: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := s.GetConversion(ctx, id); err != nil {
			return err
		}
		return domain.ErrOutputAlreadySet
	}

	s.logger.Info("Conversion output recorded",
		slog.String("job_id", id),
		slog.String("gif_file_id", blobID),
	)

	return nil
}
