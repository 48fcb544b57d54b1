package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rotadireta/automation/internal/domain"
)

// GetFineByID returns a fine or domain.ErrFineNotFound.
func (s *Storage) GetFineByID(ctx context.Context, id int64) (*domain.Fine, error) {
	query := `
		SELECT id, vehicle_plate, description, amount, due_date, status
		FROM fines
		WHERE id = $1
	`

	var f domain.Fine
	err := s.db.GetContext(ctx, &f, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrFineNotFound
		}
		return nil, fmt.Errorf("failed to get fine: %w", err)
	}

	return &f, nil
}

// ListFinesDueBetween returns fines in the given status whose due_date
// falls within [from, to).
func (s *Storage) ListFinesDueBetween(ctx context.Context, status string, from, to time.Time) ([]domain.Fine, error) {
	query := `
		SELECT id, vehicle_plate, description, amount, due_date, status
		FROM fines
		WHERE status = $1 AND due_date >= $2 AND due_date < $3
		ORDER BY due_date ASC, id ASC
	`

	var fines []domain.Fine
	err := s.db.SelectContext(ctx, &fines, query, status, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list fines due between: %w", err)
	}

	return fines, nil
}
