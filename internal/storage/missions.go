package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rotadireta/automation/internal/domain"
)

// GetMissionByID returns a mission or domain.ErrMissionNotFound.
func (s *Storage) GetMissionByID(ctx context.Context, id int64) (*domain.Mission, error) {
	query := `
		SELECT id, client_name, origin, destination, vehicle_plate,
		       driver_name, driver_email, scheduled_at, status
		FROM missions
		WHERE id = $1
	`

	var m domain.Mission
	err := s.db.GetContext(ctx, &m, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMissionNotFound
		}
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	return &m, nil
}

// ListMissionsInWindow returns missions in the given status whose
// scheduled_at falls within [from, to).
func (s *Storage) ListMissionsInWindow(ctx context.Context, status string, from, to time.Time) ([]domain.Mission, error) {
	query := `
		SELECT id, client_name, origin, destination, vehicle_plate,
		       driver_name, driver_email, scheduled_at, status
		FROM missions
		WHERE status = $1 AND scheduled_at >= $2 AND scheduled_at < $3
		ORDER BY scheduled_at ASC, id ASC
	`

	var missions []domain.Mission
	err := s.db.SelectContext(ctx, &missions, query, status, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions in window: %w", err)
	}

	return missions, nil
}
