package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rotadireta/automation/internal/domain"
)

// GetAutomationConfig returns the singleton automation config row,
// creating it with defaults (disabled, min confidence 80) on first read.
func (s *Storage) GetAutomationConfig(ctx context.Context) (*domain.AutomationConfig, error) {
	query := `
		SELECT id, enabled, min_confidence, updated_at
		FROM automation_config
		ORDER BY id ASC
		LIMIT 1
	`

	var cfg domain.AutomationConfig
	err := s.db.GetContext(ctx, &cfg, query)
	if err == nil {
		return &cfg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get automation config: %w", err)
	}

	insert := `
		INSERT INTO automation_config (enabled, min_confidence, updated_at)
		VALUES ($1, $2, NOW())
		RETURNING id, enabled, min_confidence, updated_at
	`

	err = s.db.QueryRowContext(ctx, insert, false, domain.DefaultMinConfidence).Scan(
		&cfg.ID, &cfg.Enabled, &cfg.MinConfidence, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create automation config: %w", err)
	}

	return &cfg, nil
}

// UpdateAutomationConfig writes back the enabled flag and threshold.
// Per-row write serialization is the database's job; no in-process
// locking is layered on top.
func (s *Storage) UpdateAutomationConfig(ctx context.Context, cfg *domain.AutomationConfig) error {
	query := `
		UPDATE automation_config
		SET enabled = $1, min_confidence = $2, updated_at = NOW()
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, cfg.Enabled, domain.ClampConfidence(cfg.MinConfidence), cfg.ID)
	if err != nil {
		return fmt.Errorf("failed to update automation config: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("automation config row %d not found", cfg.ID)
	}

	return nil
}
