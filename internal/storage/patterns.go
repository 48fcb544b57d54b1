package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotadireta/automation/internal/domain"
)

// InsertPattern stores a new pattern and returns its id.
func (s *Storage) InsertPattern(ctx context.Context, p *domain.Pattern) (int64, error) {
	conditionJSON, err := marshalJSON(p.Condition)
	if err != nil {
		return 0, err
	}
	actionJSON, err := marshalJSON(p.Action)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO patterns (
			pattern_type, condition, action, confidence,
			times_applied, times_correct, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id
	`

	var id int64
	err = s.db.QueryRowContext(ctx, query,
		p.PatternType,
		conditionJSON,
		actionJSON,
		domain.ClampConfidence(p.Confidence),
		p.TimesApplied,
		p.TimesCorrect,
		p.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pattern: %w", err)
	}

	return id, nil
}

// GetPatternByID returns a pattern or domain.ErrPatternNotFound.
func (s *Storage) GetPatternByID(ctx context.Context, id int64) (*domain.Pattern, error) {
	query := `
		SELECT id, pattern_type, condition, action, confidence,
		       times_applied, times_correct, active, created_at, updated_at
		FROM patterns
		WHERE id = $1
	`

	p, err := s.scanPattern(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPatternNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListActivePatterns returns active patterns in insertion (id) order.
// Evaluation is first-match-wins over this order, not confidence-sorted.
func (s *Storage) ListActivePatterns(ctx context.Context) ([]domain.Pattern, error) {
	query := `
		SELECT id, pattern_type, condition, action, confidence,
		       times_applied, times_correct, active, created_at, updated_at
		FROM patterns
		WHERE active = TRUE
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []domain.Pattern
	for rows.Next() {
		p, err := s.scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patterns: %w", err)
	}

	return patterns, nil
}

// UpdatePattern writes back the mutable pattern fields.
func (s *Storage) UpdatePattern(ctx context.Context, p *domain.Pattern) error {
	query := `
		UPDATE patterns
		SET confidence = $1,
		    times_applied = $2,
		    times_correct = $3,
		    active = $4,
		    updated_at = NOW()
		WHERE id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.ClampConfidence(p.Confidence),
		p.TimesApplied,
		p.TimesCorrect,
		p.Active,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update pattern: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrPatternNotFound
	}

	return nil
}

// CountPatterns returns total patterns and counts per confidence band
// (high ≥80, medium 50–79, low <50), active patterns only.
func (s *Storage) CountPatterns(ctx context.Context) (total, high, medium, low int64, err error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE confidence >= 80),
			COUNT(*) FILTER (WHERE confidence >= 50 AND confidence < 80),
			COUNT(*) FILTER (WHERE confidence < 50)
		FROM patterns
		WHERE active = TRUE
	`

	err = s.db.QueryRowContext(ctx, query).Scan(&total, &high, &medium, &low)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to count patterns: %w", err)
	}
	return total, high, medium, low, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Storage) scanPattern(row rowScanner) (*domain.Pattern, error) {
	var p domain.Pattern
	var conditionJSON, actionJSON []byte
	var updatedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.PatternType,
		&conditionJSON,
		&actionJSON,
		&p.Confidence,
		&p.TimesApplied,
		&p.TimesCorrect,
		&p.Active,
		&p.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan pattern: %w", err)
	}

	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	} else {
		p.UpdatedAt = time.Time{}
	}

	if len(conditionJSON) > 0 {
		if err := json.Unmarshal(conditionJSON, &p.Condition); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pattern condition: %w", err)
		}
	}
	if p.Action, err = unmarshalMap(actionJSON); err != nil {
		return nil, err
	}

	return &p, nil
}
