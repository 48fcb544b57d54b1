package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rotadireta/automation/internal/domain"
)

// InsertAction appends an action record and returns its new id.
func (s *Storage) InsertAction(ctx context.Context, rec *domain.ActionRecord) (int64, error) {
	contextJSON, err := marshalJSON(rec.Context)
	if err != nil {
		return 0, err
	}
	resultJSON, err := marshalJSON(rec.Result)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO action_records (action_type, context, result, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id int64
	err = s.db.QueryRowContext(ctx, query, rec.ActionType, contextJSON, resultJSON, createdAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert action record: %w", err)
	}

	return id, nil
}

// CountActions returns the total number of action records.
func (s *Storage) CountActions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM action_records`)
	if err != nil {
		return 0, fmt.Errorf("failed to count action records: %w", err)
	}
	return count, nil
}

// ListRecentActions returns the newest records up to limit, oldest first.
func (s *Storage) ListRecentActions(ctx context.Context, limit int) ([]domain.ActionRecord, error) {
	query := `
		SELECT id, action_type, context, result, created_at
		FROM (
			SELECT id, action_type, context, result, created_at
			FROM action_records
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		) recent
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list action records: %w", err)
	}
	defer rows.Close()

	var records []domain.ActionRecord
	for rows.Next() {
		var rec domain.ActionRecord
		var contextJSON, resultJSON []byte

		if err := rows.Scan(&rec.ID, &rec.ActionType, &contextJSON, &resultJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action record: %w", err)
		}

		if rec.Context, err = unmarshalMap(contextJSON); err != nil {
			return nil, err
		}
		if rec.Result, err = unmarshalMap(resultJSON); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate action records: %w", err)
	}

	return records, nil
}
