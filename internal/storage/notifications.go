package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rotadireta/automation/internal/domain"
)

// InsertNotification stores a new notification row and returns its id.
func (s *Storage) InsertNotification(ctx context.Context, n *domain.Notification) (int64, error) {
	query := `
		INSERT INTO notifications (
			kind, reference_id, channel, recipient, subject, body,
			scheduled_at, status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id
	`

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		n.Kind,
		n.ReferenceID,
		n.Channel,
		n.Recipient,
		n.Subject,
		n.Body,
		n.ScheduledAt,
		n.Status,
		n.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert notification: %w", err)
	}

	return id, nil
}

// HasOpenNotification reports whether a SCHEDULED or SENT notification
// already exists for the given reference. SCHEDULED enforces the dedup
// invariant; SENT stops a delivered alert from being re-scheduled.
func (s *Storage) HasOpenNotification(ctx context.Context, kind string, referenceID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE kind = $1 AND reference_id = $2 AND status IN ($3, $4)
		)
	`

	var exists bool
	err := s.db.GetContext(ctx, &exists, query, kind, referenceID,
		domain.NotificationStatusScheduled, domain.NotificationStatusSent)
	if err != nil {
		return false, fmt.Errorf("failed to check open notifications: %w", err)
	}
	return exists, nil
}

// CountErrorNotifications returns how many delivery attempts for a
// reference already ended in ERROR. Used to bound re-scheduling.
func (s *Storage) CountErrorNotifications(ctx context.Context, kind string, referenceID int64) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE kind = $1 AND reference_id = $2 AND status = $3
	`

	var count int
	err := s.db.GetContext(ctx, &count, query, kind, referenceID, domain.NotificationStatusError)
	if err != nil {
		return 0, fmt.Errorf("failed to count error notifications: %w", err)
	}
	return count, nil
}

// ListDueNotifications returns up to limit SCHEDULED notifications with
// scheduled_at at or before now, oldest first.
func (s *Storage) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error) {
	query := `
		SELECT id, kind, reference_id, channel, recipient, subject, body,
		       scheduled_at, sent_at, status, error_message, created_at
		FROM notifications
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at ASC, id ASC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, domain.NotificationStatusScheduled, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var sentAt sql.NullTime

		err := rows.Scan(
			&n.ID, &n.Kind, &n.ReferenceID, &n.Channel, &n.Recipient,
			&n.Subject, &n.Body, &n.ScheduledAt, &sentAt, &n.Status,
			&n.ErrorMessage, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if sentAt.Valid {
			t := sentAt.Time
			n.SentAt = &t
		}

		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}

// MarkNotificationSent transitions a notification to SENT.
func (s *Storage) MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) error {
	query := `
		UPDATE notifications
		SET status = $1, sent_at = $2, error_message = ''
		WHERE id = $3 AND status = $4
	`

	return s.transitionNotification(ctx, query, domain.NotificationStatusSent, sentAt, id, domain.NotificationStatusScheduled)
}

// MarkNotificationError transitions a notification to ERROR with the
// underlying failure description.
func (s *Storage) MarkNotificationError(ctx context.Context, id int64, errMsg string) error {
	query := `
		UPDATE notifications
		SET status = $1, error_message = $2
		WHERE id = $3 AND status = $4
	`

	return s.transitionNotification(ctx, query, domain.NotificationStatusError, errMsg, id, domain.NotificationStatusScheduled)
}

func (s *Storage) transitionNotification(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		// Either the id does not exist or the row already left SCHEDULED;
		// terminal states never transition again.
		return domain.ErrNotificationNotFound
	}
	return nil
}
