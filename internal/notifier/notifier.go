// Package notifier schedules and delivers time-windowed alerts for
// upcoming missions and expiring fines. Scans are idempotent per
// reference and delivery marks each notification terminally; transient
// channel retries belong to the job queue, not here.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rotadireta/automation/internal/channel"
	"github.com/rotadireta/automation/internal/domain"
)

// Store is the persistence surface the scheduler needs.
type Store interface {
	ListMissionsInWindow(ctx context.Context, status string, from, to time.Time) ([]domain.Mission, error)
	GetMissionByID(ctx context.Context, id int64) (*domain.Mission, error)
	ListFinesDueBetween(ctx context.Context, status string, from, to time.Time) ([]domain.Fine, error)
	GetFineByID(ctx context.Context, id int64) (*domain.Fine, error)

	InsertNotification(ctx context.Context, n *domain.Notification) (int64, error)
	HasOpenNotification(ctx context.Context, kind string, referenceID int64) (bool, error)
	CountErrorNotifications(ctx context.Context, kind string, referenceID int64) (int, error)
	ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkNotificationError(ctx context.Context, id int64, errMsg string) error
}

// Config holds scheduler tuning.
type Config struct {
	// OperatorEmail receives fine alerts and mission alerts for
	// drivers without an email on file.
	OperatorEmail string
	// DeliverLimit bounds one DeliverDue pass.
	DeliverLimit int
	// MaxScheduleAttempts bounds how many times a failed notification
	// for the same reference may be re-scheduled by later scans.
	MaxScheduleAttempts int
}

// ScanResult reports one scan pass.
type ScanResult struct {
	Scheduled     int `json:"scheduled"`
	TotalInWindow int `json:"total_in_window"`
}

// DeliverResult reports one delivery pass.
type DeliverResult struct {
	Sent  int `json:"sent"`
	Total int `json:"total"`
}

// CycleResult aggregates one full scheduler cycle.
type CycleResult struct {
	Missions  ScanResult    `json:"missions"`
	Fines     ScanResult    `json:"fines"`
	Delivered DeliverResult `json:"delivered"`
}

// Scheduler is the notification scheduler.
type Scheduler struct {
	store    Store
	email    channel.EmailSender
	whatsapp channel.WhatsAppSender
	logger   *slog.Logger

	operatorEmail       string
	deliverLimit        int
	maxScheduleAttempts int

	now func() time.Time
}

// NewScheduler creates a Scheduler.
func NewScheduler(store Store, email channel.EmailSender, whatsapp channel.WhatsAppSender, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.DeliverLimit <= 0 {
		cfg.DeliverLimit = 50
	}
	if cfg.MaxScheduleAttempts <= 0 {
		cfg.MaxScheduleAttempts = 3
	}

	return &Scheduler{
		store:               store,
		email:               email,
		whatsapp:            whatsapp,
		logger:              logger,
		operatorEmail:       cfg.OperatorEmail,
		deliverLimit:        cfg.DeliverLimit,
		maxScheduleAttempts: cfg.MaxScheduleAttempts,
		now:                 time.Now,
	}
}

// ScanMissions schedules alerts for missions happening tomorrow:
// scheduled_at in [tomorrow 00:00, day after tomorrow 00:00). Missions
// already covered by an open notification are skipped.
func (s *Scheduler) ScanMissions(ctx context.Context) (ScanResult, error) {
	from := startOfDay(s.now()).Add(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	missions, err := s.store.ListMissionsInWindow(ctx, domain.MissionStatusScheduled, from, to)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to list missions in window: %w", err)
	}

	result := ScanResult{TotalInWindow: len(missions)}
	for i := range missions {
		mission := &missions[i]

		ok, err := s.shouldSchedule(ctx, domain.NotificationKindMission, mission.ID)
		if err != nil {
			s.logger.Warn("Failed to check mission notification coverage",
				slog.Int64("mission_id", mission.ID),
				slog.Any("error", err),
			)
			continue
		}
		if !ok {
			continue
		}

		recipient := mission.DriverEmail
		if recipient == "" {
			recipient = s.operatorEmail
		}

		subject, body := renderMission(mission)
		notification := &domain.Notification{
			Kind:        domain.NotificationKindMission,
			ReferenceID: mission.ID,
			Channel:     domain.ChannelEmail,
			Recipient:   recipient,
			Subject:     subject,
			Body:        body,
			ScheduledAt: s.now(),
			Status:      domain.NotificationStatusScheduled,
		}
		if _, err := s.store.InsertNotification(ctx, notification); err != nil {
			s.logger.Warn("Failed to schedule mission notification",
				slog.Int64("mission_id", mission.ID),
				slog.Any("error", err),
			)
			continue
		}
		result.Scheduled++
	}

	s.logger.Info("Mission scan completed",
		slog.Int("scheduled", result.Scheduled),
		slog.Int("total_in_window", result.TotalInWindow),
	)

	return result, nil
}

// ScanFines schedules alerts for fines expiring in three days:
// due_date in [today+3d 00:00, today+4d 00:00). Fines have no assignee,
// so the operator address receives every alert.
func (s *Scheduler) ScanFines(ctx context.Context) (ScanResult, error) {
	from := startOfDay(s.now()).Add(3 * 24 * time.Hour)
	to := from.Add(24 * time.Hour)

	fines, err := s.store.ListFinesDueBetween(ctx, domain.FineStatusPending, from, to)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to list fines in window: %w", err)
	}

	result := ScanResult{TotalInWindow: len(fines)}
	for i := range fines {
		fine := &fines[i]

		ok, err := s.shouldSchedule(ctx, domain.NotificationKindFine, fine.ID)
		if err != nil {
			s.logger.Warn("Failed to check fine notification coverage",
				slog.Int64("fine_id", fine.ID),
				slog.Any("error", err),
			)
			continue
		}
		if !ok {
			continue
		}

		subject, body := renderFine(fine)
		notification := &domain.Notification{
			Kind:        domain.NotificationKindFine,
			ReferenceID: fine.ID,
			Channel:     domain.ChannelEmail,
			Recipient:   s.operatorEmail,
			Subject:     subject,
			Body:        body,
			ScheduledAt: s.now(),
			Status:      domain.NotificationStatusScheduled,
		}
		if _, err := s.store.InsertNotification(ctx, notification); err != nil {
			s.logger.Warn("Failed to schedule fine notification",
				slog.Int64("fine_id", fine.ID),
				slog.Any("error", err),
			)
			continue
		}
		result.Scheduled++
	}

	s.logger.Info("Fine scan completed",
		slog.Int("scheduled", result.Scheduled),
		slog.Int("total_in_window", result.TotalInWindow),
	)

	return result, nil
}

// shouldSchedule applies the dedup invariant plus the bound on
// re-scheduling references that already failed delivery.
func (s *Scheduler) shouldSchedule(ctx context.Context, kind string, referenceID int64) (bool, error) {
	open, err := s.store.HasOpenNotification(ctx, kind, referenceID)
	if err != nil {
		return false, err
	}
	if open {
		return false, nil
	}

	failures, err := s.store.CountErrorNotifications(ctx, kind, referenceID)
	if err != nil {
		return false, err
	}
	return failures < s.maxScheduleAttempts, nil
}

// DeliverDue delivers scheduled notifications whose time has come, up
// to the configured limit. Each notification is marked terminally:
// SENT when at least one channel succeeded, ERROR otherwise. Failed
// deliveries are not retried here.
func (s *Scheduler) DeliverDue(ctx context.Context) (DeliverResult, error) {
	due, err := s.store.ListDueNotifications(ctx, s.now(), s.deliverLimit)
	if err != nil {
		return DeliverResult{}, fmt.Errorf("failed to list due notifications: %w", err)
	}

	result := DeliverResult{Total: len(due)}
	for i := range due {
		notification := &due[i]

		if err := s.deliver(ctx, notification); err != nil {
			s.logger.Warn("Notification delivery failed",
				slog.Int64("notification_id", notification.ID),
				slog.String("kind", notification.Kind),
				slog.Int64("reference_id", notification.ReferenceID),
				slog.Any("error", err),
			)
			if markErr := s.store.MarkNotificationError(ctx, notification.ID, err.Error()); markErr != nil {
				s.logger.Warn("Failed to mark notification as errored",
					slog.Int64("notification_id", notification.ID),
					slog.Any("error", markErr),
				)
			}
			continue
		}

		if err := s.store.MarkNotificationSent(ctx, notification.ID, s.now()); err != nil {
			s.logger.Warn("Failed to mark notification as sent",
				slog.Int64("notification_id", notification.ID),
				slog.Any("error", err),
			)
			continue
		}
		result.Sent++
	}

	s.logger.Info("Delivery pass completed",
		slog.Int("sent", result.Sent),
		slog.Int("total", result.Total),
	)

	return result, nil
}

// deliver re-renders the notification from the current entity state and
// pushes it through the configured channel(s).
func (s *Scheduler) deliver(ctx context.Context, n *domain.Notification) error {
	subject, body, err := s.renderCurrent(ctx, n)
	if err != nil {
		return err
	}

	switch n.Channel {
	case domain.ChannelEmail:
		return s.email.SendEmail(ctx, n.Recipient, subject, body)

	case domain.ChannelWhatsApp:
		return s.whatsapp.SendWhatsApp(ctx, n.Recipient, body)

	case domain.ChannelBoth:
		emailErr := s.email.SendEmail(ctx, n.Recipient, subject, body)
		whatsappErr := s.whatsapp.SendWhatsApp(ctx, n.Recipient, body)
		if emailErr == nil || whatsappErr == nil {
			return nil
		}
		return fmt.Errorf("all channels failed: email: %v; whatsapp: %v", emailErr, whatsappErr)

	default:
		return fmt.Errorf("unknown notification channel %q", n.Channel)
	}
}

// renderCurrent loads the referenced entity and renders fresh content,
// so a rescheduled mission or an amended fine goes out with current
// data. A missing entity fails the delivery.
func (s *Scheduler) renderCurrent(ctx context.Context, n *domain.Notification) (subject, body string, err error) {
	switch n.Kind {
	case domain.NotificationKindMission:
		mission, err := s.store.GetMissionByID(ctx, n.ReferenceID)
		if err != nil {
			return "", "", fmt.Errorf("failed to load mission %d: %w", n.ReferenceID, err)
		}
		subject, body = renderMission(mission)
		return subject, body, nil

	case domain.NotificationKindFine:
		fine, err := s.store.GetFineByID(ctx, n.ReferenceID)
		if err != nil {
			return "", "", fmt.Errorf("failed to load fine %d: %w", n.ReferenceID, err)
		}
		subject, body = renderFine(fine)
		return subject, body, nil

	default:
		return "", "", fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}

// RunFullCycle runs both scans and then a delivery pass. A failing
// stage is logged and leaves its result empty; the remaining stages
// still run so one unavailable dependency degrades the cycle instead of
// aborting it.
func (s *Scheduler) RunFullCycle(ctx context.Context) CycleResult {
	var result CycleResult
	var err error

	if result.Missions, err = s.ScanMissions(ctx); err != nil {
		s.logger.Warn("Mission scan failed", slog.Any("error", err))
	}
	if result.Fines, err = s.ScanFines(ctx); err != nil {
		s.logger.Warn("Fine scan failed", slog.Any("error", err))
	}
	if result.Delivered, err = s.DeliverDue(ctx); err != nil {
		s.logger.Warn("Delivery pass failed", slog.Any("error", err))
	}

	return result
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
