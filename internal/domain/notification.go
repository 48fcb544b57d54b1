package domain

import "time"

// Notification status constants
const (
	NotificationStatusScheduled = "SCHEDULED"
	NotificationStatusSent      = "SENT"
	NotificationStatusError     = "ERROR"
	NotificationStatusCanceled  = "CANCELED"
)

// Notification kinds
const (
	NotificationKindMission = "mission"
	NotificationKindFine    = "fine"
)

// Delivery channels
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelBoth     = "both"
)

// Notification is a scheduled, possibly delivered, alert for a mission
// or a fine. At most one SCHEDULED row may exist per (kind, reference_id).
type Notification struct {
	ID           int64      `db:"id" json:"id"`
	Kind         string     `db:"kind" json:"kind"`
	ReferenceID  int64      `db:"reference_id" json:"reference_id"`
	Channel      string     `db:"channel" json:"channel"`
	Recipient    string     `db:"recipient" json:"recipient"`
	Subject      string     `db:"subject" json:"subject"`
	Body         string     `db:"body" json:"body"`
	ScheduledAt  time.Time  `db:"scheduled_at" json:"scheduled_at"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	Status       string     `db:"status" json:"status"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Terminal reports whether the notification can no longer change state.
func (n Notification) Terminal() bool {
	return n.Status == NotificationStatusSent || n.Status == NotificationStatusCanceled
}
