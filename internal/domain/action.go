package domain

import "time"

// ActionRecord is an append-only log entry of something a user or the
// system did. Records are the learning input for the pattern engine and
// are never mutated after insertion.
type ActionRecord struct {
	ID         int64          `db:"id" json:"id"`
	ActionType string         `db:"action_type" json:"action_type"`
	Context    map[string]any `db:"-" json:"context"`
	Result     map[string]any `db:"-" json:"result,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
