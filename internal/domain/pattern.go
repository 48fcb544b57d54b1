package domain

import "time"

const (
	// ConfidenceMax bounds pattern confidence; values are clamped, never
	// allowed to escape [0, ConfidenceMax].
	ConfidenceMax = 100

	// DefaultMinConfidence is the autonomous-action threshold used when
	// the automation config row is created lazily.
	DefaultMinConfidence = 80
)

// Pattern is a learned condition→action rule. Patterns are never
// hard-deleted, only deactivated, and times_correct never exceeds
// times_applied.
type Pattern struct {
	ID           int64          `db:"id" json:"id"`
	PatternType  string         `db:"pattern_type" json:"pattern_type"`
	Condition    Condition      `db:"-" json:"condition"`
	Action       map[string]any `db:"-" json:"action"`
	Confidence   int            `db:"confidence" json:"confidence"`
	TimesApplied int            `db:"times_applied" json:"times_applied"`
	TimesCorrect int            `db:"times_correct" json:"times_correct"`
	Active       bool           `db:"active" json:"active"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ClampConfidence forces v into the valid confidence range.
func ClampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > ConfidenceMax {
		return ConfidenceMax
	}
	return v
}

// CandidatePattern is a pattern proposal returned by the inference
// gateway before it is merged into the pattern store.
type CandidatePattern struct {
	PatternType string         `json:"pattern_type"`
	Condition   Condition      `json:"condition"`
	Action      map[string]any `json:"action"`
	Confidence  int            `json:"confidence"`
}

// AutomationConfig is the process-wide automation switch: a single row,
// lazily created with defaults on first read.
type AutomationConfig struct {
	ID            int64     `db:"id" json:"id"`
	Enabled       bool      `db:"enabled" json:"enabled"`
	MinConfidence int       `db:"min_confidence" json:"min_confidence"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
