package handler

import (
	"context"
	"log/slog"

	"github.com/rotadireta/automation/internal/domain"
	"github.com/rotadireta/automation/internal/learning"
	"github.com/rotadireta/automation/internal/notifier"
)

// Engine is the pattern learning surface the handlers need.
type Engine interface {
	Config(ctx context.Context) *domain.AutomationConfig
	Toggle(ctx context.Context) (bool, string, error)
	RecordAction(ctx context.Context, actionType string, actionContext, result map[string]any)
	AnalysisInFlight() bool
	Evaluate(ctx context.Context, actionContext map[string]any) learning.Decision
	MarkCorrect(ctx context.Context, patternID int64) (*domain.Pattern, error)
	Stats(ctx context.Context) (learning.Stats, error)
}

// Cycler runs a notification scheduler cycle on demand.
type Cycler interface {
	RunFullCycle(ctx context.Context) notifier.CycleResult
}

// Publisher pushes outbound message requests onto the transport.
type Publisher interface {
	Publish(ctx context.Context, body []byte, contentType string) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Engine    Engine
	Scheduler Cycler
	Publisher Publisher
}
