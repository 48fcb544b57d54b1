// Package learning turns the stream of observed user actions into
// reusable condition→action rules and applies them when automation is
// enabled. Recording never fails because of analysis: inference and
// persistence problems degrade the engine to learning-only or
// non-learning mode instead of surfacing to callers.
package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/rotadireta/automation/internal/domain"
	"github.com/rotadireta/automation/internal/inference"
)

// confidenceIncrement is applied when the inference gateway proposes a
// condition structurally identical to an existing pattern. The bump is
// only used while a pattern has no feedback; once applied at least
// once, the correctness ratio owns the confidence value.
const confidenceIncrement = 5

// Store is the persistence surface the engine needs.
type Store interface {
	InsertAction(ctx context.Context, rec *domain.ActionRecord) (int64, error)
	CountActions(ctx context.Context) (int64, error)
	ListRecentActions(ctx context.Context, limit int) ([]domain.ActionRecord, error)

	InsertPattern(ctx context.Context, p *domain.Pattern) (int64, error)
	GetPatternByID(ctx context.Context, id int64) (*domain.Pattern, error)
	ListActivePatterns(ctx context.Context) ([]domain.Pattern, error)
	UpdatePattern(ctx context.Context, p *domain.Pattern) error
	CountPatterns(ctx context.Context) (total, high, medium, low int64, err error)

	GetAutomationConfig(ctx context.Context) (*domain.AutomationConfig, error)
	UpdateAutomationConfig(ctx context.Context, cfg *domain.AutomationConfig) error
}

// Gateway is the inference surface the engine needs.
type Gateway interface {
	Infer(ctx context.Context, req inference.Request) (json.RawMessage, error)
}

// Config holds engine tuning.
type Config struct {
	// AnalysisMinRecords is the total record count that arms analysis.
	AnalysisMinRecords int
	// AnalysisBatchSize bounds how many recent records one analysis
	// pass sends to the inference gateway.
	AnalysisBatchSize int
}

// Decision is the outcome of evaluating a context against the learned
// patterns.
type Decision struct {
	Applied    bool           `json:"applied"`
	PatternID  int64          `json:"pattern_id,omitempty"`
	Confidence int            `json:"confidence,omitempty"`
	Action     map[string]any `json:"action,omitempty"`
}

// Stats aggregates engine counters for operator views.
type Stats struct {
	TotalActions     int64 `json:"total_actions"`
	TotalPatterns    int64 `json:"total_patterns"`
	HighConfidence   int64 `json:"high_confidence"`
	MediumConfidence int64 `json:"medium_confidence"`
	LowConfidence    int64 `json:"low_confidence"`
}

// Engine is the pattern learning engine.
type Engine struct {
	store  Store
	infer  Gateway
	logger *slog.Logger

	minRecords int
	batchSize  int

	analysisInFlight atomic.Bool
}

// NewEngine creates an Engine.
func NewEngine(store Store, gateway Gateway, cfg Config, logger *slog.Logger) *Engine {
	if cfg.AnalysisMinRecords <= 0 {
		cfg.AnalysisMinRecords = 5
	}
	if cfg.AnalysisBatchSize <= 0 {
		cfg.AnalysisBatchSize = 50
	}

	return &Engine{
		store:      store,
		infer:      gateway,
		logger:     logger,
		minRecords: cfg.AnalysisMinRecords,
		batchSize:  cfg.AnalysisBatchSize,
	}
}

// Config returns the automation config row, lazily created with
// defaults. When persistence is unreachable the engine reports the safe
// default (automation disabled) instead of failing the caller.
func (e *Engine) Config(ctx context.Context) *domain.AutomationConfig {
	cfg, err := e.store.GetAutomationConfig(ctx)
	if err != nil {
		e.logger.Warn("Automation config unavailable, using disabled defaults",
			slog.Any("error", err),
		)
		return &domain.AutomationConfig{
			Enabled:       false,
			MinConfidence: domain.DefaultMinConfidence,
		}
	}
	return cfg
}

// Toggle flips the automation enabled flag and returns the new state
// with an operator-facing message.
func (e *Engine) Toggle(ctx context.Context) (bool, string, error) {
	cfg, err := e.store.GetAutomationConfig(ctx)
	if err != nil {
		return false, "", fmt.Errorf("failed to load automation config: %w", err)
	}

	cfg.Enabled = !cfg.Enabled
	if err := e.store.UpdateAutomationConfig(ctx, cfg); err != nil {
		return false, "", fmt.Errorf("failed to update automation config: %w", err)
	}

	message := "Automation disabled: actions are recorded for learning only"
	if cfg.Enabled {
		message = fmt.Sprintf("Automation enabled: acting autonomously at confidence >= %d", cfg.MinConfidence)
	}

	e.logger.Info("Automation toggled",
		slog.Bool("enabled", cfg.Enabled),
		slog.Int("min_confidence", cfg.MinConfidence),
	)

	return cfg.Enabled, message, nil
}

// RecordAction persists an action record and, once enough records
// exist, triggers a background analysis pass. Recording never fails for
// analysis or persistence reasons: storage errors degrade to a logged
// no-op.
func (e *Engine) RecordAction(ctx context.Context, actionType string, actionContext, result map[string]any) {
	rec := &domain.ActionRecord{
		ActionType: actionType,
		Context:    actionContext,
		Result:     result,
		CreatedAt:  time.Now(),
	}

	id, err := e.store.InsertAction(ctx, rec)
	if err != nil {
		e.logger.Warn("Failed to persist action record, skipping",
			slog.String("action_type", actionType),
			slog.Any("error", err),
		)
		return
	}
	rec.ID = id

	count, err := e.store.CountActions(ctx)
	if err != nil {
		e.logger.Warn("Failed to count action records",
			slog.Any("error", err),
		)
		return
	}
	if count < int64(e.minRecords) {
		return
	}

	// One pass at a time; bursts of recordings coalesce into the pass
	// already in flight.
	if !e.analysisInFlight.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer e.analysisInFlight.Store(false)

		// Detached from the request context: recording must not wait
		// for analysis, and analysis must not die with the request.
		analysisCtx := context.WithoutCancel(ctx)
		if err := e.analyze(analysisCtx); err != nil {
			e.logger.Error("Pattern analysis failed",
				slog.Any("error", err),
			)
		}
	}()
}

// AnalysisInFlight reports whether a background analysis pass is
// currently running.
func (e *Engine) AnalysisInFlight() bool {
	return e.analysisInFlight.Load()
}

// analyze sends the most recent records to the inference gateway and
// merges the proposed candidate patterns into the pattern store.
func (e *Engine) analyze(ctx context.Context) error {
	records, err := e.store.ListRecentActions(ctx, e.batchSize)
	if err != nil {
		return fmt.Errorf("failed to load recent actions: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	systemPrompt, userPrompt, err := buildAnalysisPrompt(records)
	if err != nil {
		return err
	}

	raw, err := e.infer.Infer(ctx, inference.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		SchemaName:   "candidate_patterns",
		Schema:       candidateSchema(),
	})
	if err != nil {
		return fmt.Errorf("inference gateway failed: %w", err)
	}

	candidates, err := parseCandidates(raw)
	if err != nil {
		return err
	}

	existing, err := e.store.ListActivePatterns(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active patterns: %w", err)
	}

	created, reinforced := 0, 0
	for _, candidate := range candidates {
		if match := findStructuralMatch(existing, candidate); match != nil {
			if e.reinforce(ctx, match) {
				reinforced++
			}
			continue
		}

		pattern := &domain.Pattern{
			PatternType: candidate.PatternType,
			Condition:   candidate.Condition,
			Action:      candidate.Action,
			Confidence:  domain.ClampConfidence(candidate.Confidence),
			Active:      true,
		}
		id, err := e.store.InsertPattern(ctx, pattern)
		if err != nil {
			e.logger.Warn("Failed to insert candidate pattern",
				slog.String("pattern_type", candidate.PatternType),
				slog.Any("error", err),
			)
			continue
		}
		pattern.ID = id
		existing = append(existing, *pattern)
		created++
	}

	e.logger.Info("Pattern analysis completed",
		slog.Int("records", len(records)),
		slog.Int("candidates", len(candidates)),
		slog.Int("created", created),
		slog.Int("reinforced", reinforced),
	)

	return nil
}

// reinforce bumps confidence for a recurring pattern. Patterns that
// already have feedback keep their ratio-derived confidence untouched.
func (e *Engine) reinforce(ctx context.Context, p *domain.Pattern) bool {
	if p.TimesApplied > 0 {
		return false
	}

	p.Confidence = domain.ClampConfidence(p.Confidence + confidenceIncrement)
	if err := e.store.UpdatePattern(ctx, p); err != nil {
		e.logger.Warn("Failed to reinforce pattern",
			slog.Int64("pattern_id", p.ID),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

func findStructuralMatch(patterns []domain.Pattern, candidate domain.CandidatePattern) *domain.Pattern {
	for i := range patterns {
		if patterns[i].PatternType == candidate.PatternType &&
			patterns[i].Condition.Equal(candidate.Condition) {
			return &patterns[i]
		}
	}
	return nil
}

// Evaluate decides whether the engine should act autonomously on the
// given context. With automation disabled it always declines. Otherwise
// the first active pattern (insertion order) at or above the confidence
// threshold whose condition matches wins.
func (e *Engine) Evaluate(ctx context.Context, actionContext map[string]any) Decision {
	cfg := e.Config(ctx)
	if !cfg.Enabled {
		return Decision{Applied: false}
	}

	patterns, err := e.store.ListActivePatterns(ctx)
	if err != nil {
		e.logger.Warn("Failed to load patterns for evaluation",
			slog.Any("error", err),
		)
		return Decision{Applied: false}
	}

	for i := range patterns {
		p := &patterns[i]
		if p.Confidence < cfg.MinConfidence {
			continue
		}

		matched, err := p.Condition.Matches(actionContext)
		if err != nil {
			// Malformed condition or missing field: no match, not a failure.
			e.logger.Debug("Condition not evaluable",
				slog.Int64("pattern_id", p.ID),
				slog.Any("error", err),
			)
			continue
		}
		if !matched {
			continue
		}

		p.TimesApplied++
		if err := e.store.UpdatePattern(ctx, p); err != nil {
			e.logger.Warn("Failed to record pattern application",
				slog.Int64("pattern_id", p.ID),
				slog.Any("error", err),
			)
		}

		e.logger.Info("Pattern applied",
			slog.Int64("pattern_id", p.ID),
			slog.String("pattern_type", p.PatternType),
			slog.Int("confidence", p.Confidence),
		)

		return Decision{
			Applied:    true,
			PatternID:  p.ID,
			Confidence: p.Confidence,
			Action:     p.Action,
		}
	}

	return Decision{Applied: false}
}

// MarkCorrect records positive feedback for a pattern and recomputes
// its confidence from the correctness ratio.
func (e *Engine) MarkCorrect(ctx context.Context, patternID int64) (*domain.Pattern, error) {
	p, err := e.store.GetPatternByID(ctx, patternID)
	if err != nil {
		return nil, err
	}

	if p.TimesApplied == 0 {
		return nil, fmt.Errorf("pattern %d has never been applied", patternID)
	}

	p.TimesCorrect++
	if p.TimesCorrect > p.TimesApplied {
		p.TimesCorrect = p.TimesApplied
	}

	ratio := float64(p.TimesCorrect) / float64(p.TimesApplied)
	p.Confidence = domain.ClampConfidence(int(math.Round(ratio * 100)))

	if err := e.store.UpdatePattern(ctx, p); err != nil {
		return nil, err
	}

	e.logger.Info("Pattern feedback recorded",
		slog.Int64("pattern_id", p.ID),
		slog.Int("times_correct", p.TimesCorrect),
		slog.Int("times_applied", p.TimesApplied),
		slog.Int("confidence", p.Confidence),
	)

	return p, nil
}

// Stats returns aggregate counters for operator views.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	actions, err := e.store.CountActions(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count actions: %w", err)
	}

	total, high, medium, low, err := e.store.CountPatterns(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count patterns: %w", err)
	}

	return Stats{
		TotalActions:     actions,
		TotalPatterns:    total,
		HighConfidence:   high,
		MediumConfidence: medium,
		LowConfidence:    low,
	}, nil
}
