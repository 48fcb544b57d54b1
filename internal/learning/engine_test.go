package learning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotadireta/automation/internal/domain"
	"github.com/rotadireta/automation/internal/inference"
)

type fakeStore struct {
	mu sync.Mutex

	actions  []domain.ActionRecord
	patterns []domain.Pattern
	config   domain.AutomationConfig

	insertActionErr error
	listPatternsErr error
	getConfigErr    error
	updateErr       error

	nextPatternID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		config: domain.AutomationConfig{ID: 1, Enabled: false, MinConfidence: domain.DefaultMinConfidence},
	}
}

func (s *fakeStore) InsertAction(_ context.Context, rec *domain.ActionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertActionErr != nil {
		return 0, s.insertActionErr
	}
	rec.ID = int64(len(s.actions) + 1)
	s.actions = append(s.actions, *rec)
	return rec.ID, nil
}

func (s *fakeStore) CountActions(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.actions)), nil
}

func (s *fakeStore) ListRecentActions(_ context.Context, limit int) ([]domain.ActionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.actions) <= limit {
		return append([]domain.ActionRecord(nil), s.actions...), nil
	}
	return append([]domain.ActionRecord(nil), s.actions[len(s.actions)-limit:]...), nil
}

func (s *fakeStore) InsertPattern(_ context.Context, p *domain.Pattern) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPatternID++
	p.ID = s.nextPatternID
	s.patterns = append(s.patterns, *p)
	return p.ID, nil
}

func (s *fakeStore) GetPatternByID(_ context.Context, id int64) (*domain.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.patterns {
		if s.patterns[i].ID == id {
			p := s.patterns[i]
			return &p, nil
		}
	}
	return nil, domain.ErrPatternNotFound
}

func (s *fakeStore) ListActivePatterns(context.Context) ([]domain.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listPatternsErr != nil {
		return nil, s.listPatternsErr
	}
	var active []domain.Pattern
	for _, p := range s.patterns {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

func (s *fakeStore) UpdatePattern(_ context.Context, p *domain.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	for i := range s.patterns {
		if s.patterns[i].ID == p.ID {
			s.patterns[i] = *p
			return nil
		}
	}
	return domain.ErrPatternNotFound
}

func (s *fakeStore) CountPatterns(context.Context) (total, high, medium, low int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patterns {
		total++
		switch {
		case p.Confidence >= 80:
			high++
		case p.Confidence >= 50:
			medium++
		default:
			low++
		}
	}
	return total, high, medium, low, nil
}

func (s *fakeStore) GetAutomationConfig(context.Context) (*domain.AutomationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getConfigErr != nil {
		return nil, s.getConfigErr
	}
	cfg := s.config
	return &cfg, nil
}

func (s *fakeStore) UpdateAutomationConfig(_ context.Context, cfg *domain.AutomationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = *cfg
	return nil
}

func (s *fakeStore) pattern(t *testing.T, id int64) domain.Pattern {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.patterns {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("pattern %d not found", id)
	return domain.Pattern{}
}

func (s *fakeStore) patternCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patterns)
}

func (s *fakeStore) addPattern(p domain.Pattern) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPatternID++
	p.ID = s.nextPatternID
	s.patterns = append(s.patterns, p)
	return p.ID
}

type fakeGateway struct {
	mu       sync.Mutex
	response json.RawMessage
	err      error
	calls    int
}

func (g *fakeGateway) Infer(context.Context, inference.Request) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.response, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func candidateResponse(patternType, kind, field string, value any, confidence int) json.RawMessage {
	payload := map[string]any{
		"patterns": []map[string]any{
			{
				"pattern_type": patternType,
				"condition":    map[string]any{"kind": kind, "field": field, "value": value},
				"action":       map[string]any{"reply": "Envio a segunda via em instantes."},
				"confidence":   confidence,
			},
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func recordActions(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.RecordAction(context.Background(),
			"support_reply",
			map[string]any{"message": fmt.Sprintf("preciso da segunda via %d", i)},
			map[string]any{"reply": "Envio a segunda via em instantes."},
		)
	}
}

func waitForAnalysis(t *testing.T, e *Engine) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !e.AnalysisInFlight()
	}, 2*time.Second, 10*time.Millisecond, "analysis did not finish")
}

func TestRecordActionTriggersAnalysis(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{
		response: candidateResponse("second_copy_request", domain.ConditionContains, "message", "segunda via", 72),
	}
	engine := NewEngine(store, gateway, Config{AnalysisMinRecords: 3, AnalysisBatchSize: 50}, testLogger())

	recordActions(engine, 2)
	assert.Equal(t, 0, gateway.callCount(), "analysis should not run below the record threshold")

	recordActions(engine, 1)
	waitForAnalysis(t, engine)

	require.Equal(t, 1, gateway.callCount())
	require.Equal(t, 1, store.patternCount())

	created := store.pattern(t, 1)
	assert.Equal(t, "second_copy_request", created.PatternType)
	assert.Equal(t, 72, created.Confidence)
	assert.True(t, created.Active)
}

func TestAnalysisReinforcesRecurringPattern(t *testing.T) {
	store := newFakeStore()
	existingID := store.addPattern(domain.Pattern{
		PatternType: "second_copy_request",
		Condition:   domain.Condition{Kind: domain.ConditionContains, Field: "message", Value: "segunda via"},
		Action:      map[string]any{"reply": "Envio a segunda via em instantes."},
		Confidence:  80,
		Active:      true,
	})

	gateway := &fakeGateway{
		response: candidateResponse("second_copy_request", domain.ConditionContains, "message", "segunda via", 60),
	}
	engine := NewEngine(store, gateway, Config{AnalysisMinRecords: 3}, testLogger())

	recordActions(engine, 3)
	waitForAnalysis(t, engine)

	require.Equal(t, 1, store.patternCount(), "recurring candidate must not create a duplicate")
	assert.Equal(t, 85, store.pattern(t, existingID).Confidence)
}

func TestAnalysisKeepsRatioConfidenceForAppliedPatterns(t *testing.T) {
	store := newFakeStore()
	existingID := store.addPattern(domain.Pattern{
		PatternType:  "second_copy_request",
		Condition:    domain.Condition{Kind: domain.ConditionContains, Field: "message", Value: "segunda via"},
		Action:       map[string]any{"reply": "Envio a segunda via em instantes."},
		Confidence:   50,
		TimesApplied: 2,
		TimesCorrect: 1,
		Active:       true,
	})

	gateway := &fakeGateway{
		response: candidateResponse("second_copy_request", domain.ConditionContains, "message", "segunda via", 95),
	}
	engine := NewEngine(store, gateway, Config{AnalysisMinRecords: 3}, testLogger())

	recordActions(engine, 3)
	waitForAnalysis(t, engine)

	assert.Equal(t, 50, store.pattern(t, existingID).Confidence,
		"feedback-owned confidence must not be bumped by recurrence")
}

func TestAnalysisFailsClosedOnMalformedResponse(t *testing.T) {
	tests := []struct {
		name     string
		response json.RawMessage
	}{
		{name: "missing patterns array", response: json.RawMessage(`{"rules": []}`)},
		{name: "unknown condition kind", response: candidateResponse("p", "regex", "message", "x", 50)},
		{name: "empty action", response: json.RawMessage(`{"patterns": [{"pattern_type": "p", "condition": {"kind": "equals", "field": "f", "value": "v"}, "action": {}, "confidence": 50}]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			engine := NewEngine(store, &fakeGateway{response: tt.response}, Config{AnalysisMinRecords: 3}, testLogger())

			recordActions(engine, 3)
			waitForAnalysis(t, engine)

			assert.Equal(t, 0, store.patternCount())
		})
	}
}

func TestAnalysisSurvivesGatewayFailure(t *testing.T) {
	store := newFakeStore()
	gateway := &fakeGateway{err: errors.New("inference unavailable")}
	engine := NewEngine(store, gateway, Config{AnalysisMinRecords: 3}, testLogger())

	recordActions(engine, 3)
	waitForAnalysis(t, engine)

	assert.Equal(t, 0, store.patternCount())

	// Recording keeps working after a failed pass.
	recordActions(engine, 1)
	waitForAnalysis(t, engine)
	count, err := store.CountActions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestRecordActionDegradesWhenStoreDown(t *testing.T) {
	store := newFakeStore()
	store.insertActionErr = errors.New("connection refused")
	gateway := &fakeGateway{}
	engine := NewEngine(store, gateway, Config{AnalysisMinRecords: 1}, testLogger())

	recordActions(engine, 3)

	assert.Equal(t, 0, gateway.callCount())
	assert.False(t, engine.AnalysisInFlight())
}

func TestEvaluateDeclinesWhenDisabled(t *testing.T) {
	store := newFakeStore()
	id := store.addPattern(domain.Pattern{
		PatternType: "second_copy_request",
		Condition:   domain.Condition{Kind: domain.ConditionContains, Field: "message", Value: "segunda via"},
		Action:      map[string]any{"reply": "ok"},
		Confidence:  95,
		Active:      true,
	})
	engine := NewEngine(store, &fakeGateway{}, Config{}, testLogger())

	decision := engine.Evaluate(context.Background(), map[string]any{"message": "segunda via do boleto"})

	assert.False(t, decision.Applied)
	assert.Equal(t, 0, store.pattern(t, id).TimesApplied, "disabled automation must not count applications")
}

func TestEvaluateAppliesFirstEligibleMatch(t *testing.T) {
	store := newFakeStore()
	store.config.Enabled = true

	// Below threshold, matching.
	store.addPattern(domain.Pattern{
		PatternType: "low_confidence",
		Condition:   domain.Condition{Kind: domain.ConditionContains, Field: "message", Value: "segunda via"},
		Action:      map[string]any{"reply": "low"},
		Confidence:  70,
		Active:      true,
	})
	// At threshold, not matching.
	store.addPattern(domain.Pattern{
		PatternType: "other_subject",
		Condition:   domain.Condition{Kind: domain.ConditionContains, Field: "message", Value: "multa"},
		Action:      map[string]any{"reply": "other"},
		Confidence:  90,
		Active:      true,
	})
	// At threshold, matching: this one wins.
	winnerID := store.addPattern(domain.Pattern{
		PatternType: "second_copy_request",
		Condition:   domain.Condition{Kind: domain.ConditionContains, Field: "message", Value: "segunda via"},
		Action:      map[string]any{"reply": "Envio a segunda via em instantes."},
		Confidence:  85,
		Active:      true,
	})

	engine := NewEngine(store, &fakeGateway{}, Config{}, testLogger())
	decision := engine.Evaluate(context.Background(), map[string]any{"message": "Preciso da SEGUNDA VIA do boleto"})

	require.True(t, decision.Applied)
	assert.Equal(t, winnerID, decision.PatternID)
	assert.Equal(t, 85, decision.Confidence)
	assert.Equal(t, map[string]any{"reply": "Envio a segunda via em instantes."}, decision.Action)
	assert.Equal(t, 1, store.pattern(t, winnerID).TimesApplied)
}

func TestEnableThenEvaluateApplies(t *testing.T) {
	store := newFakeStore()
	store.addPattern(domain.Pattern{
		PatternType: "transport_request",
		Condition:   domain.Condition{Kind: domain.ConditionContains, Field: "descricao", Value: "transporte"},
		Action:      map[string]any{"reply": "Enviamos a proposta de transporte."},
		Confidence:  85,
		Active:      true,
	})
	engine := NewEngine(store, &fakeGateway{}, Config{}, testLogger())
	actionContext := map[string]any{"descricao": "transporte executivo"}

	decision := engine.Evaluate(context.Background(), actionContext)
	assert.False(t, decision.Applied)

	enabled, _, err := engine.Toggle(context.Background())
	require.NoError(t, err)
	require.True(t, enabled)

	decision = engine.Evaluate(context.Background(), actionContext)
	assert.True(t, decision.Applied)
	assert.Equal(t, 85, decision.Confidence)
}

func TestEvaluateTreatsMissingFieldAsNoMatch(t *testing.T) {
	store := newFakeStore()
	store.config.Enabled = true
	store.addPattern(domain.Pattern{
		PatternType: "second_copy_request",
		Condition:   domain.Condition{Kind: domain.ConditionContains, Field: "message", Value: "segunda via"},
		Action:      map[string]any{"reply": "ok"},
		Confidence:  95,
		Active:      true,
	})

	engine := NewEngine(store, &fakeGateway{}, Config{}, testLogger())
	decision := engine.Evaluate(context.Background(), map[string]any{"subject": "sem campo message"})

	assert.False(t, decision.Applied)
}

func TestEvaluateDegradesWhenStoreDown(t *testing.T) {
	store := newFakeStore()
	store.config.Enabled = true
	store.listPatternsErr = errors.New("connection refused")

	engine := NewEngine(store, &fakeGateway{}, Config{}, testLogger())
	decision := engine.Evaluate(context.Background(), map[string]any{"message": "segunda via"})

	assert.False(t, decision.Applied)
}

func TestMarkCorrect(t *testing.T) {
	tests := []struct {
		name           string
		timesApplied   int
		timesCorrect   int
		wantCorrect    int
		wantConfidence int
	}{
		{name: "first application confirmed", timesApplied: 1, timesCorrect: 0, wantCorrect: 1, wantConfidence: 100},
		{name: "three of four correct", timesApplied: 4, timesCorrect: 2, wantCorrect: 3, wantConfidence: 75},
		{name: "all correct", timesApplied: 2, timesCorrect: 1, wantCorrect: 2, wantConfidence: 100},
		{name: "correct capped at applied", timesApplied: 3, timesCorrect: 3, wantCorrect: 3, wantConfidence: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			id := store.addPattern(domain.Pattern{
				PatternType:  "second_copy_request",
				Condition:    domain.Condition{Kind: domain.ConditionEquals, Field: "subject", Value: "boleto"},
				Action:       map[string]any{"reply": "ok"},
				Confidence:   50,
				TimesApplied: tt.timesApplied,
				TimesCorrect: tt.timesCorrect,
				Active:       true,
			})

			engine := NewEngine(store, &fakeGateway{}, Config{}, testLogger())
			p, err := engine.MarkCorrect(context.Background(), id)

			require.NoError(t, err)
			assert.Equal(t, tt.wantCorrect, p.TimesCorrect)
			assert.Equal(t, tt.wantConfidence, p.Confidence)
			assert.Equal(t, tt.wantConfidence, store.pattern(t, id).Confidence)
		})
	}
}

func TestMarkCorrectNeverAppliedPattern(t *testing.T) {
	store := newFakeStore()
	id := store.addPattern(domain.Pattern{
		PatternType: "second_copy_request",
		Condition:   domain.Condition{Kind: domain.ConditionEquals, Field: "subject", Value: "boleto"},
		Action:      map[string]any{"reply": "ok"},
		Confidence:  50,
		Active:      true,
	})

	engine := NewEngine(store, &fakeGateway{}, Config{}, testLogger())
	_, err := engine.MarkCorrect(context.Background(), id)

	assert.Error(t, err)
}

func TestMarkCorrectUnknownPattern(t *testing.T) {
	engine := NewEngine(newFakeStore(), &fakeGateway{}, Config{}, testLogger())

	_, err := engine.MarkCorrect(context.Background(), 42)

	assert.ErrorIs(t, err, domain.ErrPatternNotFound)
}

func TestToggle(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, &fakeGateway{}, Config{}, testLogger())

	enabled, message, err := engine.Toggle(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Contains(t, message, "enabled")

	enabled, message, err = engine.Toggle(context.Background())
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.Contains(t, message, "disabled")
}

func TestConfigDegradesWhenStoreDown(t *testing.T) {
	store := newFakeStore()
	store.getConfigErr = errors.New("connection refused")

	engine := NewEngine(store, &fakeGateway{}, Config{}, testLogger())
	cfg := engine.Config(context.Background())

	assert.False(t, cfg.Enabled, "unreachable persistence must read as automation disabled")
	assert.Equal(t, domain.DefaultMinConfidence, cfg.MinConfidence)
}

func TestStats(t *testing.T) {
	store := newFakeStore()
	store.addPattern(domain.Pattern{PatternType: "a", Confidence: 90, Active: true})
	store.addPattern(domain.Pattern{PatternType: "b", Confidence: 60, Active: true})
	store.addPattern(domain.Pattern{PatternType: "c", Confidence: 30, Active: false})

	engine := NewEngine(store, &fakeGateway{}, Config{AnalysisMinRecords: 100}, testLogger())
	recordActions(engine, 2)

	stats, err := engine.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalActions)
	assert.Equal(t, int64(3), stats.TotalPatterns)
	assert.Equal(t, int64(1), stats.HighConfidence)
	assert.Equal(t, int64(1), stats.MediumConfidence)
	assert.Equal(t, int64(1), stats.LowConfidence)
}
