package learning

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotadireta/automation/internal/domain"
)

func TestParseCandidates(t *testing.T) {
	raw := json.RawMessage(`{
		"patterns": [
			{
				"pattern_type": "second_copy_request",
				"condition": {"kind": "contains", "field": "message", "value": "segunda via"},
				"action": {"reply": "Envio a segunda via em instantes."},
				"confidence": 72
			},
			{
				"pattern_type": "high_fine_escalation",
				"condition": {"kind": "greater_than", "field": "amount", "value": 500},
				"action": {"escalate_to": "operador"},
				"confidence": 140
			}
		]
	}`)

	candidates, err := parseCandidates(raw)

	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "second_copy_request", candidates[0].PatternType)
	assert.Equal(t, domain.ConditionContains, candidates[0].Condition.Kind)
	assert.Equal(t, 72, candidates[0].Confidence)

	assert.Equal(t, domain.ConditionGreaterThan, candidates[1].Condition.Kind)
	assert.Equal(t, domain.ConfidenceMax, candidates[1].Confidence, "confidence above the scale is clamped")
}

func TestParseCandidatesEmptyList(t *testing.T) {
	candidates, err := parseCandidates(json.RawMessage(`{"patterns": []}`))

	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestParseCandidatesRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing patterns key", raw: `{"rules": []}`},
		{name: "patterns not an array", raw: `{"patterns": {"pattern_type": "x"}}`},
		{name: "empty pattern type", raw: `{"patterns": [{"pattern_type": "", "condition": {"kind": "equals", "field": "f", "value": "v"}, "action": {"reply": "r"}, "confidence": 50}]}`},
		{name: "unknown condition kind", raw: `{"patterns": [{"pattern_type": "p", "condition": {"kind": "matches_regex", "field": "f", "value": "v"}, "action": {"reply": "r"}, "confidence": 50}]}`},
		{name: "condition missing field", raw: `{"patterns": [{"pattern_type": "p", "condition": {"kind": "equals", "value": "v"}, "action": {"reply": "r"}, "confidence": 50}]}`},
		{name: "empty action", raw: `{"patterns": [{"pattern_type": "p", "condition": {"kind": "equals", "field": "f", "value": "v"}, "action": {}, "confidence": 50}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCandidates(json.RawMessage(tt.raw))
			assert.Error(t, err)
		})
	}
}
