package learning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotadireta/automation/internal/domain"
)

const analysisSystemPrompt = `You analyze operational action records from a fleet support system and extract recurring behavioral patterns.

Each record has an action_type, a context (the situation) and a result (what the operator did).

Propose patterns only when the same kind of context repeatedly leads to the same kind of result. For each pattern produce:
- pattern_type: a short snake_case label for the behavior
- condition: a single predicate over one context field, with kind one of "contains", "equals" or "greater_than"
- action: the result object to reproduce when the condition matches
- confidence: an integer from 0 to 100 reflecting how consistently the records support the pattern

Do not invent fields that never appear in the records. Return an empty patterns list when no recurring behavior is visible.`

// buildAnalysisPrompt renders the system and user prompts for one
// analysis pass over the given records.
func buildAnalysisPrompt(records []domain.ActionRecord) (system, user string, err error) {
	var b strings.Builder
	b.WriteString("Action records, oldest first:\n\n")

	for i, rec := range records {
		contextJSON, err := json.Marshal(rec.Context)
		if err != nil {
			return "", "", fmt.Errorf("failed to encode action context: %w", err)
		}
		resultJSON, err := json.Marshal(rec.Result)
		if err != nil {
			return "", "", fmt.Errorf("failed to encode action result: %w", err)
		}

		fmt.Fprintf(&b, "%d. action_type=%s\n   context=%s\n   result=%s\n",
			i+1, rec.ActionType, contextJSON, resultJSON)
	}

	return analysisSystemPrompt, b.String(), nil
}

// candidateSchema is the JSON schema enforced on the inference
// response. Structured outputs keep the parse step from dealing with
// free-form text.
func candidateSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"patterns": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"pattern_type": map[string]any{"type": "string"},
						"condition": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"kind": map[string]any{
									"type": "string",
									"enum": []string{
										domain.ConditionContains,
										domain.ConditionEquals,
										domain.ConditionGreaterThan,
									},
								},
								"field": map[string]any{"type": "string"},
								"value": map[string]any{},
							},
							"required":             []string{"kind", "field", "value"},
							"additionalProperties": false,
						},
						"action": map[string]any{
							"type":                 "object",
							"additionalProperties": true,
						},
						"confidence": map[string]any{"type": "integer"},
					},
					"required":             []string{"pattern_type", "condition", "action", "confidence"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"patterns"},
		"additionalProperties": false,
	}
}
