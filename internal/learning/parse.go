package learning

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/rotadireta/automation/internal/domain"
)

// parseCandidates decodes the inference response into candidate
// patterns. The response must carry a "patterns" array and every
// candidate must validate; anything else fails the whole batch so a
// malformed model response never pollutes the pattern store.
func parseCandidates(raw json.RawMessage) ([]domain.CandidatePattern, error) {
	patterns := gjson.GetBytes(raw, "patterns")
	if !patterns.Exists() || !patterns.IsArray() {
		return nil, fmt.Errorf("inference response missing patterns array")
	}

	var candidates []domain.CandidatePattern
	for i, item := range patterns.Array() {
		var candidate domain.CandidatePattern
		if err := json.Unmarshal([]byte(item.Raw), &candidate); err != nil {
			return nil, fmt.Errorf("failed to decode candidate %d: %w", i, err)
		}

		if candidate.PatternType == "" {
			return nil, fmt.Errorf("candidate %d has empty pattern_type", i)
		}
		if err := candidate.Condition.Validate(); err != nil {
			return nil, fmt.Errorf("candidate %d has invalid condition: %w", i, err)
		}
		if len(candidate.Action) == 0 {
			return nil, fmt.Errorf("candidate %d has empty action", i)
		}

		candidate.Confidence = domain.ClampConfidence(candidate.Confidence)
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}
