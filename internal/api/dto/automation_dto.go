package dto

// RecordActionRequest is the payload for POST /api/v1/actions
type RecordActionRequest struct {
	ActionType string         `json:"action_type" binding:"required"`
	Context    map[string]any `json:"context" binding:"required"`
	Result     map[string]any `json:"result"`
}

// EvaluateRequest is the payload for POST /api/v1/actions/evaluate
type EvaluateRequest struct {
	Context map[string]any `json:"context" binding:"required"`
}

// ToggleResponse is the body for POST /api/v1/automation/toggle
type ToggleResponse struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}
