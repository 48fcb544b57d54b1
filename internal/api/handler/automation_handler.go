package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rotadireta/automation/internal/api/dto"
	"github.com/rotadireta/automation/internal/domain"
)

// AutomationHandler handles action recording, evaluation and pattern
// feedback endpoints.
type AutomationHandler struct {
	logger *slog.Logger
	engine Engine
}

// NewAutomationHandler creates a new AutomationHandler instance
func NewAutomationHandler(deps *Dependencies) *AutomationHandler {
	return &AutomationHandler{
		logger: deps.Logger,
		engine: deps.Engine,
	}
}

// RecordAction handles POST /api/v1/actions
// Records one observed user action for pattern learning.
func (h *AutomationHandler) RecordAction(c *gin.Context) {
	var req dto.RecordActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	h.engine.RecordAction(c.Request.Context(), req.ActionType, req.Context, req.Result)

	c.JSON(http.StatusAccepted, gin.H{
		"recorded":           true,
		"analysis_in_flight": h.engine.AnalysisInFlight(),
	})
}

// Evaluate handles POST /api/v1/actions/evaluate
// Decides whether a learned pattern should act on the given context.
func (h *AutomationHandler) Evaluate(c *gin.Context) {
	var req dto.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	decision := h.engine.Evaluate(c.Request.Context(), req.Context)
	c.JSON(http.StatusOK, decision)
}

// GetConfig handles GET /api/v1/automation/config
func (h *AutomationHandler) GetConfig(c *gin.Context) {
	cfg := h.engine.Config(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"enabled":        cfg.Enabled,
		"min_confidence": cfg.MinConfidence,
	})
}

// Toggle handles POST /api/v1/automation/toggle
func (h *AutomationHandler) Toggle(c *gin.Context) {
	enabled, message, err := h.engine.Toggle(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to toggle automation", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to toggle automation",
		})
		return
	}

	c.JSON(http.StatusOK, dto.ToggleResponse{
		Enabled: enabled,
		Message: message,
	})
}

// MarkCorrect handles POST /api/v1/patterns/:pattern_id/correct
// Records positive feedback for an applied pattern.
func (h *AutomationHandler) MarkCorrect(c *gin.Context) {
	patternID, err := strconv.ParseInt(c.Param("pattern_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "pattern_id must be an integer",
		})
		return
	}

	pattern, err := h.engine.MarkCorrect(c.Request.Context(), patternID)
	if err != nil {
		if errors.Is(err, domain.ErrPatternNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Pattern not found",
			})
			return
		}
		h.logger.Error("Failed to mark pattern correct",
			slog.Int64("pattern_id", patternID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to mark pattern correct",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pattern_id":    pattern.ID,
		"confidence":    pattern.Confidence,
		"times_applied": pattern.TimesApplied,
		"times_correct": pattern.TimesCorrect,
	})
}

// Stats handles GET /api/v1/automation/stats
func (h *AutomationHandler) Stats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to load automation stats", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load automation stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}
