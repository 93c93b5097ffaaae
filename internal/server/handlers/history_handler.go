package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

// HistoryService computes reporting summaries.
type HistoryService interface {
	GetHistorySummary(ctx context.Context, filter models.LotFilter) (models.HistorySummary, error)
}

// HistoryHandler serves dashboard summaries.
type HistoryHandler struct {
	svc    HistoryService
	logger *zap.Logger
}

// NewHistoryHandler constructs the HTTP handler adapter.
func NewHistoryHandler(svc HistoryService, logger *zap.Logger) *HistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryHandler{svc: svc, logger: logger}
}

// Summary returns the history summary for the query filter.
func (h *HistoryHandler) Summary(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, h.logger, "invalid history filter", err)
		return
	}

	summary, err := h.svc.GetHistorySummary(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "failed computing history", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
