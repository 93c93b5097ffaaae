package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

// ThresholdService reads and replaces the audit thresholds.
type ThresholdService interface {
	Snapshot() models.ThresholdState
	Update(ctx context.Context, next models.Thresholds, actor string) (models.ThresholdState, error)
}

// All three values are required; partial updates are rejected at binding.
type thresholdRequest struct {
	MaxTransportTempC100  *int64 `json:"maxTransportTempC100" binding:"required"`
	MaxWeightDeviationPct *int64 `json:"maxWeightDeviationPct" binding:"required"`
	MinDryMatterPct       *int64 `json:"minDryMatterPct" binding:"required"`
}

// ThresholdHandler exposes the threshold registry.
type ThresholdHandler struct {
	svc    ThresholdService
	logger *zap.Logger
}

// NewThresholdHandler constructs the HTTP handler adapter.
func NewThresholdHandler(svc ThresholdService, logger *zap.Logger) *ThresholdHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThresholdHandler{svc: svc, logger: logger}
}

// Get returns the current thresholds with version metadata.
func (h *ThresholdHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

// Update replaces all thresholds; only the registry owner may call it.
func (h *ThresholdHandler) Update(c *gin.Context) {
	var req thresholdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	next := models.Thresholds{
		MaxTransportTempC100:  *req.MaxTransportTempC100,
		MaxWeightDeviationPct: *req.MaxWeightDeviationPct,
		MinDryMatterPct:       *req.MinDryMatterPct,
	}

	state, err := h.svc.Update(c.Request.Context(), next, actorOf(c))
	if err != nil {
		respondError(c, h.logger, "failed updating thresholds", err)
		return
	}
	c.JSON(http.StatusOK, state)
}
