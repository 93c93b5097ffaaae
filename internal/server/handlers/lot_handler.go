package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
	"github.com/mamadbah2/lottrace/internal/ingest"
	"github.com/mamadbah2/lottrace/internal/service/audit"
	"github.com/mamadbah2/lottrace/internal/service/lots"
)

// LotService describes the lifecycle operations the HTTP layer can perform.
type LotService interface {
	Register(ctx context.Context, req lots.RegisterRequest, actor string) (models.Lot, error)
	RecordTransport(ctx context.Context, lotID string, tempC100 int64, actor string) (models.Lot, error)
	RecordReception(ctx context.Context, lotID string, finalWeight int64, actor string) (models.Lot, error)
	RecordPackaging(ctx context.Context, lotID string, dryMatterPct int64, actor string) (models.Lot, error)
	Evaluate(ctx context.Context, lotID string, in audit.Input, actor string) (models.Lot, error)
	IngestInspection(ctx context.Context, lotID string, records []models.UnitRecord, actor string) (models.Lot, error)
	TransferOwnership(ctx context.Context, lotID string, req lots.TransferRequest, actor string) (models.Lot, error)
	GetLot(ctx context.Context, lotID string) (models.Lot, error)
	ListLots(ctx context.Context, filter models.LotFilter) ([]models.Lot, error)
	ListEvents(ctx context.Context, lotID string) ([]models.Event, error)
}

type transportRequest struct {
	AvgTransportTemperatureC100 *int64 `json:"avgTransportTemperatureC100" binding:"required"`
}

type receptionRequest struct {
	FinalWeight *int64 `json:"finalWeight" binding:"required"`
}

type packagingRequest struct {
	DryMatterPct *int64 `json:"dryMatterPct" binding:"required"`
}

type inspectionRequest struct {
	Units []models.UnitRecord `json:"units"`
}

// LotHandler exposes lot registration, measurements, audits and transfers.
type LotHandler struct {
	svc    LotService
	logger *zap.Logger
}

// NewLotHandler constructs the HTTP handler adapter.
func NewLotHandler(svc LotService, logger *zap.Logger) *LotHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LotHandler{svc: svc, logger: logger}
}

// Register creates a lot owned by the calling actor.
func (h *LotHandler) Register(c *gin.Context) {
	var req lots.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	lot, err := h.svc.Register(c.Request.Context(), req, actorOf(c))
	if err != nil {
		respondError(c, h.logger, "failed registering lot", err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

// RecordTransport stores the average transport temperature.
func (h *LotHandler) RecordTransport(c *gin.Context) {
	var req transportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	lot, err := h.svc.RecordTransport(c.Request.Context(), c.Param("id"), *req.AvgTransportTemperatureC100, actorOf(c))
	if err != nil {
		respondError(c, h.logger, "failed recording transport", err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// RecordReception stores the received weight and returns the re-audited lot.
func (h *LotHandler) RecordReception(c *gin.Context) {
	var req receptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	lot, err := h.svc.RecordReception(c.Request.Context(), c.Param("id"), *req.FinalWeight, actorOf(c))
	if err != nil {
		respondError(c, h.logger, "failed recording reception", err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// RecordPackaging stores the final dry matter and returns the re-audited lot.
func (h *LotHandler) RecordPackaging(c *gin.Context) {
	var req packagingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	lot, err := h.svc.RecordPackaging(c.Request.Context(), c.Param("id"), *req.DryMatterPct, actorOf(c))
	if err != nil {
		respondError(c, h.logger, "failed recording packaging", err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// Evaluate re-runs the audit, optionally with new measurements. An empty body,
// sized or chunked, means no overrides.
func (h *LotHandler) Evaluate(c *gin.Context) {
	var in audit.Input
	if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, h.logger, err)
		return
	}

	lot, err := h.svc.Evaluate(c.Request.Context(), c.Param("id"), in, actorOf(c))
	if err != nil {
		respondError(c, h.logger, "failed evaluating lot", err)
		return
	}
	c.JSON(http.StatusOK, lot.Audit)
}

// IngestInspection accepts either a JSON unit list or an xlsx upload in the "file" form field.
func (h *LotHandler) IngestInspection(c *gin.Context) {
	var records []models.UnitRecord

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			badRequest(c, h.logger, err)
			return
		}
		file, err := header.Open()
		if err != nil {
			respondError(c, h.logger, "failed opening upload", err)
			return
		}
		defer file.Close()

		records, err = ingest.ParseWorkbook(file)
		if err != nil {
			respondError(c, h.logger, "failed parsing inspection workbook", err)
			return
		}
	} else {
		var req inspectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, h.logger, err)
			return
		}
		records = req.Units
	}

	lot, err := h.svc.IngestInspection(c.Request.Context(), c.Param("id"), records, actorOf(c))
	if err != nil {
		respondError(c, h.logger, "failed ingesting inspection", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"lotId":            lot.LotID,
		"quality":          lot.Quality,
		"conformantPct":    lot.Quality.ConformantPct(),
		"minorFindingsPct": lot.Quality.MinorFindingsPct(),
		"notAdmittedPct":   lot.Quality.NotAdmittedPct(),
	})
}

// TransferOwnership records an ownership/value transfer.
func (h *LotHandler) TransferOwnership(c *gin.Context) {
	var req lots.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, err)
		return
	}

	lot, err := h.svc.TransferOwnership(c.Request.Context(), c.Param("id"), req, actorOf(c))
	if err != nil {
		respondError(c, h.logger, "failed transferring lot", err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// Get returns one lot.
func (h *LotHandler) Get(c *gin.Context) {
	lot, err := h.svc.GetLot(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "failed loading lot", err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// List returns lots matching the query filter.
func (h *LotHandler) List(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, h.logger, "invalid lot filter", err)
		return
	}

	result, err := h.svc.ListLots(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "failed listing lots", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lots": result, "count": len(result)})
}

// Events returns the event journal of a lot.
func (h *LotHandler) Events(c *gin.Context) {
	evts, err := h.svc.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "failed listing events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evts})
}
