package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/domain/models"
)

// ActorHeader carries the caller identity. It is not authenticated.
const ActorHeader = "X-Actor-ID"

func actorOf(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(ActorHeader))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrDuplicateLot):
		return http.StatusConflict
	case errors.Is(err, models.ErrLotNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, models.ErrEmptyBatch),
		errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidThresholdUpdate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	logger.Warn(msg, zap.Error(err), zap.Int("status", status))
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("invalid request body", zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

// parseFilter reads registeredBy, variety, stage, from and to query parameters.
// Dates accept RFC3339 or YYYY-MM-DD; a date-only "to" covers the whole day.
func parseFilter(c *gin.Context) (models.LotFilter, error) {
	filter := models.LotFilter{
		RegisteredBy: c.Query("registeredBy"),
		Variety:      c.Query("variety"),
	}

	if raw := c.Query("stage"); raw != "" {
		stage, ok := models.ParseStage(raw)
		if !ok {
			return models.LotFilter{}, fmt.Errorf("unknown stage %q: %w", raw, models.ErrInvalidInput)
		}
		filter.Stage = stage
	}

	var err error
	if filter.From, err = parseTime(c.Query("from"), false); err != nil {
		return models.LotFilter{}, err
	}
	if filter.To, err = parseTime(c.Query("to"), true); err != nil {
		return models.LotFilter{}, err
	}
	return filter, nil
}

func parseTime(raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, models.ErrInvalidInput)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
