package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/server/handlers"
)

// Handlers groups the HTTP adapters mounted on the engine.
type Handlers struct {
	Lots       *handlers.LotHandler
	Thresholds *handlers.ThresholdHandler
	History    *handlers.HistoryHandler
	Metrics    http.Handler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	lots := r.Group("/lots")
	lots.POST("", h.Lots.Register)
	lots.GET("", h.Lots.List)
	lots.GET("/:id", h.Lots.Get)
	lots.GET("/:id/events", h.Lots.Events)
	lots.POST("/:id/transport", h.Lots.RecordTransport)
	lots.POST("/:id/reception", h.Lots.RecordReception)
	lots.POST("/:id/packaging", h.Lots.RecordPackaging)
	lots.POST("/:id/inspection", h.Lots.IngestInspection)
	lots.POST("/:id/evaluate", h.Lots.Evaluate)
	lots.POST("/:id/transfer", h.Lots.TransferOwnership)

	r.GET("/thresholds", h.Thresholds.Get)
	r.PUT("/thresholds", h.Thresholds.Update)
	r.GET("/history", h.History.Summary)

	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor := c.GetHeader(handlers.ActorHeader); actor != "" {
			fields = append(fields, zap.String("actor", actor))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request rejected", fields...)
		default:
			logger.Info("request completed", fields...)
		}
	}
}
