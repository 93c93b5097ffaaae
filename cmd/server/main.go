package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/lottrace/internal/config"
	"github.com/mamadbah2/lottrace/internal/domain/models"
	"github.com/mamadbah2/lottrace/internal/metrics"
	"github.com/mamadbah2/lottrace/internal/repository"
	"github.com/mamadbah2/lottrace/internal/repository/memory"
	"github.com/mamadbah2/lottrace/internal/repository/mongodb"
	"github.com/mamadbah2/lottrace/internal/repository/sheets"
	"github.com/mamadbah2/lottrace/internal/scheduler"
	"github.com/mamadbah2/lottrace/internal/server/handlers"
	"github.com/mamadbah2/lottrace/internal/server/router"
	"github.com/mamadbah2/lottrace/internal/service/classifier"
	"github.com/mamadbah2/lottrace/internal/service/events"
	historysvc "github.com/mamadbah2/lottrace/internal/service/history"
	lotsvc "github.com/mamadbah2/lottrace/internal/service/lots"
	reportingsvc "github.com/mamadbah2/lottrace/internal/service/reporting"
	"github.com/mamadbah2/lottrace/internal/service/thresholds"
	"github.com/mamadbah2/lottrace/pkg/clients/webhook"
	"github.com/mamadbah2/lottrace/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, cfg.MongoDB, baseLogger)
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close store", zap.Error(err))
		}
	}()

	m := metrics.New()
	notifiers := []events.Notifier{m}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, webhook.NewClient(cfg.Webhook))
		baseLogger.Info("event webhook enabled", zap.String("url", cfg.Webhook.URL))
	} else {
		baseLogger.Warn("events webhook url missing, outbound notifications disabled")
	}
	bus := events.NewBus(store, baseLogger.Named("events"), notifiers...)

	registry, err := thresholds.Open(ctx, cfg.Audit.AdminID, models.Thresholds{
		MaxTransportTempC100:  cfg.Audit.MaxTransportTempC100,
		MaxWeightDeviationPct: cfg.Audit.MaxWeightDeviationPct,
		MinDryMatterPct:       cfg.Audit.MinDryMatterPct,
	}, store, bus, baseLogger.Named("svc.thresholds"))
	if err != nil {
		baseLogger.Fatal("failed to open threshold registry", zap.Error(err))
	}

	qualityClassifier := classifier.New(baseLogger.Named("svc.classifier"), m)
	lotService := lotsvc.NewService(store, store, registry, qualityClassifier, bus, baseLogger.Named("svc.lots"))
	historyService := historysvc.NewService(store, baseLogger.Named("svc.history"))

	// The sheet repository stays a nil interface when exports are disabled.
	var sheetRepo sheets.Repository
	if cfg.Sheets.Enabled() {
		googleRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sheetRepo = googleRepo
	} else {
		baseLogger.Warn("google sheets not configured, history snapshots will only be logged")
	}

	location, err := cfg.Reporting.Location()
	if err != nil {
		baseLogger.Fatal("invalid reporting timezone", zap.Error(err))
	}
	reportingService := reportingsvc.NewService(sheetRepo, historyService, location, baseLogger.Named("svc.reporting"))

	sched, err := scheduler.NewScheduler(cfg.Reporting, reportingService, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	engine := router.New(router.Handlers{
		Lots:       handlers.NewLotHandler(lotService, baseLogger.Named("handlers.lots")),
		Thresholds: handlers.NewThresholdHandler(registry, baseLogger.Named("handlers.thresholds")),
		History:    handlers.NewHistoryHandler(historyService, baseLogger.Named("handlers.history")),
		Metrics:    m.Handler(),
	}, baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("threshold_owner", registry.Owner()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStore selects MongoDB when a URI is configured and the in-memory store otherwise.
func openStore(ctx context.Context, cfg config.MongoDBConfig, base *zap.Logger) repository.Store {
	if cfg.URI == "" {
		base.Warn("mongodb uri missing, using in-memory store")
		return memory.NewStore()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	store, err := mongodb.NewMongoDBRepository(connectCtx, cfg.URI, cfg.DBName, base.Named("repo.mongo"))
	if err != nil {
		base.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	return store
}
