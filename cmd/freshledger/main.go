package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/freshledger/freshledger/internal/app"
	"github.com/freshledger/freshledger/internal/catalog"
	"github.com/freshledger/freshledger/internal/integration"
	jobmetrics "github.com/freshledger/freshledger/internal/jobs"
	"github.com/freshledger/freshledger/internal/observability"
	"github.com/freshledger/freshledger/internal/platform/cache"
	"github.com/freshledger/freshledger/internal/platform/db"
	"github.com/freshledger/freshledger/internal/stock"
	"github.com/freshledger/freshledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Alerts and pricing degrade to pass-through when redis is down, so a
	// failed connection only costs caching, not the ledger itself.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, alert caching disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()

	catalogRepo := catalog.NewRepository(dbpool)
	catalogHandler := catalog.NewHandler(logger, catalogRepo)

	wasteArchive := stock.NewRepository(dbpool)
	alertCache := stock.NewAlertCache(redisClient, cfg.AlertCacheTTL)
	pricingHooks := integration.NewPricingHooks(redisClient, logger, decimal.Decimal{}, 0)

	stockService := stock.NewService(logger, catalogRepo, wasteArchive, alertCache, stock.ServiceConfig{
		Thresholds: cfg.Thresholds(),
		Metrics:    metrics,
	}, pricingHooks)
	stockHandler := stock.NewHandler(logger, stockService)

	// The ledgers live in this process, so the task consumer must too. The
	// worker binary only schedules; this server executes the daily batch.
	dailyJob := jobs.NewProcessDayJob(stockService, logger, jobmetrics.NewMetrics(metrics.Registerer()))
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockProcessDay, Handler: dailyJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init job worker", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("job worker", slog.Any("error", err))
			stop()
		}
	}()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		StockHandler:   stockHandler,
		CatalogHandler: catalogHandler,
		JobHandler:     jobHandler,
		Pool:           dbpool,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
