package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/freshledger/freshledger/internal/app"
	"github.com/freshledger/freshledger/jobs"
)

// The scheduler only enqueues; the server process consumes stock:process_day
// because the ledgers it operates on live there.
func main() {
	runNow := flag.Bool("now", false, "enqueue an immediate daily batch run and exit")
	flag.Parse()

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	if *runNow {
		client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("client close", slog.Any("error", err))
			}
		}()
		info, err := client.EnqueueProcessDay(ctx, time.Time{})
		if err != nil {
			logger.Error("enqueue daily batch", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("daily batch enqueued", slog.String("task_id", info.ID))
		return
	}

	dailyTask, err := jobs.NewProcessDayTask(time.Time{})
	if err != nil {
		logger.Error("build daily batch task", slog.Any("error", err))
		os.Exit(1)
	}

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, &asynq.SchedulerOpts{Location: time.UTC})
	if _, err := scheduler.Register(cfg.DailyBatchCron, dailyTask, asynq.MaxRetry(3)); err != nil {
		logger.Error("register daily batch cron", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting job scheduler", slog.String("cron", cfg.DailyBatchCron))
	if err := scheduler.Start(); err != nil {
		logger.Error("start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	scheduler.Shutdown()
}
