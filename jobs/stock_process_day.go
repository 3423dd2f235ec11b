package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/freshledger/freshledger/internal/jobs"
	"github.com/freshledger/freshledger/internal/stock"
)

// ProcessDayJob runs the once-per-day batch across every open ledger:
// expired lots are written off and remaining perishables degrade.
type ProcessDayJob struct {
	Stock   *stock.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewProcessDayJob wires dependencies for the daily batch handler.
func NewProcessDayJob(stockSvc *stock.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ProcessDayJob {
	return &ProcessDayJob{
		Stock:   stockSvc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes a stock:process_day task.
func (j *ProcessDayJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stock == nil {
		return errors.New("process day: handler not configured")
	}
	var payload ProcessDayPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	day := payload.Date
	if day.IsZero() {
		day = j.now()
	}
	day = stock.DateOnly(day)

	tracker := j.Metrics.Track(TaskStockProcessDay)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("date", day.Format("2006-01-02")))
	logger.Info("starting daily stock batch")

	start := j.now()
	reports, err := j.Stock.ProcessDayAll(ctx, day)
	if err != nil {
		resultErr = err
		logger.Error("daily stock batch", slog.Any("error", err))
		return err
	}

	expired := 0
	records := 0
	for _, report := range reports {
		expired += report.ExpiredLots
		records += len(report.Waste)
	}
	logger.Info("completed daily stock batch",
		slog.Int("ledgers", len(reports)),
		slog.Int("expired_lots", expired),
		slog.Int("waste_records", records),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ProcessDayJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *ProcessDayJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
