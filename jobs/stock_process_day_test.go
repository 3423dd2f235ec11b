package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/freshledger/freshledger/internal/stock"
	_ "github.com/freshledger/freshledger/internal/testing/guard"
)

func TestProcessDayJobHandlesPayloadDate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := stock.NewService(logger, nil, nil, nil, stock.ServiceConfig{}, nil)

	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	rate := decimal.RequireFromString("0.1")
	_, err := svc.AddLot(context.Background(), "resto-1", stock.LotInput{
		IngredientID:    "milk",
		SupplierID:      "metro",
		Quantity:        decimal.NewFromInt(10),
		UnitCostHT:      decimal.NewFromInt(1),
		PurchaseDate:    start,
		ExpiryDate:      start.AddDate(0, 0, 5),
		DegradationRate: &rate,
	})
	require.NoError(t, err)

	task, err := NewProcessDayTask(start.AddDate(0, 0, 1))
	require.NoError(t, err)

	job := NewProcessDayJob(svc, logger, nil)
	require.NoError(t, job.Handle(context.Background(), task))

	lots, err := svc.Lots("resto-1")
	require.NoError(t, err)
	require.Len(t, lots, 1)
	require.True(t, lots[0].Quantity.Equal(decimal.NewFromInt(9)), "got %s", lots[0].Quantity)
}

func TestProcessDayJobDefaultsToCurrentDay(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := stock.NewService(logger, nil, nil, nil, stock.ServiceConfig{}, nil)

	frozen := time.Date(2025, 6, 12, 9, 30, 0, 0, time.UTC)
	job := NewProcessDayJob(svc, logger, nil)
	job.clock = func() time.Time { return frozen }

	start := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.AddLot(context.Background(), "resto-1", stock.LotInput{
		IngredientID: "salmon",
		SupplierID:   "rungis",
		Quantity:     decimal.NewFromInt(4),
		UnitCostHT:   decimal.NewFromInt(12),
		PurchaseDate: start,
		ExpiryDate:   start.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	task, err := NewProcessDayTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	// Expired on the 11th, so the frozen 12th sweeps it out.
	lots, err := svc.Lots("resto-1")
	require.NoError(t, err)
	require.Empty(t, lots)
}

func TestProcessDayJobRejectsMalformedPayload(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := stock.NewService(logger, nil, nil, nil, stock.ServiceConfig{}, nil)
	job := NewProcessDayJob(svc, logger, nil)

	task := asynq.NewTask(TaskStockProcessDay, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.Error(t, err)
}
