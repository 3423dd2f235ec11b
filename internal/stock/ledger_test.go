package stock

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(offset int) time.Time {
	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func addLot(t *testing.T, l *Ledger, ingredient string, qty, cost string, purchased, expires time.Time, rate *decimal.Decimal) Lot {
	t.Helper()
	lot, err := l.AddLot(LotInput{
		IngredientID:    ingredient,
		SupplierID:      "sup1",
		Quantity:        dec(qty),
		UnitCostHT:      dec(cost),
		PurchaseDate:    purchased,
		ExpiryDate:      expires,
		DegradationRate: rate,
	})
	require.NoError(t, err)
	return lot
}

func TestConsumeFEFO(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)

	lot1 := addLot(t, l, "tomato", "10", "1.0", today, day(1), nil)
	lot2 := addLot(t, l, "tomato", "10", "1.0", today, day(5), nil)

	res, err := l.Consume(today, "tomato", dec("15"))
	require.NoError(t, err)
	require.True(t, res.Obtained.Equal(dec("15")))
	require.Len(t, res.Breakdown, 2)
	require.Equal(t, lot1.ID, res.Breakdown[0].LotID)
	require.Equal(t, lot2.ID, res.Breakdown[1].LotID)
	require.True(t, res.Breakdown[0].Quantity.Equal(dec("10")))
	require.True(t, res.Breakdown[1].Quantity.Equal(dec("5")))

	lots := l.Lots()
	require.True(t, lots[0].Quantity.IsZero())
	require.True(t, lots[1].Quantity.Equal(dec("5")))
}

func TestConsumeOrderIsDeterministic(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)

	// Same expiry: earlier purchase wins, then insertion order.
	first := addLot(t, l, "onion", "2", "0.5", day(-3), day(4), nil)
	second := addLot(t, l, "onion", "2", "0.5", day(-1), day(4), nil)
	third := addLot(t, l, "onion", "2", "0.5", day(-1), day(4), nil)

	res, err := l.Consume(today, "onion", dec("6"))
	require.NoError(t, err)
	require.Equal(t, []string{first.ID, second.ID, third.ID}, []string{
		res.Breakdown[0].LotID, res.Breakdown[1].LotID, res.Breakdown[2].LotID,
	})
}

func TestConsumeShortfallAndUnknownIngredient(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)
	addLot(t, l, "basil", "3", "4.0", today, day(2), nil)

	res, err := l.Consume(today, "basil", dec("10"))
	require.NoError(t, err)
	require.True(t, res.Obtained.Equal(dec("3")))

	res, err = l.Consume(today, "saffron", dec("1"))
	require.NoError(t, err)
	require.True(t, res.Obtained.IsZero())
	require.Empty(t, res.Breakdown)
}

func TestConsumeSkipsExpiredLots(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)
	addLot(t, l, "cream", "5", "2.0", day(-6), day(-1), nil)
	fresh := addLot(t, l, "cream", "5", "2.0", day(-1), day(3), nil)

	res, err := l.Consume(today, "cream", dec("4"))
	require.NoError(t, err)
	require.True(t, res.Obtained.Equal(dec("4")))
	require.Len(t, res.Breakdown, 1)
	require.Equal(t, fresh.ID, res.Breakdown[0].LotID)
}

func TestConsumeRejectsNonPositiveRequest(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	_, err := l.Consume(day(0), "tomato", decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidConsumeRequest)
	_, err = l.Consume(day(0), "tomato", dec("-1"))
	require.ErrorIs(t, err, ErrInvalidConsumeRequest)
}

func TestConsumeConservesQuantity(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)
	addLot(t, l, "flour", "7.5", "0.8", today, day(10), nil)
	addLot(t, l, "flour", "2.5", "0.9", today, day(12), nil)

	res, err := l.Consume(today, "flour", dec("6"))
	require.NoError(t, err)

	taken := decimal.Zero
	for _, e := range res.Breakdown {
		taken = taken.Add(e.Quantity)
	}
	require.True(t, taken.Equal(res.Obtained))
	require.True(t, res.Obtained.LessThanOrEqual(res.Requested))

	remaining := l.AvailableQuantity(today, "flour")
	require.True(t, remaining.Add(taken).Equal(dec("10")))
	for _, lot := range l.Lots() {
		require.False(t, lot.Quantity.IsNegative())
	}
}

func TestPromotionAndNearExpiryDetection(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)
	lot := addLot(t, l, "salad", "5", "2.0", day(-7), day(3), nil)

	promos := l.PromotionCandidates(today)
	require.Len(t, promos, 1)
	require.Equal(t, lot.ID, promos[0].ID)

	near := l.LotsNearExpiry(today, 3)
	require.Len(t, near, 1)
	require.Equal(t, lot.ID, near[0].ID)

	status := near[0].Status(today, l.Thresholds())
	require.Contains(t, []LotStatus{StatusNearExpiry, StatusPromotion}, status)
}

func TestPromotionSkipsDepletedLots(t *testing.T) {
	th := DefaultThresholds()
	l := NewLedger(th)
	today := day(0)
	addLot(t, l, "salad", "0.2", "2.0", day(-7), day(2), nil)

	require.Empty(t, l.PromotionCandidates(today))
	// Too depleted for a promotion, but still worth a near-expiry warning.
	require.Len(t, l.LotsNearExpiry(today, 0), 1)
}

func TestQueriesDoNotMutate(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)
	addLot(t, l, "salad", "5", "2.0", day(-7), day(3), nil)

	first := l.PromotionCandidates(today)
	second := l.PromotionCandidates(today)
	require.Equal(t, first, second)

	nearFirst := l.LotsNearExpiry(today, 3)
	nearSecond := l.LotsNearExpiry(today, 3)
	require.Equal(t, nearFirst, nearSecond)
	require.True(t, l.AvailableQuantity(today, "salad").Equal(dec("5")))
}

func TestProcessDayExpiryAndDegradation(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)

	expired := addLot(t, l, "milk", "5", "1.5", day(-5), day(-1), nil)
	rate := dec("0.1")
	fresh := addLot(t, l, "milk", "10", "1.5", day(-1), day(4), &rate)

	report, err := l.ProcessDay(today)
	require.NoError(t, err)

	require.Equal(t, 1, report.ExpiredLots)
	require.True(t, report.DegradationLosses["milk"].Equal(dec("1")))

	lots := l.Lots()
	require.Len(t, lots, 1)
	require.Equal(t, fresh.ID, lots[0].ID)
	require.True(t, lots[0].Quantity.Equal(dec("9")))

	waste := l.WasteRecords()
	require.Len(t, waste, 2)
	require.Equal(t, WasteReasonExpired, waste[0].Reason)
	require.Equal(t, expired.ID, waste[0].LotID)
	require.True(t, waste[0].QuantityLost.Equal(dec("5")))
	require.Equal(t, WasteReasonDegraded, waste[1].Reason)
	require.True(t, waste[1].QuantityLost.Equal(dec("1")))

	// 5 * 1.5 expired plus 1 * 1.5 degraded.
	require.True(t, report.TotalWasteValue.Equal(dec("9")))
}

func TestProcessDayRemovesExpiredFromQueries(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)
	addLot(t, l, "fish", "4", "8.0", day(-4), day(-1), nil)

	_, err := l.ProcessDay(today)
	require.NoError(t, err)

	require.Empty(t, l.Lots())
	require.True(t, l.AvailableQuantity(today, "fish").IsZero())

	res, err := l.Consume(today, "fish", dec("1"))
	require.NoError(t, err)
	require.True(t, res.Obtained.IsZero())

	waste := l.WasteRecords()
	require.Len(t, waste, 1)
	require.Equal(t, WasteReasonExpired, waste[0].Reason)
	require.True(t, waste[0].QuantityLost.Equal(dec("4")))
}

func TestProcessDayRejectsSameDate(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	rate := dec("0.05")
	addLot(t, l, "butter", "10", "3.0", day(-1), day(20), &rate)

	_, err := l.ProcessDay(day(0))
	require.NoError(t, err)

	_, err = l.ProcessDay(day(0))
	require.ErrorIs(t, err, ErrDayAlreadyProcessed)
	_, err = l.ProcessDay(day(-1))
	require.ErrorIs(t, err, ErrDayAlreadyProcessed)

	_, err = l.ProcessDay(day(1))
	require.NoError(t, err)
}

func TestProcessDaySkipsLossRoundingToZero(t *testing.T) {
	th := DefaultThresholds()
	th.Precision = 2
	l := NewLedger(th)
	rate := dec("0.001")
	addLot(t, l, "pepper", "1", "10.0", day(-1), day(30), &rate)

	report, err := l.ProcessDay(day(0))
	require.NoError(t, err)
	require.Empty(t, report.Waste)
	require.Empty(t, l.WasteRecords())
	require.True(t, l.Lots()[0].Quantity.Equal(dec("1")))
}

func TestProcessDayKeepsDrainedLotUntilExpiry(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)
	lot := addLot(t, l, "rice", "5", "1.2", day(-1), day(10), nil)

	res, err := l.Consume(today, "rice", dec("5"))
	require.NoError(t, err)
	require.True(t, res.Obtained.Equal(dec("5")))

	_, err = l.ProcessDay(today)
	require.NoError(t, err)

	lots := l.Lots()
	require.Len(t, lots, 1)
	require.Equal(t, lot.ID, lots[0].ID)
	require.True(t, lots[0].Quantity.IsZero())
}

func TestDailyConservation(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	rate := dec("0.2")
	addLot(t, l, "cheese", "8", "5.0", day(-2), day(6), &rate)

	before := l.AvailableQuantity(day(0), "cheese")

	res, err := l.Consume(day(0), "cheese", dec("3"))
	require.NoError(t, err)

	report, err := l.ProcessDay(day(0))
	require.NoError(t, err)

	after := l.AvailableQuantity(day(0), "cheese")
	degraded := report.DegradationLosses["cheese"]
	require.True(t, before.Equal(after.Add(res.Obtained).Add(degraded)))
}

func TestReorderAlerts(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)
	addLot(t, l, "tomato", "4", "1.0", today, day(5), nil)
	addLot(t, l, "salad", "10", "2.0", today, day(5), nil)

	l.SetReorderPoint("tomato", dec("5"))
	l.SetReorderPoint("salad", dec("5"))
	l.SetReorderPoint("milk", dec("2"))

	require.Equal(t, []string{"milk", "tomato"}, l.ReorderAlerts(today))
}

func TestRotationAnalysis(t *testing.T) {
	l := NewLedger(DefaultThresholds())
	today := day(0)
	addLot(t, l, "tomato", "4", "1.0", day(-6), day(2), nil)
	addLot(t, l, "tomato", "6", "1.1", day(-2), day(8), nil)
	addLot(t, l, "salad", "1", "2.0", day(-1), day(9), nil)

	stats := l.RotationAnalysis(today, "tomato")
	require.Equal(t, 2, stats.LotCount)
	require.True(t, stats.TotalQuantity.Equal(dec("10")))
	require.InDelta(t, 4.0, stats.AverageAgeDays, 0.0001)
	require.Equal(t, 6, stats.OldestLotDays)
	require.Equal(t, 1, stats.NearExpiryCount)

	empty := l.RotationAnalysis(today, "saffron")
	require.Zero(t, empty.LotCount)
	require.True(t, empty.TotalQuantity.IsZero())
}
