package stock

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger owns every lot of one restaurant session. All mutations and reads go
// through a single mutex: FEFO selection and the quantity decrements it drives
// must appear atomic as a unit, and the daily batch must present a consistent
// snapshot to concurrent queries. The ledger never reads the wall clock; every
// operation that depends on the calendar takes an explicit today.
type Ledger struct {
	mu sync.Mutex

	thresholds    Thresholds
	lots          []*Lot
	seq           uint64
	waste         []WasteRecord
	reorderPoints map[string]decimal.Decimal
	lastProcessed time.Time
}

// NewLedger returns an empty ledger with the given thresholds.
func NewLedger(th Thresholds) *Ledger {
	if th.NearExpiryDays == 0 && th.PromotionDays == 0 {
		th = DefaultThresholds()
	}
	return &Ledger{
		thresholds:    th,
		reorderPoints: make(map[string]decimal.Decimal),
	}
}

// Thresholds returns the ledger configuration.
func (l *Ledger) Thresholds() Thresholds {
	return l.thresholds
}

// AddLot validates the input and registers a new lot. Re-supply always creates
// a new lot; existing quantities never increase.
func (l *Ledger) AddLot(in LotInput) (Lot, error) {
	if err := in.Validate(); err != nil {
		return Lot{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rate := decimal.Zero
	if in.DegradationRate != nil {
		rate = *in.DegradationRate
	}
	number := in.LotNumber
	if number == "" {
		number = "LOT-" + strings.ToUpper(uuid.NewString()[:8])
	}
	l.seq++
	lot := &Lot{
		ID:              uuid.NewString(),
		LotNumber:       number,
		IngredientID:    in.IngredientID,
		SupplierID:      in.SupplierID,
		Quantity:        in.Quantity,
		UnitCostHT:      in.UnitCostHT,
		PurchaseDate:    DateOnly(in.PurchaseDate),
		ExpiryDate:      DateOnly(in.ExpiryDate),
		DegradationRate: rate,
		seq:             l.seq,
	}
	l.lots = append(l.lots, lot)
	return *lot, nil
}

// Consume drains lots of the ingredient first-expired-first-out until the
// requested quantity is satisfied or stock runs out. Expired lots never
// contribute. Obtaining less than requested is a shortfall signal, not an
// error; an unknown ingredient simply yields zero.
func (l *Ledger) Consume(today time.Time, ingredientID string, requested decimal.Decimal) (ConsumeResult, error) {
	if !requested.IsPositive() {
		return ConsumeResult{}, ErrInvalidConsumeRequest
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	candidates := make([]*Lot, 0, len(l.lots))
	for _, lot := range l.lots {
		if lot.IngredientID == ingredientID && lot.Quantity.IsPositive() && !lot.IsExpired(today) {
			candidates = append(candidates, lot)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		if !a.PurchaseDate.Equal(b.PurchaseDate) {
			return a.PurchaseDate.Before(b.PurchaseDate)
		}
		return a.seq < b.seq
	})

	result := ConsumeResult{
		IngredientID: ingredientID,
		Requested:    requested,
		Obtained:     decimal.Zero,
	}
	remaining := requested
	for _, lot := range candidates {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(lot.Quantity, remaining)
		lot.Quantity = lot.Quantity.Sub(take)
		remaining = remaining.Sub(take)
		result.Obtained = result.Obtained.Add(take)
		result.Breakdown = append(result.Breakdown, ConsumptionEntry{
			LotID:        lot.ID,
			LotNumber:    lot.LotNumber,
			IngredientID: lot.IngredientID,
			Quantity:     take,
			UnitCostHT:   lot.UnitCostHT,
			ExpiryDate:   lot.ExpiryDate,
		})
	}
	return result, nil
}

// AvailableQuantity totals the non-expired stock of one ingredient.
func (l *Ledger) AvailableQuantity(today time.Time, ingredientID string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := decimal.Zero
	for _, lot := range l.lots {
		if lot.IngredientID == ingredientID && !lot.IsExpired(today) {
			total = total.Add(lot.Quantity)
		}
	}
	return total
}

// PromotionCandidates lists lots that should be discounted before they spoil.
func (l *Ledger) PromotionCandidates(today time.Time) []Lot {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Lot
	for _, lot := range l.lots {
		if lot.IsPromotionCandidate(today, l.thresholds) {
			out = append(out, *lot)
		}
	}
	return out
}

// LotsNearExpiry lists lots expiring within warningDays. A non-positive
// warningDays falls back to the ledger default.
func (l *Ledger) LotsNearExpiry(today time.Time, warningDays int) []Lot {
	if warningDays <= 0 {
		warningDays = l.thresholds.NearExpiryDays
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Lot
	for _, lot := range l.lots {
		if lot.IsNearExpiry(today, warningDays) {
			out = append(out, *lot)
		}
	}
	return out
}

// ProcessDay runs the once-per-day batch: expired lots are written off in full
// and removed, surviving lots with a degradation rate lose quantity times rate,
// and every write-off lands in the audit trail. Calling it twice for the same
// date would double-apply degradation, so a repeat date is rejected.
func (l *Ledger) ProcessDay(today time.Time) (DailyReport, error) {
	day := DateOnly(today)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastProcessed.IsZero() && !day.After(l.lastProcessed) {
		return DailyReport{}, ErrDayAlreadyProcessed
	}

	report := DailyReport{
		Date:              day,
		TotalWasteValue:   decimal.Zero,
		DegradationLosses: make(map[string]decimal.Decimal),
	}

	kept := l.lots[:0]
	for _, lot := range l.lots {
		if lot.IsExpired(day) {
			rec := l.appendWasteLocked(lot, lot.Quantity, WasteReasonExpired, day)
			lot.Quantity = decimal.Zero
			report.ExpiredLots++
			report.TotalWasteValue = report.TotalWasteValue.Add(rec.TotalLossValue())
			report.Waste = append(report.Waste, rec)
			continue
		}
		if lot.DegradationRate.IsPositive() && lot.Quantity.IsPositive() {
			loss := decimal.Min(lot.Quantity.Mul(lot.DegradationRate).Round(l.thresholds.Precision), lot.Quantity)
			if loss.IsPositive() {
				lot.Quantity = lot.Quantity.Sub(loss)
				rec := l.appendWasteLocked(lot, loss, WasteReasonDegraded, day)
				prev, ok := report.DegradationLosses[lot.IngredientID]
				if !ok {
					prev = decimal.Zero
				}
				report.DegradationLosses[lot.IngredientID] = prev.Add(loss)
				report.TotalWasteValue = report.TotalWasteValue.Add(rec.TotalLossValue())
				report.Waste = append(report.Waste, rec)
			}
		}
		kept = append(kept, lot)
	}
	l.lots = kept
	l.lastProcessed = day

	for _, lot := range l.lots {
		if lot.IsNearExpiry(day, l.thresholds.NearExpiryDays) {
			report.NearExpiry = append(report.NearExpiry, *lot)
		}
		if lot.IsPromotionCandidate(day, l.thresholds) {
			report.PromotionCandidates = append(report.PromotionCandidates, *lot)
		}
	}
	return report, nil
}

func (l *Ledger) appendWasteLocked(lot *Lot, qty decimal.Decimal, reason WasteReason, day time.Time) WasteRecord {
	rec := WasteRecord{
		ID:           uuid.NewString(),
		LotID:        lot.ID,
		LotNumber:    lot.LotNumber,
		IngredientID: lot.IngredientID,
		QuantityLost: qty,
		UnitCostHT:   lot.UnitCostHT,
		Reason:       reason,
		EventDate:    day,
	}
	l.waste = append(l.waste, rec)
	return rec
}

// WasteRecords returns a copy of the full audit trail, oldest first. The ledger
// exposes no way to mutate or delete entries.
func (l *Ledger) WasteRecords() []WasteRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]WasteRecord, len(l.waste))
	copy(out, l.waste)
	return out
}

// Lots returns a snapshot of the active lot collection in intake order.
func (l *Ledger) Lots() []Lot {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Lot, 0, len(l.lots))
	for _, lot := range l.lots {
		out = append(out, *lot)
	}
	return out
}

// SetReorderPoint registers the stock level at which an ingredient should be
// reordered.
func (l *Ledger) SetReorderPoint(ingredientID string, qty decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reorderPoints[ingredientID] = qty
}

// ReorderAlerts lists ingredients whose available stock is at or below their
// reorder point.
func (l *Ledger) ReorderAlerts(today time.Time) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	totals := make(map[string]decimal.Decimal, len(l.reorderPoints))
	for _, lot := range l.lots {
		if lot.IsExpired(today) {
			continue
		}
		prev, ok := totals[lot.IngredientID]
		if !ok {
			prev = decimal.Zero
		}
		totals[lot.IngredientID] = prev.Add(lot.Quantity)
	}

	var alerts []string
	for ingredientID, point := range l.reorderPoints {
		current, ok := totals[ingredientID]
		if !ok {
			current = decimal.Zero
		}
		if current.LessThanOrEqual(point) {
			alerts = append(alerts, ingredientID)
		}
	}
	sort.Strings(alerts)
	return alerts
}

// RotationAnalysis summarises lot ages for one ingredient.
func (l *Ledger) RotationAnalysis(today time.Time, ingredientID string) RotationStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := RotationStats{IngredientID: ingredientID, TotalQuantity: decimal.Zero}
	totalAge := 0
	for _, lot := range l.lots {
		if lot.IngredientID != ingredientID {
			continue
		}
		stats.LotCount++
		stats.TotalQuantity = stats.TotalQuantity.Add(lot.Quantity)
		age := DaysBetween(lot.PurchaseDate, today)
		totalAge += age
		if age > stats.OldestLotDays {
			stats.OldestLotDays = age
		}
		if lot.IsNearExpiry(today, l.thresholds.NearExpiryDays) {
			stats.NearExpiryCount++
		}
	}
	if stats.LotCount > 0 {
		stats.AverageAgeDays = float64(totalAge) / float64(stats.LotCount)
	}
	return stats
}

// LastProcessed returns the date of the most recent daily batch, zero when the
// batch has never run.
func (l *Ledger) LastProcessed() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastProcessed
}
