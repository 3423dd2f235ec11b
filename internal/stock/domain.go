package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// LotStatus describes the freshness state derived for a lot at a given date.
type LotStatus string

const (
	// StatusFresh means the lot is well within its shelf life.
	StatusFresh LotStatus = "FRESH"
	// StatusNearExpiry means the lot expires within the warning window.
	StatusNearExpiry LotStatus = "NEAR_EXPIRY"
	// StatusPromotion means the lot should be discounted before it spoils.
	StatusPromotion LotStatus = "PROMOTION"
	// StatusExpired means the lot is past its expiry date.
	StatusExpired LotStatus = "EXPIRED"
)

// WasteReason classifies why stock was written off.
type WasteReason string

const (
	// WasteReasonExpired marks stock removed because the lot passed its expiry date.
	WasteReasonExpired WasteReason = "EXPIRED"
	// WasteReasonDegraded marks gradual quality loss applied by the daily batch.
	WasteReasonDegraded WasteReason = "DEGRADED"
)

// Validation and contract errors surfaced by the ledger.
var (
	ErrInvalidQuantity        = errors.New("stock: quantity must not be negative")
	ErrInvalidUnitCost        = errors.New("stock: unit cost must not be negative")
	ErrInvalidDates           = errors.New("stock: expiry date must not precede purchase date")
	ErrInvalidDegradationRate = errors.New("stock: degradation rate must be between 0 and 1")
	ErrInvalidConsumeRequest  = errors.New("stock: consume quantity must be positive")
	ErrDayAlreadyProcessed    = errors.New("stock: daily operations already processed for this date")
	ErrLedgerNotFound         = errors.New("stock: ledger not found")
)

// Lot is a discrete purchased batch of one ingredient. Identity fields are fixed
// at intake; only Quantity changes afterwards, and only downwards.
type Lot struct {
	ID              string
	LotNumber       string
	IngredientID    string
	SupplierID      string
	Quantity        decimal.Decimal
	UnitCostHT      decimal.Decimal
	PurchaseDate    time.Time
	ExpiryDate      time.Time
	DegradationRate decimal.Decimal

	seq uint64
}

// LotInput carries the caller-supplied fields for a new lot. DegradationRate is
// optional; when nil the catalog default (or zero) applies.
type LotInput struct {
	IngredientID    string
	SupplierID      string
	LotNumber       string
	Quantity        decimal.Decimal
	UnitCostHT      decimal.Decimal
	PurchaseDate    time.Time
	ExpiryDate      time.Time
	DegradationRate *decimal.Decimal
}

// Validate checks the intake contract before any state change.
func (in LotInput) Validate() error {
	if in.Quantity.IsNegative() {
		return ErrInvalidQuantity
	}
	if in.UnitCostHT.IsNegative() {
		return ErrInvalidUnitCost
	}
	if in.ExpiryDate.Before(in.PurchaseDate) {
		return ErrInvalidDates
	}
	if in.DegradationRate != nil {
		if in.DegradationRate.IsNegative() || in.DegradationRate.GreaterThan(decimal.NewFromInt(1)) {
			return ErrInvalidDegradationRate
		}
	}
	return nil
}

// Thresholds configures status derivation and rounding for a ledger.
type Thresholds struct {
	NearExpiryDays  int
	PromotionDays   int
	PromotionMinQty decimal.Decimal
	Precision       int32
}

// DefaultThresholds returns the standard windows: three days for both near-expiry
// and promotion, a one-unit floor for promotion flagging, millis precision.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NearExpiryDays:  3,
		PromotionDays:   3,
		PromotionMinQty: decimal.NewFromInt(1),
		Precision:       3,
	}
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b (negative when b < a).
func DaysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// DaysUntilExpiry counts the calendar days left before the lot expires.
func (l *Lot) DaysUntilExpiry(today time.Time) int {
	return DaysBetween(today, l.ExpiryDate)
}

// IsExpired reports whether the lot is past its expiry date.
func (l *Lot) IsExpired(today time.Time) bool {
	return DateOnly(l.ExpiryDate).Before(DateOnly(today))
}

// IsNearExpiry reports whether the lot expires within warningDays and is not
// already expired.
func (l *Lot) IsNearExpiry(today time.Time, warningDays int) bool {
	d := l.DaysUntilExpiry(today)
	return d >= 0 && d <= warningDays
}

// IsPromotionCandidate reports whether the lot should be flagged for discounting:
// close enough to expiry to matter, with enough quantity left to be worth it.
func (l *Lot) IsPromotionCandidate(today time.Time, th Thresholds) bool {
	d := l.DaysUntilExpiry(today)
	return d >= 0 && d <= th.PromotionDays && l.Quantity.GreaterThanOrEqual(th.PromotionMinQty)
}

// Status derives the lot state for today. It is recomputed on every call rather
// than stored, so a date advance can never leave a stale label behind. A lot that
// satisfies both the promotion and near-expiry predicates resolves to PROMOTION;
// the two listing queries remain independent.
func (l *Lot) Status(today time.Time, th Thresholds) LotStatus {
	switch {
	case l.IsExpired(today):
		return StatusExpired
	case l.IsPromotionCandidate(today, th):
		return StatusPromotion
	case l.IsNearExpiry(today, th.NearExpiryDays):
		return StatusNearExpiry
	default:
		return StatusFresh
	}
}

// TotalValue returns the remaining quantity valued at the lot's cost basis.
func (l *Lot) TotalValue() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCostHT)
}

// ShelfLifePercent returns the remaining fraction of the purchase-to-expiry span,
// clamped to [0, 1].
func (l *Lot) ShelfLifePercent(today time.Time) decimal.Decimal {
	total := DaysBetween(l.PurchaseDate, l.ExpiryDate)
	if total <= 0 {
		return decimal.Zero
	}
	remaining := l.DaysUntilExpiry(today)
	if remaining < 0 {
		remaining = 0
	}
	return decimal.NewFromInt(int64(remaining)).Div(decimal.NewFromInt(int64(total)))
}

// PromotionPrice computes a discounted price for clearing the lot.
func PromotionPrice(basePrice, discountRate decimal.Decimal) decimal.Decimal {
	return basePrice.Mul(decimal.NewFromInt(1).Sub(discountRate))
}

// WasteRecord is one immutable entry of the disposal audit trail. The unit cost
// is copied from the source lot so the value of the loss can be reported after
// the lot itself is gone.
type WasteRecord struct {
	ID           string
	LotID        string
	LotNumber    string
	IngredientID string
	QuantityLost decimal.Decimal
	UnitCostHT   decimal.Decimal
	Reason       WasteReason
	EventDate    time.Time
}

// TotalLossValue returns the monetary value of the write-off.
func (w WasteRecord) TotalLossValue() decimal.Decimal {
	return w.QuantityLost.Mul(w.UnitCostHT)
}

// ConsumptionEntry is one slice of a FEFO consumption breakdown, ordered by the
// expiry of the lot it was taken from.
type ConsumptionEntry struct {
	LotID        string
	LotNumber    string
	IngredientID string
	Quantity     decimal.Decimal
	UnitCostHT   decimal.Decimal
	ExpiryDate   time.Time
}

// ConsumeResult reports how much of a request could be satisfied. Obtained below
// the requested quantity signals a supply shortfall, not an error.
type ConsumeResult struct {
	IngredientID string
	Requested    decimal.Decimal
	Obtained     decimal.Decimal
	Breakdown    []ConsumptionEntry
}

// CostOfGoods sums quantity times unit cost across the breakdown.
func (r ConsumeResult) CostOfGoods() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.Breakdown {
		total = total.Add(e.Quantity.Mul(e.UnitCostHT))
	}
	return total
}

// DailyReport summarises one daily batch run.
type DailyReport struct {
	Date                time.Time
	ExpiredLots         int
	TotalWasteValue     decimal.Decimal
	DegradationLosses   map[string]decimal.Decimal
	Waste               []WasteRecord
	NearExpiry          []Lot
	PromotionCandidates []Lot
}

// RotationStats summarises lot age and rotation for one ingredient.
type RotationStats struct {
	IngredientID    string
	LotCount        int
	TotalQuantity   decimal.Decimal
	AverageAgeDays  float64
	OldestLotDays   int
	NearExpiryCount int
}
