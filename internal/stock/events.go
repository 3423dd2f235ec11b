package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// DayProcessedEvent is published after a daily batch run so downstream pricing
// and reporting can react to fresh waste figures and discount flags.
type DayProcessedEvent struct {
	RestaurantID        string
	Date                time.Time
	ExpiredLots         int
	TotalWasteValue     decimal.Decimal
	DegradationLosses   map[string]decimal.Decimal
	PromotionCandidates []Lot
}
