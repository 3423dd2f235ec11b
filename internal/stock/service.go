package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshledger/freshledger/internal/observability"
)

// CatalogPort resolves per-ingredient defaults from the reference catalog.
type CatalogPort interface {
	DegradationRate(ctx context.Context, ingredientID string) (decimal.Decimal, bool, error)
}

// ArchivePort mirrors waste records into durable storage for reporting.
type ArchivePort interface {
	ArchiveWaste(ctx context.Context, restaurantID string, records []WasteRecord) error
	ListWaste(ctx context.Context, filter WasteFilter) ([]ArchivedWasteRecord, error)
}

// IntegrationHandler receives daily-batch results, e.g. a pricing layer that
// turns promotion flags into menu discounts.
type IntegrationHandler interface {
	HandleDayProcessed(ctx context.Context, evt DayProcessedEvent) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Thresholds Thresholds
	Metrics    *observability.Metrics
}

// Service coordinates one ledger per restaurant session. Sessions are fully
// independent; nothing is shared between their ledgers, so contention only
// ever exists inside a single ledger's mutex.
type Service struct {
	logger      *slog.Logger
	catalog     CatalogPort
	archive     ArchivePort
	alerts      *AlertCache
	metrics     *observability.Metrics
	thresholds  Thresholds
	integration IntegrationHandler

	mu      sync.RWMutex
	ledgers map[string]*Ledger
}

// NewService builds Service.
func NewService(logger *slog.Logger, catalog CatalogPort, archive ArchivePort, alerts *AlertCache, cfg ServiceConfig, integration IntegrationHandler) *Service {
	th := cfg.Thresholds
	if th.NearExpiryDays == 0 && th.PromotionDays == 0 {
		th = DefaultThresholds()
	}
	return &Service{
		logger:      logger,
		catalog:     catalog,
		archive:     archive,
		alerts:      alerts,
		metrics:     cfg.Metrics,
		thresholds:  th,
		integration: integration,
		ledgers:     make(map[string]*Ledger),
	}
}

// Open returns the ledger for a restaurant, creating it on first use.
func (s *Service) Open(restaurantID string) *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if led, ok := s.ledgers[restaurantID]; ok {
		return led
	}
	led := NewLedger(s.thresholds)
	s.ledgers[restaurantID] = led
	return led
}

// Ledger returns an existing ledger or ErrLedgerNotFound.
func (s *Service) Ledger(restaurantID string) (*Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	led, ok := s.ledgers[restaurantID]
	if !ok {
		return nil, ErrLedgerNotFound
	}
	return led, nil
}

// Restaurants lists the open sessions, sorted for deterministic iteration.
func (s *Service) Restaurants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.ledgers))
	for id := range s.ledgers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AddLot registers a purchased lot, defaulting the degradation rate from the
// catalog when the caller left it unset. The first lot of a restaurant opens
// its ledger.
func (s *Service) AddLot(ctx context.Context, restaurantID string, in LotInput) (Lot, error) {
	if in.DegradationRate == nil && s.catalog != nil {
		rate, ok, err := s.catalog.DegradationRate(ctx, in.IngredientID)
		if err != nil {
			return Lot{}, fmt.Errorf("stock: resolve degradation rate: %w", err)
		}
		if ok {
			in.DegradationRate = &rate
		}
	}

	lot, err := s.Open(restaurantID).AddLot(in)
	if err != nil {
		return Lot{}, err
	}
	s.bumpAlerts(ctx)
	return lot, nil
}

// Consume satisfies a consumption request FEFO against the restaurant ledger.
func (s *Service) Consume(ctx context.Context, restaurantID string, today time.Time, ingredientID string, qty decimal.Decimal) (ConsumeResult, error) {
	led, err := s.Ledger(restaurantID)
	if err != nil {
		return ConsumeResult{}, err
	}
	res, err := led.Consume(today, ingredientID, qty)
	if err != nil {
		return ConsumeResult{}, err
	}
	if res.Obtained.LessThan(res.Requested) {
		s.metrics.RecordShortfall()
		s.logger.Info("consumption shortfall",
			slog.String("restaurant", restaurantID),
			slog.String("ingredient", ingredientID),
			slog.String("requested", res.Requested.String()),
			slog.String("obtained", res.Obtained.String()))
	}
	s.bumpAlerts(ctx)
	return res, nil
}

// PromotionCandidates lists lots to discount, served from the alert cache.
func (s *Service) PromotionCandidates(ctx context.Context, restaurantID string, today time.Time) ([]Lot, error) {
	led, err := s.Ledger(restaurantID)
	if err != nil {
		return nil, err
	}
	key, err := s.alerts.BuildKey(ctx, "stock:promotions", restaurantID, DateOnly(today).Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	return s.alerts.FetchLots(ctx, key, func() []Lot {
		return led.PromotionCandidates(today)
	})
}

// LotsNearExpiry lists lots inside the warning window, served from the alert
// cache. warningDays zero or below uses the ledger default.
func (s *Service) LotsNearExpiry(ctx context.Context, restaurantID string, today time.Time, warningDays int) ([]Lot, error) {
	led, err := s.Ledger(restaurantID)
	if err != nil {
		return nil, err
	}
	key, err := s.alerts.BuildKey(ctx, "stock:near-expiry", restaurantID, DateOnly(today).Format("2006-01-02"), strconv.Itoa(warningDays))
	if err != nil {
		return nil, err
	}
	return s.alerts.FetchLots(ctx, key, func() []Lot {
		return led.LotsNearExpiry(today, warningDays)
	})
}

// AvailableQuantity totals non-expired stock of one ingredient.
func (s *Service) AvailableQuantity(restaurantID string, today time.Time, ingredientID string) (decimal.Decimal, error) {
	led, err := s.Ledger(restaurantID)
	if err != nil {
		return decimal.Zero, err
	}
	return led.AvailableQuantity(today, ingredientID), nil
}

// SetReorderPoint registers a replenishment threshold.
func (s *Service) SetReorderPoint(restaurantID, ingredientID string, qty decimal.Decimal) {
	s.Open(restaurantID).SetReorderPoint(ingredientID, qty)
}

// ReorderAlerts lists ingredients at or below their reorder point.
func (s *Service) ReorderAlerts(restaurantID string, today time.Time) ([]string, error) {
	led, err := s.Ledger(restaurantID)
	if err != nil {
		return nil, err
	}
	return led.ReorderAlerts(today), nil
}

// RotationAnalysis summarises lot ages for one ingredient.
func (s *Service) RotationAnalysis(restaurantID string, today time.Time, ingredientID string) (RotationStats, error) {
	led, err := s.Ledger(restaurantID)
	if err != nil {
		return RotationStats{}, err
	}
	return led.RotationAnalysis(today, ingredientID), nil
}

// Lots snapshots the active lot collection of a restaurant.
func (s *Service) Lots(restaurantID string) ([]Lot, error) {
	led, err := s.Ledger(restaurantID)
	if err != nil {
		return nil, err
	}
	return led.Lots(), nil
}

// WasteRecords returns the in-memory audit trail of a restaurant.
func (s *Service) WasteRecords(restaurantID string) ([]WasteRecord, error) {
	led, err := s.Ledger(restaurantID)
	if err != nil {
		return nil, err
	}
	return led.WasteRecords(), nil
}

// WasteHistory reads the durable archive across sessions.
func (s *Service) WasteHistory(ctx context.Context, filter WasteFilter) ([]ArchivedWasteRecord, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.ListWaste(ctx, filter)
}

// ProcessDay runs the daily batch for one restaurant: expiry write-offs,
// degradation, archiving, cache invalidation and the integration event. The
// ledger mutation is the source of truth; archive and integration failures are
// logged but do not undo it, since a retry would trip the once-per-day guard.
func (s *Service) ProcessDay(ctx context.Context, restaurantID string, today time.Time) (DailyReport, error) {
	led, err := s.Ledger(restaurantID)
	if err != nil {
		return DailyReport{}, err
	}
	report, err := led.ProcessDay(today)
	if err != nil {
		return DailyReport{}, err
	}

	for _, rec := range report.Waste {
		s.metrics.RecordWaste(string(rec.Reason), rec.QuantityLost)
	}
	s.metrics.RecordExpiredLots(report.ExpiredLots)

	if s.archive != nil {
		if err := s.archive.ArchiveWaste(ctx, restaurantID, report.Waste); err != nil {
			s.logger.Warn("archive waste records",
				slog.String("restaurant", restaurantID), slog.Any("error", err))
		}
	}
	s.bumpAlerts(ctx)

	if s.integration != nil {
		evt := DayProcessedEvent{
			RestaurantID:        restaurantID,
			Date:                report.Date,
			ExpiredLots:         report.ExpiredLots,
			TotalWasteValue:     report.TotalWasteValue,
			DegradationLosses:   report.DegradationLosses,
			PromotionCandidates: report.PromotionCandidates,
		}
		if err := s.integration.HandleDayProcessed(ctx, evt); err != nil {
			s.logger.Warn("day processed hook",
				slog.String("restaurant", restaurantID), slog.Any("error", err))
		}
	}
	return report, nil
}

// ProcessDayAll runs the daily batch for every open session. Ledgers whose day
// was already processed are skipped, which makes a duplicate scheduler fire
// harmless.
func (s *Service) ProcessDayAll(ctx context.Context, today time.Time) (map[string]DailyReport, error) {
	reports := make(map[string]DailyReport)
	for _, restaurantID := range s.Restaurants() {
		report, err := s.ProcessDay(ctx, restaurantID, today)
		if err != nil {
			if errors.Is(err, ErrDayAlreadyProcessed) {
				continue
			}
			return reports, fmt.Errorf("stock: process day for %s: %w", restaurantID, err)
		}
		reports[restaurantID] = report
	}
	return reports, nil
}

func (s *Service) bumpAlerts(ctx context.Context) {
	if err := s.alerts.Bump(ctx); err != nil {
		s.logger.Warn("bump alert cache", slog.Any("error", err))
	}
}
