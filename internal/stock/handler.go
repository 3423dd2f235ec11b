package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/freshledger/freshledger/internal/platform/httpx"
)

// Handler wires the JSON API for the stock ledger. Every date-dependent
// endpoint takes an explicit as_of / date value so simulated days stay under
// the caller's control; only when it is absent does the server's UTC date
// apply.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes under a restaurant scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/restaurants/{restaurantID}", func(r chi.Router) {
		r.Post("/lots", h.handleAddLot)
		r.Get("/lots", h.handleListLots)
		r.Post("/consume", h.handleConsume)
		r.Get("/availability/{ingredientID}", h.handleAvailability)
		r.Get("/promotions", h.handlePromotions)
		r.Get("/near-expiry", h.handleNearExpiry)
		r.Post("/reorder-points", h.handleSetReorderPoint)
		r.Get("/reorder-alerts", h.handleReorderAlerts)
		r.Get("/rotation/{ingredientID}", h.handleRotation)
		r.Get("/waste", h.handleWaste)
		r.Post("/process-day", h.handleProcessDay)
	})
	r.Get("/waste-history", h.handleWasteHistory)
}

type addLotRequest struct {
	IngredientID    string `json:"ingredient_id" validate:"required"`
	SupplierID      string `json:"supplier_id" validate:"required"`
	LotNumber       string `json:"lot_number"`
	Quantity        string `json:"quantity" validate:"required"`
	UnitCostHT      string `json:"unit_cost_ht" validate:"required"`
	PurchaseDate    string `json:"purchase_date" validate:"required"`
	ExpiryDate      string `json:"expiry_date" validate:"required"`
	DegradationRate string `json:"degradation_rate"`
}

type lotResponse struct {
	ID              string `json:"id"`
	LotNumber       string `json:"lot_number"`
	IngredientID    string `json:"ingredient_id"`
	SupplierID      string `json:"supplier_id"`
	Quantity        string `json:"quantity"`
	UnitCostHT      string `json:"unit_cost_ht"`
	PurchaseDate    string `json:"purchase_date"`
	ExpiryDate      string `json:"expiry_date"`
	DegradationRate string `json:"degradation_rate"`
	Status          string `json:"status"`
}

func (h *Handler) lotResponse(lot Lot, today time.Time, th Thresholds) lotResponse {
	return lotResponse{
		ID:              lot.ID,
		LotNumber:       lot.LotNumber,
		IngredientID:    lot.IngredientID,
		SupplierID:      lot.SupplierID,
		Quantity:        lot.Quantity.String(),
		UnitCostHT:      lot.UnitCostHT.String(),
		PurchaseDate:    lot.PurchaseDate.Format("2006-01-02"),
		ExpiryDate:      lot.ExpiryDate.Format("2006-01-02"),
		DegradationRate: lot.DegradationRate.String(),
		Status:          string(lot.Status(today, th)),
	}
}

func (h *Handler) lotListResponse(lots []Lot, today time.Time, th Thresholds) []lotResponse {
	out := make([]lotResponse, 0, len(lots))
	for _, lot := range lots {
		out = append(out, h.lotResponse(lot, today, th))
	}
	return out
}

func (h *Handler) handleAddLot(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	var req addLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in, err := h.lotInput(req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	lot, err := h.service.AddLot(r.Context(), restaurantID, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	today, _ := httpx.ParseDate("")
	httpx.JSON(w, http.StatusCreated, h.lotResponse(lot, today, h.service.thresholds))
}

func (h *Handler) lotInput(req addLotRequest) (LotInput, error) {
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return LotInput{}, errors.New("quantity must be a decimal")
	}
	cost, err := decimal.NewFromString(req.UnitCostHT)
	if err != nil {
		return LotInput{}, errors.New("unit_cost_ht must be a decimal")
	}
	purchased, err := time.Parse("2006-01-02", req.PurchaseDate)
	if err != nil {
		return LotInput{}, errors.New("purchase_date must be YYYY-MM-DD")
	}
	expires, err := time.Parse("2006-01-02", req.ExpiryDate)
	if err != nil {
		return LotInput{}, errors.New("expiry_date must be YYYY-MM-DD")
	}
	in := LotInput{
		IngredientID: req.IngredientID,
		SupplierID:   req.SupplierID,
		LotNumber:    req.LotNumber,
		Quantity:     qty,
		UnitCostHT:   cost,
		PurchaseDate: purchased,
		ExpiryDate:   expires,
	}
	if req.DegradationRate != "" {
		rate, err := decimal.NewFromString(req.DegradationRate)
		if err != nil {
			return LotInput{}, errors.New("degradation_rate must be a decimal")
		}
		in.DegradationRate = &rate
	}
	return in, nil
}

func (h *Handler) handleListLots(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	today, err := httpx.ParseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	lots, err := h.service.Lots(restaurantID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.lotListResponse(lots, today, h.service.thresholds))
}

type consumeRequest struct {
	IngredientID string `json:"ingredient_id" validate:"required"`
	Quantity     string `json:"quantity" validate:"required"`
	AsOf         string `json:"as_of"`
}

type consumeEntryResponse struct {
	LotID      string `json:"lot_id"`
	LotNumber  string `json:"lot_number"`
	Quantity   string `json:"quantity"`
	UnitCostHT string `json:"unit_cost_ht"`
	ExpiryDate string `json:"expiry_date"`
}

type consumeResponse struct {
	IngredientID string                 `json:"ingredient_id"`
	Requested    string                 `json:"requested"`
	Obtained     string                 `json:"obtained"`
	Shortfall    bool                   `json:"shortfall"`
	CostOfGoods  string                 `json:"cost_of_goods"`
	Breakdown    []consumeEntryResponse `json:"breakdown"`
}

func (h *Handler) handleConsume(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	var req consumeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "quantity must be a decimal")
		return
	}
	today, err := httpx.ParseDate(req.AsOf)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}

	res, err := h.service.Consume(r.Context(), restaurantID, today, req.IngredientID, qty)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := consumeResponse{
		IngredientID: res.IngredientID,
		Requested:    res.Requested.String(),
		Obtained:     res.Obtained.String(),
		Shortfall:    res.Obtained.LessThan(res.Requested),
		CostOfGoods:  res.CostOfGoods().String(),
		Breakdown:    make([]consumeEntryResponse, 0, len(res.Breakdown)),
	}
	for _, e := range res.Breakdown {
		out.Breakdown = append(out.Breakdown, consumeEntryResponse{
			LotID:      e.LotID,
			LotNumber:  e.LotNumber,
			Quantity:   e.Quantity.String(),
			UnitCostHT: e.UnitCostHT.String(),
			ExpiryDate: e.ExpiryDate.Format("2006-01-02"),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	ingredientID := chi.URLParam(r, "ingredientID")
	today, err := httpx.ParseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	qty, err := h.service.AvailableQuantity(restaurantID, today, ingredientID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"ingredient_id": ingredientID,
		"available":     qty.String(),
	})
}

func (h *Handler) handlePromotions(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	today, err := httpx.ParseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	lots, err := h.service.PromotionCandidates(r.Context(), restaurantID, today)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.lotListResponse(lots, today, h.service.thresholds))
}

func (h *Handler) handleNearExpiry(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	q := r.URL.Query()
	today, err := httpx.ParseDate(q.Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	warningDays := 0
	if daysStr := q.Get("days"); daysStr != "" {
		warningDays, err = strconv.Atoi(daysStr)
		if err != nil || warningDays < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "days must be a non-negative integer")
			return
		}
	}
	lots, err := h.service.LotsNearExpiry(r.Context(), restaurantID, today, warningDays)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.lotListResponse(lots, today, h.service.thresholds))
}

type reorderPointRequest struct {
	IngredientID string `json:"ingredient_id" validate:"required"`
	Quantity     string `json:"quantity" validate:"required"`
}

func (h *Handler) handleSetReorderPoint(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	var req reorderPointRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil || qty.IsNegative() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "quantity must be a non-negative decimal")
		return
	}
	h.service.SetReorderPoint(restaurantID, req.IngredientID, qty)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReorderAlerts(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	today, err := httpx.ParseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	alerts, err := h.service.ReorderAlerts(restaurantID, today)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string][]string{"ingredients": alerts})
}

func (h *Handler) handleRotation(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	ingredientID := chi.URLParam(r, "ingredientID")
	today, err := httpx.ParseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
		return
	}
	stats, err := h.service.RotationAnalysis(restaurantID, today, ingredientID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"ingredient_id":     stats.IngredientID,
		"lot_count":         stats.LotCount,
		"total_quantity":    stats.TotalQuantity.String(),
		"average_age_days":  stats.AverageAgeDays,
		"oldest_lot_days":   stats.OldestLotDays,
		"near_expiry_count": stats.NearExpiryCount,
	})
}

type wasteRecordResponse struct {
	ID           string `json:"id"`
	LotID        string `json:"lot_id"`
	LotNumber    string `json:"lot_number"`
	IngredientID string `json:"ingredient_id"`
	QuantityLost string `json:"quantity_lost"`
	UnitCostHT   string `json:"unit_cost_ht"`
	LossValue    string `json:"loss_value"`
	Reason       string `json:"reason"`
	EventDate    string `json:"event_date"`
}

func wasteResponse(rec WasteRecord) wasteRecordResponse {
	return wasteRecordResponse{
		ID:           rec.ID,
		LotID:        rec.LotID,
		LotNumber:    rec.LotNumber,
		IngredientID: rec.IngredientID,
		QuantityLost: rec.QuantityLost.String(),
		UnitCostHT:   rec.UnitCostHT.String(),
		LossValue:    rec.TotalLossValue().String(),
		Reason:       string(rec.Reason),
		EventDate:    rec.EventDate.Format("2006-01-02"),
	}
}

func (h *Handler) handleWaste(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	records, err := h.service.WasteRecords(restaurantID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := make([]wasteRecordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, wasteResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleWasteHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := WasteFilter{
		RestaurantID: q.Get("restaurant_id"),
		IngredientID: q.Get("ingredient_id"),
		Reason:       WasteReason(q.Get("reason")),
	}
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
			return
		}
		filter.To = t
	}
	records, err := h.service.WasteHistory(r.Context(), filter)
	if err != nil {
		h.logger.Error("waste history", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	type archivedResponse struct {
		wasteRecordResponse
		RestaurantID string `json:"restaurant_id"`
	}
	out := make([]archivedResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, archivedResponse{
			wasteRecordResponse: wasteResponse(rec.WasteRecord),
			RestaurantID:        rec.RestaurantID,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type processDayRequest struct {
	Date string `json:"date" validate:"required"`
}

type dailyReportResponse struct {
	Date                string                `json:"date"`
	ExpiredLots         int                   `json:"expired_lots"`
	TotalWasteValue     string                `json:"total_waste_value"`
	DegradationLosses   map[string]string     `json:"degradation_losses"`
	Waste               []wasteRecordResponse `json:"waste"`
	NearExpiry          []lotResponse         `json:"near_expiry"`
	PromotionCandidates []lotResponse         `json:"promotion_candidates"`
}

func (h *Handler) handleProcessDay(w http.ResponseWriter, r *http.Request) {
	restaurantID := chi.URLParam(r, "restaurantID")
	var req processDayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	today, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
		return
	}

	report, err := h.service.ProcessDay(r.Context(), restaurantID, today)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	losses := make(map[string]string, len(report.DegradationLosses))
	for ingredient, loss := range report.DegradationLosses {
		losses[ingredient] = loss.String()
	}
	waste := make([]wasteRecordResponse, 0, len(report.Waste))
	for _, rec := range report.Waste {
		waste = append(waste, wasteResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, dailyReportResponse{
		Date:                report.Date.Format("2006-01-02"),
		ExpiredLots:         report.ExpiredLots,
		TotalWasteValue:     report.TotalWasteValue.String(),
		DegradationLosses:   losses,
		Waste:               waste,
		NearExpiry:          h.lotListResponse(report.NearExpiry, report.Date, h.service.thresholds),
		PromotionCandidates: h.lotListResponse(report.PromotionCandidates, report.Date, h.service.thresholds),
	})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrLedgerNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown restaurant ledger")
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidUnitCost),
		errors.Is(err, ErrInvalidDates),
		errors.Is(err, ErrInvalidDegradationRate),
		errors.Is(err, ErrInvalidConsumeRequest):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDayAlreadyProcessed):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("stock handler", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
