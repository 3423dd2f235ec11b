package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/freshledger/freshledger/internal/platform/httpx"
)

// Store abstracts catalog persistence for the handler.
type Store interface {
	Insert(ctx context.Context, ing Ingredient) error
	Get(ctx context.Context, id string) (Ingredient, error)
	List(ctx context.Context) ([]Ingredient, error)
}

// Handler wires HTTP endpoints for the ingredient catalog.
type Handler struct {
	logger   *slog.Logger
	store    Store
	validate *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	return &Handler{logger: logger, store: store, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ingredients", h.listIngredients)
	r.Get("/ingredients/{ingredientID}", h.getIngredient)
	r.Post("/ingredients", h.createIngredient)
}

type ingredientPayload struct {
	ID              string `json:"id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Unit            string `json:"unit" validate:"required"`
	ShelfLifeDays   int    `json:"shelf_life_days" validate:"gte=0"`
	DegradationRate string `json:"degradation_rate" validate:"omitempty"`
}

type ingredientResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Unit            string `json:"unit"`
	ShelfLifeDays   int    `json:"shelf_life_days"`
	DegradationRate string `json:"degradation_rate"`
}

func toResponse(ing Ingredient) ingredientResponse {
	return ingredientResponse{
		ID:              ing.ID,
		Name:            ing.Name,
		Unit:            ing.Unit,
		ShelfLifeDays:   ing.ShelfLifeDays,
		DegradationRate: ing.DegradationRate.String(),
	}
}

func (h *Handler) listIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list ingredients", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]ingredientResponse, 0, len(ingredients))
	for _, ing := range ingredients {
		out = append(out, toResponse(ing))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getIngredient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ingredientID")
	ing, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrIngredientNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown ingredient")
			return
		}
		h.logger.Error("get ingredient", slog.Any("error", err), slog.String("ingredient", id))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(ing))
}

func (h *Handler) createIngredient(w http.ResponseWriter, r *http.Request) {
	var payload ingredientPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	rate := decimal.Zero
	if payload.DegradationRate != "" {
		parsed, err := decimal.NewFromString(payload.DegradationRate)
		if err != nil || parsed.IsNegative() || parsed.GreaterThan(decimal.NewFromInt(1)) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "degradation_rate must be a decimal between 0 and 1")
			return
		}
		rate = parsed
	}

	ing := Ingredient{
		ID:              payload.ID,
		Name:            payload.Name,
		Unit:            payload.Unit,
		ShelfLifeDays:   payload.ShelfLifeDays,
		DegradationRate: rate,
	}
	if err := h.store.Insert(r.Context(), ing); err != nil {
		if errors.Is(err, ErrDuplicateIngredient) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "ingredient already exists")
			return
		}
		h.logger.Error("create ingredient", slog.Any("error", err), slog.String("ingredient", ing.ID))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(ing))
}
