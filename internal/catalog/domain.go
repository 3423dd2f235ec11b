// Package catalog exposes the read-only ingredient reference data the stock
// ledger consumes: per-ingredient shelf life and degradation defaults. The
// ledger itself never validates ingredient identifiers against it.
package catalog

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Ingredient is one entry of the reference catalog.
type Ingredient struct {
	ID              string
	Name            string
	Unit            string
	ShelfLifeDays   int
	DegradationRate decimal.Decimal
}

// Catalog errors.
var (
	ErrIngredientNotFound  = errors.New("catalog: ingredient not found")
	ErrDuplicateIngredient = errors.New("catalog: ingredient already exists")
)
