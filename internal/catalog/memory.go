package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory is an in-memory catalog used by tests and standalone runs without
// PostgreSQL.
type Memory struct {
	mu          sync.RWMutex
	ingredients map[string]Ingredient
}

// NewMemory builds a Memory catalog from the given ingredients.
func NewMemory(ingredients ...Ingredient) *Memory {
	m := &Memory{ingredients: make(map[string]Ingredient, len(ingredients))}
	for _, ing := range ingredients {
		m.ingredients[ing.ID] = ing
	}
	return m
}

// Insert adds an ingredient.
func (m *Memory) Insert(_ context.Context, ing Ingredient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ingredients[ing.ID]; ok {
		return ErrDuplicateIngredient
	}
	m.ingredients[ing.ID] = ing
	return nil
}

// Get returns one ingredient by id.
func (m *Memory) Get(_ context.Context, id string) (Ingredient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ing, ok := m.ingredients[id]
	if !ok {
		return Ingredient{}, ErrIngredientNotFound
	}
	return ing, nil
}

// List returns the catalog ordered by id.
func (m *Memory) List(_ context.Context) ([]Ingredient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Ingredient, 0, len(m.ingredients))
	for _, ing := range m.ingredients {
		out = append(out, ing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DegradationRate resolves the default degradation rate for an ingredient.
func (m *Memory) DegradationRate(ctx context.Context, id string) (decimal.Decimal, bool, error) {
	ing, err := m.Get(ctx, id)
	if err != nil {
		return decimal.Zero, false, nil
	}
	return ing.DegradationRate, true, nil
}
