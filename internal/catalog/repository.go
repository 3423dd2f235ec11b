package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads the ingredient catalog from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

// Insert adds an ingredient to the catalog.
func (r *Repository) Insert(ctx context.Context, ing Ingredient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO catalog_ingredients (id, name, unit, shelf_life_days, degradation_rate)
		VALUES ($1, $2, $3, $4, $5)`,
		ing.ID, ing.Name, ing.Unit, ing.ShelfLifeDays, ing.DegradationRate.String())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateIngredient
		}
		return fmt.Errorf("catalog: insert ingredient: %w", err)
	}
	return nil
}

// Get returns one ingredient by id.
func (r *Repository) Get(ctx context.Context, id string) (Ingredient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, unit, shelf_life_days, degradation_rate::text
		FROM catalog_ingredients WHERE id = $1`, id)
	ing, err := scanIngredient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ingredient{}, ErrIngredientNotFound
		}
		return Ingredient{}, fmt.Errorf("catalog: get ingredient: %w", err)
	}
	return ing, nil
}

// List returns the full catalog ordered by id.
func (r *Repository) List(ctx context.Context) ([]Ingredient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, unit, shelf_life_days, degradation_rate::text
		FROM catalog_ingredients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list ingredients: %w", err)
	}
	defer rows.Close()

	var out []Ingredient
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan ingredient: %w", err)
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

// DegradationRate resolves the default degradation rate for an ingredient. The
// second return is false when the catalog has no entry, which the caller treats
// as "no degradation" rather than an error.
func (r *Repository) DegradationRate(ctx context.Context, id string) (decimal.Decimal, bool, error) {
	ing, err := r.Get(ctx, id)
	if errors.Is(err, ErrIngredientNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return ing.DegradationRate, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIngredient(row rowScanner) (Ingredient, error) {
	var (
		ing  Ingredient
		rate string
	)
	if err := row.Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.ShelfLifeDays, &rate); err != nil {
		return Ingredient{}, err
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return Ingredient{}, err
	}
	ing.DegradationRate = parsed
	return ing, nil
}
