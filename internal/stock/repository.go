package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/freshledger/freshledger/internal/platform/db"
)

// Repository mirrors the in-memory waste audit trail into PostgreSQL so
// external reporting can read disposal history after a session ends. The table
// is insert-only; no update or delete path exists.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ArchivedWasteRecord is a waste record as read back from the archive.
type ArchivedWasteRecord struct {
	WasteRecord
	RestaurantID string
	RecordedAt   time.Time
}

// WasteFilter narrows archive listings.
type WasteFilter struct {
	RestaurantID string
	IngredientID string
	Reason       WasteReason
	From         time.Time
	To           time.Time
	Limit        int
}

// ArchiveWaste appends the waste records of one daily run in a single
// transaction, so a crash mid-batch never leaves a partial audit trail.
func (r *Repository) ArchiveWaste(ctx context.Context, restaurantID string, records []WasteRecord) error {
	if len(records) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, rec := range records {
			_, err := tx.Exec(ctx, `
				INSERT INTO stock_waste_records
					(id, restaurant_id, lot_id, lot_number, ingredient_id, quantity_lost, unit_cost_ht, reason, event_date, recorded_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
				rec.ID, restaurantID, rec.LotID, rec.LotNumber, rec.IngredientID,
				rec.QuantityLost.String(), rec.UnitCostHT.String(), string(rec.Reason),
				pgtype.Date{Time: rec.EventDate, Valid: true})
			if err != nil {
				return fmt.Errorf("stock: archive waste record: %w", err)
			}
		}
		return nil
	})
}

// ListWaste returns archived waste records matching the filter, oldest first.
func (r *Repository) ListWaste(ctx context.Context, filter WasteFilter) ([]ArchivedWasteRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, restaurant_id, lot_id, lot_number, ingredient_id,
		       quantity_lost::text, unit_cost_ht::text, reason, event_date, recorded_at
		FROM stock_waste_records
		WHERE ($1 = '' OR restaurant_id = $1)
		  AND ($2 = '' OR ingredient_id = $2)
		  AND ($3 = '' OR reason = $3)
		  AND ($4::date IS NULL OR event_date >= $4)
		  AND ($5::date IS NULL OR event_date <= $5)
		ORDER BY recorded_at
		LIMIT $6`,
		filter.RestaurantID, filter.IngredientID, string(filter.Reason),
		pgtype.Date{Time: filter.From, Valid: !filter.From.IsZero()},
		pgtype.Date{Time: filter.To, Valid: !filter.To.IsZero()},
		limit)
	if err != nil {
		return nil, fmt.Errorf("stock: list waste records: %w", err)
	}
	defer rows.Close()

	var out []ArchivedWasteRecord
	for rows.Next() {
		var (
			rec       ArchivedWasteRecord
			lost      string
			cost      string
			reason    string
			eventDate pgtype.Date
		)
		if err := rows.Scan(&rec.ID, &rec.RestaurantID, &rec.LotID, &rec.LotNumber, &rec.IngredientID,
			&lost, &cost, &reason, &eventDate, &rec.RecordedAt); err != nil {
			return nil, fmt.Errorf("stock: scan waste record: %w", err)
		}
		if rec.QuantityLost, err = decimal.NewFromString(lost); err != nil {
			return nil, fmt.Errorf("stock: parse quantity lost: %w", err)
		}
		if rec.UnitCostHT, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("stock: parse unit cost: %w", err)
		}
		rec.Reason = WasteReason(reason)
		rec.EventDate = eventDate.Time
		out = append(out, rec)
	}
	return out, rows.Err()
}
