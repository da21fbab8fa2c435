package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

// PurchaseOrderRepository writes draft purchase orders and seasonal
// pre-orders for buyers to review.
type PurchaseOrderRepository struct {
	db *DB
}

func NewPurchaseOrderRepository(db *DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

func (r *PurchaseOrderRepository) CreateDraft(ctx context.Context, items []domain.StockSnapshot) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO purchase_order_drafts (sku, quantity_on_hand, unit_cost, status, created_at)
			VALUES ($1, $2, $3, 'draft', NOW())
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, string(item.SKU), item.QuantityOnHand, item.UnitCost); err != nil {
				return fmt.Errorf("failed to insert draft for %s: %w", item.SKU, err)
			}
		}
		return nil
	})
}

func (r *PurchaseOrderRepository) CreatePreOrders(ctx context.Context, requests []domain.PreOrderRequest) error {
	if len(requests) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO seasonal_pre_orders (
				run_id, event_name, sku, category, quantity, target_delivery_date, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, NOW())
			ON CONFLICT (run_id, sku)
			DO UPDATE SET
				quantity = EXCLUDED.quantity,
				target_delivery_date = EXCLUDED.target_delivery_date
		`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, req := range requests {
			_, err := stmt.ExecContext(ctx,
				req.RunID,
				req.EventName,
				string(req.SKU),
				req.Category,
				req.Quantity,
				req.TargetDeliveryDate,
			)
			if err != nil {
				return fmt.Errorf("failed to insert pre-order for %s: %w", req.SKU, err)
			}
		}
		return nil
	})
}
