package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const turnoverWindowDays = 90

// ERPRepository reads stock, sales and supplier lead times from the ERP
// tables. It implements the stock levels, sales history, lead time and
// turnover ports.
type ERPRepository struct {
	db *DB
}

func NewERPRepository(db *DB) *ERPRepository {
	return &ERPRepository{db: db}
}

type stockRow struct {
	SKU      string          `db:"sku"`
	Category sql.NullString  `db:"category"`
	Stock    float64         `db:"stock"`
	UnitCost decimal.Decimal `db:"unit_cost"`
}

func (r stockRow) toDomain() domain.StockSnapshot {
	qty := r.Stock
	if qty < 0 {
		qty = 0
	}
	return domain.StockSnapshot{
		SKU:            domain.SKU(r.SKU),
		Category:       r.Category.String,
		QuantityOnHand: qty,
		UnitCost:       r.UnitCost,
	}
}

// GetStockLevels sums stock across stores on the latest snapshot date.
func (r *ERPRepository) GetStockLevels(ctx context.Context) ([]domain.StockSnapshot, error) {
	query := `
		WITH latest AS (
			SELECT MAX(time) AS time FROM daily_stock_data
		)
		SELECT
			d.sku,
			MAX(b.name) AS category,
			SUM(d.stock)::float AS stock,
			COALESCE(MAX(p.hpp), 0)::numeric AS unit_cost
		FROM daily_stock_data d
		JOIN latest l ON d.time = l.time
		LEFT JOIN products p ON p.id = d.product_id
		LEFT JOIN brands b ON b.id = d.brand_id
		GROUP BY d.sku
		ORDER BY d.sku
	`

	var rows []stockRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to get stock levels: %w", err)
	}

	out := make([]domain.StockSnapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type salesRow struct {
	SKU       string    `db:"sku"`
	Bucket    time.Time `db:"bucket"`
	UnitsSold float64   `db:"units_sold"`
}

// salesBucket maps a granularity to a date_trunc field.
func salesBucket(g domain.Granularity) string {
	if g == domain.GranularityWeekly {
		return "week"
	}
	return "day"
}

// GetSalesHistory returns units sold per SKU and bucket, oldest first.
func (r *ERPRepository) GetSalesHistory(ctx context.Context, periodDays int, granularity domain.Granularity) ([]domain.SalesHistoryPoint, error) {
	if periodDays <= 0 {
		return nil, domain.NewInvalidParameter("periodDays", periodDays, "must be > 0")
	}

	query := `
		SELECT
			sku,
			date_trunc($1, time) AS bucket,
			SUM(daily_sales)::float AS units_sold
		FROM daily_stock_data
		WHERE time >= NOW() - make_interval(days => $2)
		GROUP BY sku, bucket
		ORDER BY sku, bucket
	`

	var rows []salesRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, salesBucket(granularity), periodDays); err != nil {
		return nil, fmt.Errorf("failed to get sales history: %w", err)
	}

	out := make([]domain.SalesHistoryPoint, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.SalesHistoryPoint{
			SKU:       domain.SKU(row.SKU),
			Date:      row.Bucket,
			UnitsSold: row.UnitsSold,
		})
	}
	return out, nil
}

// GetAverageLeadTime averages sent -> arrived over the latest state of every
// received purchase order, rounded up to whole days.
func (r *ERPRepository) GetAverageLeadTime(ctx context.Context) (int, error) {
	query := `
		WITH valid_pos AS (
			SELECT
				po_number,
				po_sent_at,
				po_arrived_at,
				ROW_NUMBER() OVER (PARTITION BY po_number, sku ORDER BY time DESC) AS rn
			FROM po_snapshots
			WHERE po_number <> ''
			AND po_sent_at > '2000-01-01'
			AND po_arrived_at > '2000-01-01'
		),
		latest_pos AS (
			SELECT DISTINCT ON (po_number)
				po_number,
				po_sent_at,
				po_arrived_at
			FROM valid_pos
			WHERE rn = 1
		)
		SELECT AVG(EXTRACT(EPOCH FROM (po_arrived_at - po_sent_at))/86400)::float
		FROM latest_pos
	`

	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to get average lead time: %w", err)
	}
	return leadTimeDays(avg)
}

func leadTimeDays(avg sql.NullFloat64) (int, error) {
	if !avg.Valid {
		return 0, errors.New("no received purchase orders to derive a lead time from")
	}
	return int(math.Ceil(avg.Float64)), nil
}

type turnoverRow struct {
	SKU          string  `db:"sku"`
	MonthlyUnits float64 `db:"monthly_units"`
}

// GetTurnoverRates returns average units sold per 30 days over the last
// 90 days, summed across stores.
func (r *ERPRepository) GetTurnoverRates(ctx context.Context) (map[domain.SKU]float64, error) {
	query := `
		SELECT
			sku,
			(SUM(daily_sales) / GREATEST(COUNT(DISTINCT time::date), 1) * 30)::float AS monthly_units
		FROM daily_stock_data
		WHERE time >= NOW() - make_interval(days => $1)
		GROUP BY sku
	`

	var rows []turnoverRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, turnoverWindowDays); err != nil {
		return nil, fmt.Errorf("failed to get turnover rates: %w", err)
	}

	out := make(map[domain.SKU]float64, len(rows))
	for _, row := range rows {
		out[domain.SKU(row.SKU)] = row.MonthlyUnits
	}
	return out, nil
}
