package overview

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Summary aggregates the headline figures for the dashboard.
type Summary struct {
	Products      int64 `json:"products"`
	Locations     int64 `json:"locations"`
	TotalOnHand   int64 `json:"total_on_hand"`
	MovementsLast int64 `json:"movements_last_24h"`
	OpenOrders    int64 `json:"open_orders"`
}

// Mover is a product ranked by absolute movement volume inside a window.
type Mover struct {
	ProductID int64  `json:"product_id"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Moved     int64  `json:"moved"`
}

// Repository runs the aggregate queries behind the dashboard.
type Repository interface {
	Summary(ctx context.Context) (Summary, error)
	TopMovers(ctx context.Context, locationID int64, since time.Time, limit int) ([]Mover, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.db.QueryRow(ctx, `SELECT
	(SELECT COUNT(*) FROM products WHERE active),
	(SELECT COUNT(*) FROM locations),
	(SELECT COALESCE(SUM(quantity),0) FROM stock_levels),
	(SELECT COUNT(*) FROM adjustment_log WHERE occurred_at >= NOW() - INTERVAL '24 hours'),
	(SELECT COUNT(*) FROM sales_orders WHERE status='OPEN')`).
		Scan(&s.Products, &s.Locations, &s.TotalOnHand, &s.MovementsLast, &s.OpenOrders)
	return s, err
}

func (r *repository) TopMovers(ctx context.Context, locationID int64, since time.Time, limit int) ([]Mover, error) {
	rows, err := r.db.Query(ctx, `SELECT l.product_id, p.sku, p.name, SUM(ABS(l.delta)) AS moved
FROM adjustment_log l
JOIN products p ON p.id = l.product_id
WHERE l.occurred_at >= $1 AND ($2 = 0 OR l.location_id = $2)
GROUP BY l.product_id, p.sku, p.name
ORDER BY moved DESC, l.product_id ASC
LIMIT $3`, since, locationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movers []Mover
	for rows.Next() {
		var m Mover
		if err := rows.Scan(&m.ProductID, &m.SKU, &m.Name, &m.Moved); err != nil {
			return nil, err
		}
		movers = append(movers, m)
	}
	return movers, rows.Err()
}
