package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads and updates sales orders.
type Repository interface {
	GetByReference(ctx context.Context, reference string) (Order, error)
	MarkFulfilled(ctx context.Context, id int64, transactionID string) error
	Create(ctx context.Context, order Order) (Order, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetByReference(ctx context.Context, reference string) (Order, error) {
	var order Order
	err := r.db.QueryRow(ctx, `SELECT id, reference, status, created_at FROM sales_orders WHERE reference=$1`, reference).
		Scan(&order.ID, &order.Reference, &order.Status, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}

	rows, err := r.db.Query(ctx, `SELECT product_id, location_id, quantity FROM sales_order_lines WHERE order_id=$1 ORDER BY id ASC`, order.ID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line OrderLine
		if err := rows.Scan(&line.ProductID, &line.LocationID, &line.Quantity); err != nil {
			return Order{}, err
		}
		order.Lines = append(order.Lines, line)
	}
	return order, rows.Err()
}

func (r *repository) MarkFulfilled(ctx context.Context, id int64, transactionID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_orders SET status=$1, ledger_tx_id=$2, fulfilled_at=NOW()
WHERE id=$3 AND status=$4`, string(StatusFulfilled), transactionID, id, string(StatusOpen))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotOpen
	}
	return nil
}

func (r *repository) Create(ctx context.Context, order Order) (Order, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `INSERT INTO sales_orders (reference, status, created_at)
VALUES ($1,$2,NOW()) RETURNING id, created_at`, order.Reference, string(StatusOpen)).
		Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return Order{}, err
	}
	order.Status = StatusOpen

	for _, line := range order.Lines {
		if _, err := tx.Exec(ctx, `INSERT INTO sales_order_lines (order_id, product_id, location_id, quantity)
VALUES ($1,$2,$3,$4)`, order.ID, line.ProductID, line.LocationID, line.Quantity); err != nil {
			return Order{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return order, nil
}
