package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxStore exposes the transactional operations used by the adjustment engine.
type TxStore interface {
	GetStockLevel(ctx context.Context, productID, locationID int64) (StockLevel, error)
	InsertStockLevel(ctx context.Context, level StockLevel) error
	UpdateStockLevel(ctx context.Context, productID, locationID, readVersion, newQuantity int64) (bool, error)
	InsertLogEntry(ctx context.Context, entry LogEntry) (int64, error)
	ProductExists(ctx context.Context, productID int64) (bool, error)
	LocationExists(ctx context.Context, locationID int64) (bool, error)
}

type txStore struct {
	tx pgx.Tx
}

// ErrStockLevelNotFound indicates a missing stock level row.
var ErrStockLevelNotFound = errors.New("ledger: stock level not found")

// WithTx executes the callback inside one database transaction. ReadCommitted
// suffices: the conditional version write is the authority on conflicts, and a
// blocked UPDATE re-evaluates its predicate after the competing writer commits
// instead of surfacing a serialization failure.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if r == nil {
		return errors.New("ledger: repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	wrapper := &txStore{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// StockLevel reads the current row outside any transaction, for refetch after
// a version conflict.
func (r *Repository) StockLevel(ctx context.Context, productID, locationID int64) (StockLevel, error) {
	var level StockLevel
	err := r.pool.QueryRow(ctx, `SELECT product_id, location_id, quantity, version, updated_at
FROM stock_levels WHERE product_id=$1 AND location_id=$2`, productID, locationID).
		Scan(&level.ProductID, &level.LocationID, &level.Quantity, &level.Version, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{ProductID: productID, LocationID: locationID}, ErrStockLevelNotFound
		}
		return StockLevel{}, err
	}
	return level, nil
}

// Quantity returns the on-hand count, zero when no row exists.
func (r *Repository) Quantity(ctx context.Context, productID, locationID int64) (int64, error) {
	level, err := r.StockLevel(ctx, productID, locationID)
	if err != nil {
		if errors.Is(err, ErrStockLevelNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return level.Quantity, nil
}

// TotalQuantity sums the product's on-hand count across all locations.
func (r *Repository) TotalQuantity(ctx context.Context, productID int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_levels WHERE product_id=$1`, productID).
		Scan(&total)
	return total, err
}

// Entries lists adjustment log rows newest first.
func (r *Repository) Entries(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, location_id, user_id, delta, type, reference, occurred_at
FROM adjustment_log
WHERE product_id=$1 AND location_id=$2
ORDER BY occurred_at DESC, id DESC
LIMIT $3 OFFSET $4`, filter.ProductID, filter.LocationID, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []LogEntry{}
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.LocationID, &e.UserID, &e.Delta, &e.Type, &e.Reference, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// DriftRow is one (product, location) pair whose log sum disagrees with the
// denormalized quantity. Used by the reconciliation sweep.
type DriftRow struct {
	ProductID  int64
	LocationID int64
	Quantity   int64
	LogSum     int64
}

// ListDrift reports pairs where SUM(delta) != quantity. An empty result means
// the ledger and its log are reconciled.
func (r *Repository) ListDrift(ctx context.Context, limit int) ([]DriftRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT s.product_id, s.location_id, s.quantity, COALESCE(l.total, 0)
FROM stock_levels s
LEFT JOIN (
    SELECT product_id, location_id, SUM(delta) AS total
    FROM adjustment_log GROUP BY product_id, location_id
) l ON l.product_id = s.product_id AND l.location_id = s.location_id
WHERE s.quantity <> COALESCE(l.total, 0)
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drifts []DriftRow
	for rows.Next() {
		var d DriftRow
		if err := rows.Scan(&d.ProductID, &d.LocationID, &d.Quantity, &d.LogSum); err != nil {
			return nil, err
		}
		drifts = append(drifts, d)
	}
	return drifts, rows.Err()
}

func (s *txStore) GetStockLevel(ctx context.Context, productID, locationID int64) (StockLevel, error) {
	var level StockLevel
	err := s.tx.QueryRow(ctx, `SELECT product_id, location_id, quantity, version, updated_at
FROM stock_levels WHERE product_id=$1 AND location_id=$2`, productID, locationID).
		Scan(&level.ProductID, &level.LocationID, &level.Quantity, &level.Version, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{ProductID: productID, LocationID: locationID}, ErrStockLevelNotFound
		}
		return StockLevel{}, err
	}
	return level, nil
}

func (s *txStore) InsertStockLevel(ctx context.Context, level StockLevel) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_levels (product_id, location_id, quantity, version, updated_at)
VALUES ($1,$2,$3,$4,NOW())`, level.ProductID, level.LocationID, level.Quantity, level.Version)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				// A concurrent creator won the race for the first version.
				return &OptimisticLockError{
					ProductID:      level.ProductID,
					LocationID:     level.LocationID,
					CurrentVersion: 1,
				}
			case "23503":
				return referentialError(pgErr, level.ProductID, level.LocationID)
			}
		}
		return err
	}
	return nil
}

// UpdateStockLevel performs the conditional version-keyed write. It reports
// false when the row moved past readVersion and nothing was updated.
func (s *txStore) UpdateStockLevel(ctx context.Context, productID, locationID, readVersion, newQuantity int64) (bool, error) {
	tag, err := s.tx.Exec(ctx, `UPDATE stock_levels
SET quantity=$1, version=version+1, updated_at=NOW()
WHERE product_id=$2 AND location_id=$3 AND version=$4`, newQuantity, productID, locationID, readVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *txStore) InsertLogEntry(ctx context.Context, entry LogEntry) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO adjustment_log (product_id, location_id, user_id, delta, type, reference, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		entry.ProductID, entry.LocationID, entry.UserID, entry.Delta, string(entry.Type), entry.Reference, entry.OccurredAt).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return 0, referentialError(pgErr, entry.ProductID, entry.LocationID)
		}
		return 0, err
	}
	return id, nil
}

func (s *txStore) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists)
	return exists, err
}

func (s *txStore) LocationExists(ctx context.Context, locationID int64) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM locations WHERE id=$1)`, locationID).Scan(&exists)
	return exists, err
}

func referentialError(pgErr *pgconn.PgError, productID, locationID int64) error {
	if pgErr.ConstraintName == "fk_location" || pgErr.ConstraintName == "stock_levels_location_id_fkey" || pgErr.ConstraintName == "adjustment_log_location_id_fkey" {
		return &NotFoundError{Entity: EntityLocation, ID: locationID}
	}
	return &NotFoundError{Entity: EntityProduct, ID: productID}
}
