package ledger

import (
	"errors"
	"fmt"
)

// Stable kinds surfaced to calling layers so they can branch without string
// matching.
const (
	KindOptimisticLock    = "OPTIMISTIC_LOCK_ERROR"
	KindInsufficientStock = "INSUFFICIENT_STOCK"
	KindNotFound          = "NOT_FOUND"
)

// ErrInvalidDelta indicates a zero delta on a quantity-bearing type.
var ErrInvalidDelta = errors.New("ledger: delta must be non zero")

// ErrInvalidType indicates an unknown adjustment type.
var ErrInvalidType = errors.New("ledger: unknown adjustment type")

// ErrEmptyBatch indicates a batch with no items.
var ErrEmptyBatch = errors.New("ledger: batch requires at least one item")

// OptimisticLockError reports that a concurrent writer won the race for a
// stock level row. The caller should refetch the latest version and retry;
// the engine itself never retries.
type OptimisticLockError struct {
	ProductID       int64
	LocationID      int64
	CurrentVersion  int64
	ExpectedVersion int64
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("ledger: version conflict on product=%d location=%d: expected %d, current %d",
		e.ProductID, e.LocationID, e.ExpectedVersion, e.CurrentVersion)
}

// Kind returns the stable error kind.
func (e *OptimisticLockError) Kind() string { return KindOptimisticLock }

// InsufficientStockError reports that an adjustment would drive the quantity
// negative. Not retryable without changing the request.
type InsufficientStockError struct {
	ProductID  int64
	LocationID int64
	Current    int64
	Requested  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock on product=%d location=%d: have %d, requested %d",
		e.ProductID, e.LocationID, e.Current, e.Requested)
}

// Kind returns the stable error kind.
func (e *InsufficientStockError) Kind() string { return KindInsufficientStock }

// Shortfall is the missing quantity.
func (e *InsufficientStockError) Shortfall() int64 { return e.Requested - e.Current }

// NotFoundEntity names the referential entity a NotFoundError is about.
type NotFoundEntity string

const (
	// EntityProduct is a missing product reference.
	EntityProduct NotFoundEntity = "product"
	// EntityLocation is a missing location reference.
	EntityLocation NotFoundEntity = "location"
)

// NotFoundError reports a referential integrity failure; fatal for the call.
type NotFoundError struct {
	Entity NotFoundEntity
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ledger: %s %d not found", e.Entity, e.ID)
}

// Kind returns the stable error kind.
func (e *NotFoundError) Kind() string { return KindNotFound }

// BatchItemError wraps a per-item failure with the offending item's identity
// so callers can report which line aborted the batch.
type BatchItemError struct {
	Index      int
	ProductID  int64
	LocationID int64
	Err        error
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("ledger: batch item %d (product=%d location=%d): %v",
		e.Index, e.ProductID, e.LocationID, e.Err)
}

func (e *BatchItemError) Unwrap() error { return e.Err }

// Kinder is implemented by ledger errors that carry a stable kind.
type Kinder interface {
	Kind() string
}

// ErrorKind extracts the stable kind from err, unwrapping batch item wrappers.
// It returns an empty string for errors outside the ledger taxonomy.
func ErrorKind(err error) string {
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return ""
}
