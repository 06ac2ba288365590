package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warelane/warelane/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	StockLevel(ctx context.Context, productID, locationID int64) (StockLevel, error)
	Quantity(ctx context.Context, productID, locationID int64) (int64, error)
	TotalQuantity(ctx context.Context, productID int64) (int64, error)
	Entries(ctx context.Context, filter LogFilter) ([]LogEntry, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives engine counters. Implementations must tolerate being
// called from concurrent adjustments.
type MetricsPort interface {
	AdjustmentCommitted(kind AdjustmentType)
	VersionConflict()
	InsufficientStock()
	BatchCommitted(items int)
	BatchAborted()
}

// InvalidatorPort is notified after a stock movement commits so read-side
// caches can drop stale aggregates. The write path never reads from it.
type InvalidatorPort interface {
	Invalidate(ctx context.Context) error
}

// Service is the single adjustment service and the batch transaction service
// over the stock ledger store and adjustment log.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	metrics     MetricsPort
	idempotency *shared.IdempotencyStore
	invalidator InvalidatorPort
}

// NewService builds Service. audit, metrics, idem and invalidator may be nil.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort, idem *shared.IdempotencyStore, invalidator InvalidatorPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, idempotency: idem, invalidator: invalidator}
}

// Adjust applies one delta to one (product, location) pair. The row update and
// the log insert commit together or not at all. A supplied ExpectedVersion
// that no longer matches fails with OptimisticLockError; the service performs
// zero automatic retries so genuine conflict signals reach the caller.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (AdjustmentResult, error) {
	var result AdjustmentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		entry, level, err := s.applyItem(ctx, tx, input, time.Now().UTC())
		if err != nil {
			return err
		}
		result = AdjustmentResult{Entry: entry, NewQuantity: level.Quantity, NewVersion: level.Version}
		return nil
	})
	if err != nil {
		s.observeFailure(err)
		return AdjustmentResult{}, err
	}
	if s.metrics != nil {
		s.metrics.AdjustmentCommitted(input.Type)
	}
	s.recordAudit(ctx, input.UserID, "ledger:adjust", result.Entry, map[string]any{
		"delta":        input.Delta,
		"type":         string(input.Type),
		"new_quantity": result.NewQuantity,
		"new_version":  result.NewVersion,
	})
	s.bumpCaches(ctx)
	return result, nil
}

// StockLevelFor reads the current level, zero-valued when no row exists.
func (s *Service) StockLevelFor(ctx context.Context, productID, locationID int64) (StockLevel, error) {
	level, err := s.repo.StockLevel(ctx, productID, locationID)
	if err != nil {
		if errors.Is(err, ErrStockLevelNotFound) {
			return StockLevel{ProductID: productID, LocationID: locationID}, nil
		}
		return StockLevel{}, err
	}
	return level, nil
}

// TotalQuantity sums on-hand stock for a product across all locations.
func (s *Service) TotalQuantity(ctx context.Context, productID int64) (int64, error) {
	return s.repo.TotalQuantity(ctx, productID)
}

// Entries lists log entries for a pair, newest first.
func (s *Service) Entries(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	if filter.ProductID == 0 || filter.LocationID == 0 {
		return nil, errors.New("ledger: product and location required")
	}
	return s.repo.Entries(ctx, filter)
}

// applyItem runs the per-item adjustment core inside the caller's transaction.
// Both Adjust and ApplyBatch compose it; the transaction boundary belongs to
// the caller.
func (s *Service) applyItem(ctx context.Context, tx TxStore, input AdjustmentInput, now time.Time) (LogEntry, StockLevel, error) {
	if input.ProductID == 0 || input.LocationID == 0 {
		return LogEntry{}, StockLevel{}, errors.New("ledger: product and location required")
	}
	if !input.Type.IsValid() {
		return LogEntry{}, StockLevel{}, ErrInvalidType
	}
	if input.Delta == 0 && input.Type != AdjustmentTypeAudit {
		return LogEntry{}, StockLevel{}, ErrInvalidDelta
	}

	level, err := tx.GetStockLevel(ctx, input.ProductID, input.LocationID)
	switch {
	case errors.Is(err, ErrStockLevelNotFound):
		level, err = s.createLevel(ctx, tx, input)
		if err != nil {
			return LogEntry{}, StockLevel{}, err
		}
	case err != nil:
		return LogEntry{}, StockLevel{}, err
	default:
		level, err = s.updateLevel(ctx, tx, input, level)
		if err != nil {
			return LogEntry{}, StockLevel{}, err
		}
	}

	entry := LogEntry{
		ProductID:  input.ProductID,
		LocationID: input.LocationID,
		UserID:     input.UserID,
		Delta:      input.Delta,
		Type:       input.Type,
		Reference:  input.Reference,
		OccurredAt: now,
	}
	id, err := tx.InsertLogEntry(ctx, entry)
	if err != nil {
		return LogEntry{}, StockLevel{}, err
	}
	entry.ID = id
	return entry, level, nil
}

// createLevel handles the lazy first-stock-in path for a missing row.
func (s *Service) createLevel(ctx context.Context, tx TxStore, input AdjustmentInput) (StockLevel, error) {
	if input.Delta < 0 {
		return StockLevel{}, &InsufficientStockError{
			ProductID:  input.ProductID,
			LocationID: input.LocationID,
			Current:    0,
			Requested:  -input.Delta,
		}
	}
	if input.ExpectedVersion != nil {
		// The caller saw a row that no longer exists.
		return StockLevel{}, &OptimisticLockError{
			ProductID:       input.ProductID,
			LocationID:      input.LocationID,
			CurrentVersion:  0,
			ExpectedVersion: *input.ExpectedVersion,
		}
	}
	if ok, err := tx.ProductExists(ctx, input.ProductID); err != nil {
		return StockLevel{}, err
	} else if !ok {
		return StockLevel{}, &NotFoundError{Entity: EntityProduct, ID: input.ProductID}
	}
	if ok, err := tx.LocationExists(ctx, input.LocationID); err != nil {
		return StockLevel{}, err
	} else if !ok {
		return StockLevel{}, &NotFoundError{Entity: EntityLocation, ID: input.LocationID}
	}
	level := StockLevel{
		ProductID:  input.ProductID,
		LocationID: input.LocationID,
		Quantity:   input.Delta,
		Version:    1,
	}
	if err := tx.InsertStockLevel(ctx, level); err != nil {
		return StockLevel{}, err
	}
	return level, nil
}

// updateLevel mutates an existing row through the conditional version write.
func (s *Service) updateLevel(ctx context.Context, tx TxStore, input AdjustmentInput, level StockLevel) (StockLevel, error) {
	if input.ExpectedVersion != nil && level.Version != *input.ExpectedVersion {
		return StockLevel{}, &OptimisticLockError{
			ProductID:       input.ProductID,
			LocationID:      input.LocationID,
			CurrentVersion:  level.Version,
			ExpectedVersion: *input.ExpectedVersion,
		}
	}
	newQuantity := level.Quantity + input.Delta
	if newQuantity < 0 {
		return StockLevel{}, &InsufficientStockError{
			ProductID:  input.ProductID,
			LocationID: input.LocationID,
			Current:    level.Quantity,
			Requested:  -input.Delta,
		}
	}
	matched, err := tx.UpdateStockLevel(ctx, input.ProductID, input.LocationID, level.Version, newQuantity)
	if err != nil {
		return StockLevel{}, err
	}
	if !matched {
		// Lost the race between our read and the conditional write.
		current, err := tx.GetStockLevel(ctx, input.ProductID, input.LocationID)
		if err != nil && !errors.Is(err, ErrStockLevelNotFound) {
			return StockLevel{}, err
		}
		return StockLevel{}, &OptimisticLockError{
			ProductID:       input.ProductID,
			LocationID:      input.LocationID,
			CurrentVersion:  current.Version,
			ExpectedVersion: level.Version,
		}
	}
	level.Quantity = newQuantity
	level.Version++
	return level, nil
}

// bumpCaches is best effort: stale dashboards age out via the cache TTL, so
// a failed bump never fails the committed write.
func (s *Service) bumpCaches(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	_ = s.invalidator.Invalidate(ctx)
}

func (s *Service) observeFailure(err error) {
	if s.metrics == nil {
		return
	}
	var lockErr *OptimisticLockError
	var stockErr *InsufficientStockError
	switch {
	case errors.As(err, &lockErr):
		s.metrics.VersionConflict()
	case errors.As(err, &stockErr):
		s.metrics.InsufficientStock()
	}
}

func (s *Service) recordAudit(ctx context.Context, userID int64, action string, entry LogEntry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   action,
		Entity:   "adjustment_log",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
	})
}
