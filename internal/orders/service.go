package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/warelane/warelane/internal/ledger"
)

// LedgerPort is the slice of the ledger engine fulfillment needs.
type LedgerPort interface {
	ApplyBatch(ctx context.Context, input ledger.BatchInput) (ledger.BatchResult, error)
}

// Service turns open orders into ledger batch deductions.
type Service struct {
	repo   Repository
	ledger LedgerPort
}

// NewService builds Service.
func NewService(repo Repository, ledgerSvc LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledgerSvc}
}

// Get loads one order by reference.
func (s *Service) Get(ctx context.Context, reference string) (Order, error) {
	if reference == "" {
		return Order{}, errors.New("orders: reference required")
	}
	return s.repo.GetByReference(ctx, reference)
}

// Create registers a new open order.
func (s *Service) Create(ctx context.Context, order Order) (Order, error) {
	if order.Reference == "" {
		return Order{}, errors.New("orders: reference required")
	}
	if len(order.Lines) == 0 {
		return Order{}, ErrNoLines
	}
	for _, line := range order.Lines {
		if line.ProductID == 0 || line.LocationID == 0 || line.Quantity <= 0 {
			return Order{}, fmt.Errorf("orders: invalid line for product %d", line.ProductID)
		}
	}
	return s.repo.Create(ctx, order)
}

// Fulfill deducts every order line from stock as one atomic batch. An order
// ships complete or not at all: a single short line aborts the whole batch
// and the order stays open. The batch failure names the offending line.
func (s *Service) Fulfill(ctx context.Context, userID int64, reference string) (FulfillResult, error) {
	order, err := s.Get(ctx, reference)
	if err != nil {
		return FulfillResult{}, err
	}
	if !order.Status.CanFulfill() {
		return FulfillResult{}, ErrOrderNotOpen
	}
	if len(order.Lines) == 0 {
		return FulfillResult{}, ErrNoLines
	}

	items := make([]ledger.BatchItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, ledger.BatchItem{
			ProductID:  line.ProductID,
			LocationID: line.LocationID,
			Delta:      -line.Quantity,
		})
	}

	result, err := s.ledger.ApplyBatch(ctx, ledger.BatchInput{
		UserID:    userID,
		Type:      ledger.AdjustmentTypeSale,
		Reference: order.Reference,
		Items:     items,
	})
	if err != nil {
		return FulfillResult{}, err
	}

	if err := s.repo.MarkFulfilled(ctx, order.ID, result.TransactionID); err != nil {
		// The deduction committed; surface the bookkeeping failure rather
		// than hide it, the reconciliation sweep will flag nothing because
		// the ledger itself is consistent.
		return FulfillResult{}, fmt.Errorf("orders: mark fulfilled: %w", err)
	}
	order.Status = StatusFulfilled
	return FulfillResult{Order: order, TransactionID: result.TransactionID}, nil
}
