package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApplyBatch applies every item as one atomic unit: all stock level rows
// update and all log entries persist in a single commit, or the first failing
// item aborts the whole batch with zero visible side effects. Atomicity is
// batch-wide, never per-item.
func (s *Service) ApplyBatch(ctx context.Context, input BatchInput) (BatchResult, error) {
	if len(input.Items) == 0 {
		return BatchResult{}, ErrEmptyBatch
	}
	if !input.Type.IsValid() {
		return BatchResult{}, ErrInvalidType
	}

	idemKey := ""
	if s.idempotency != nil && input.Reference != "" {
		idemKey = fmt.Sprintf("%s:%s", input.Type, input.Reference)
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "ledger"); err != nil {
			return BatchResult{}, err
		}
	}

	txID := uuid.NewString()
	now := time.Now().UTC()
	outcomes := make([]ItemOutcome, 0, len(input.Items))

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		for i, item := range input.Items {
			entry, _, err := s.applyItem(ctx, tx, AdjustmentInput{
				UserID:          input.UserID,
				ProductID:       item.ProductID,
				LocationID:      item.LocationID,
				Delta:           item.Delta,
				Type:            input.Type,
				Reference:       input.Reference,
				ExpectedVersion: item.ExpectedVersion,
			}, now)
			if err != nil {
				outcomes = append(outcomes, ItemOutcome{Status: ItemFailed, Item: item, Err: err})
				return &BatchItemError{
					Index:      i,
					ProductID:  item.ProductID,
					LocationID: item.LocationID,
					Err:        err,
				}
			}
			outcomes = append(outcomes, ItemOutcome{Status: ItemApplied, Item: item, Entry: entry})
		}
		return nil
	})
	if err != nil {
		if idemKey != "" {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		s.observeFailure(err)
		if s.metrics != nil {
			s.metrics.BatchAborted()
		}
		return BatchResult{}, err
	}

	entries := make([]LogEntry, 0, len(outcomes))
	for _, outcome := range outcomes {
		entries = append(entries, outcome.Entry)
	}
	if s.metrics != nil {
		s.metrics.BatchCommitted(len(entries))
	}
	if len(entries) > 0 {
		s.recordAudit(ctx, input.UserID, "ledger:batch", entries[0], map[string]any{
			"transaction_id": txID,
			"reference":      input.Reference,
			"type":           string(input.Type),
			"items":          len(entries),
		})
	}
	s.bumpCaches(ctx)
	return BatchResult{TransactionID: txID, Entries: entries}, nil
}
