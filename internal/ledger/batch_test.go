package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedLevels(t *testing.T, svc *Service, levels map[[2]int64]int64) {
	t.Helper()
	ctx := context.Background()
	for pair, qty := range levels {
		_, err := svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: pair[0], LocationID: pair[1], Delta: qty, Type: AdjustmentTypeRestock})
		require.NoError(t, err)
	}
}

func TestApplyBatchCommitsAllItems(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	seedLevels(t, svc, map[[2]int64]int64{{1, 1}: 10, {2, 1}: 5})

	result, err := svc.ApplyBatch(ctx, BatchInput{
		UserID:    3,
		Type:      AdjustmentTypeSale,
		Reference: "SO-1001",
		Items: []BatchItem{
			{ProductID: 1, LocationID: 1, Delta: -2},
			{ProductID: 2, LocationID: 1, Delta: -1},
			{ProductID: 1, LocationID: 1, Delta: -3},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.TransactionID)
	require.Len(t, result.Entries, 3)
	for _, entry := range result.Entries {
		require.Equal(t, "SO-1001", entry.Reference)
		require.Equal(t, AdjustmentTypeSale, entry.Type)
	}

	level, err := svc.StockLevelFor(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), level.Quantity)
	// Two items touched the same pair; version moved twice.
	require.Equal(t, int64(3), level.Version)

	level, err = svc.StockLevelFor(ctx, 2, 1)
	require.NoError(t, err)
	require.Equal(t, int64(4), level.Quantity)
}

func TestApplyBatchAbortsEntirelyOnInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	seedLevels(t, svc, map[[2]int64]int64{{1, 1}: 10, {2, 1}: 5, {7, 1}: 8})

	_, err := svc.ApplyBatch(ctx, BatchInput{
		UserID: 3,
		Type:   AdjustmentTypeSale,
		Items: []BatchItem{
			{ProductID: 1, LocationID: 1, Delta: -2},
			{ProductID: 2, LocationID: 1, Delta: -1000},
			{ProductID: 7, LocationID: 1, Delta: -1},
		},
	})
	var batchErr *BatchItemError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, 1, batchErr.Index)
	require.Equal(t, int64(2), batchErr.ProductID)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(5), stockErr.Current)
	require.Equal(t, KindInsufficientStock, ErrorKind(err))

	// Earlier and later items are untouched, as if the batch never ran.
	for pair, want := range map[[2]int64]int64{{1, 1}: 10, {2, 1}: 5, {7, 1}: 8} {
		level, err := svc.StockLevelFor(ctx, pair[0], pair[1])
		require.NoError(t, err)
		require.Equal(t, want, level.Quantity)
		require.Equal(t, int64(1), level.Version)
	}
	entries, err := svc.Entries(ctx, LogFilter{ProductID: 1, LocationID: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1) // only the seed restock
}

func TestApplyBatchAbortsOnVersionConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	seedLevels(t, svc, map[[2]int64]int64{{1, 1}: 10, {2, 1}: 5})

	_, err := svc.ApplyBatch(ctx, BatchInput{
		UserID: 3,
		Type:   AdjustmentTypeSale,
		Items: []BatchItem{
			{ProductID: 1, LocationID: 1, Delta: -1},
			{ProductID: 2, LocationID: 1, Delta: -1, ExpectedVersion: int64Ptr(7)},
		},
	})
	var batchErr *BatchItemError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, 1, batchErr.Index)
	var lockErr *OptimisticLockError
	require.ErrorAs(t, err, &lockErr)
	require.Equal(t, int64(1), lockErr.CurrentVersion)
	require.Equal(t, int64(7), lockErr.ExpectedVersion)

	level, err := svc.StockLevelFor(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), level.Quantity)
}

func TestApplyBatchAbortsOnMissingProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	seedLevels(t, svc, map[[2]int64]int64{{1, 1}: 10})

	_, err := svc.ApplyBatch(ctx, BatchInput{
		UserID: 3,
		Type:   AdjustmentTypeRestock,
		Items: []BatchItem{
			{ProductID: 1, LocationID: 1, Delta: 5},
			{ProductID: 404, LocationID: 1, Delta: 5},
		},
	})
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, EntityProduct, notFound.Entity)

	level, err := svc.StockLevelFor(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), level.Quantity)
}

func TestApplyBatchValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.ApplyBatch(ctx, BatchInput{UserID: 1, Type: AdjustmentTypeSale})
	require.ErrorIs(t, err, ErrEmptyBatch)

	_, err = svc.ApplyBatch(ctx, BatchInput{UserID: 1, Type: "BOGUS", Items: []BatchItem{{ProductID: 1, LocationID: 1, Delta: 1}}})
	require.ErrorIs(t, err, ErrInvalidType)
}

func TestApplyBatchDuplicateProductCollision(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	ctx := context.Background()
	seedLevels(t, svc, map[[2]int64]int64{{1, 1}: 3})

	// Items are applied in caller order; the second deduction of the same
	// product sees the first one's result.
	_, err := svc.ApplyBatch(ctx, BatchInput{
		UserID: 3,
		Type:   AdjustmentTypeSale,
		Items: []BatchItem{
			{ProductID: 1, LocationID: 1, Delta: -2},
			{ProductID: 1, LocationID: 1, Delta: -2},
		},
	})
	var batchErr *BatchItemError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, 1, batchErr.Index)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(1), stockErr.Current)

	level, err := svc.StockLevelFor(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), level.Quantity)
}
