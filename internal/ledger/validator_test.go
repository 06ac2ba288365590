package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateMissingRowCountsAsZero(t *testing.T) {
	repo := newMemoryRepo()
	v := NewValidator(repo)

	avail, err := v.Validate(context.Background(), 1, 1, 4)
	require.NoError(t, err)
	require.False(t, avail.Valid)
	require.Equal(t, int64(0), avail.Current)
	require.Equal(t, int64(4), avail.Shortfall)
}

func TestValidateShortfall(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	v := NewValidator(repo)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: 7, LocationID: 1, Delta: 7, Type: AdjustmentTypeRestock})
	require.NoError(t, err)

	avail, err := v.Validate(ctx, 7, 1, 10)
	require.NoError(t, err)
	require.False(t, avail.Valid)
	require.Equal(t, int64(7), avail.Current)
	require.Equal(t, int64(3), avail.Shortfall)

	avail, err = v.Validate(ctx, 7, 1, 7)
	require.NoError(t, err)
	require.True(t, avail.Valid)
	require.Zero(t, avail.Shortfall)
}

func TestValidateIsPureRead(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	v := NewValidator(repo)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: 7, LocationID: 1, Delta: 5, Type: AdjustmentTypeRestock})
	require.NoError(t, err)

	first, err := v.Validate(ctx, 7, 1, 3)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := v.Validate(ctx, 7, 1, 3)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	level, err := svc.StockLevelFor(ctx, 7, 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), level.Quantity)
	require.Equal(t, int64(1), level.Version)
}

func TestValidateManyKeepsInputOrder(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	v := NewValidator(repo)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: 1, LocationID: 1, Delta: 10, Type: AdjustmentTypeRestock})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: 2, LocationID: 1, Delta: 3, Type: AdjustmentTypeRestock})
	require.NoError(t, err)

	results, err := v.ValidateMany(ctx, []AvailabilityQuery{
		{ProductID: 1, LocationID: 1, Required: 4},
		{ProductID: 2, LocationID: 1, Required: 5},
		{ProductID: 7, LocationID: 1, Required: 1},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.True(t, results[0].Valid)
	require.Equal(t, int64(10), results[0].Current)

	require.False(t, results[1].Valid)
	require.Equal(t, int64(2), results[1].Shortfall)

	require.False(t, results[2].Valid)
	require.Equal(t, int64(0), results[2].Current)
	require.Equal(t, int64(1), results[2].Shortfall)
}

func TestValidateManyPropagatesBadInput(t *testing.T) {
	v := NewValidator(newMemoryRepo())

	_, err := v.ValidateMany(context.Background(), []AvailabilityQuery{
		{ProductID: 1, LocationID: 1, Required: 1},
		{ProductID: 0, LocationID: 1, Required: 1},
	})
	require.Error(t, err)
}

func TestValidateRejectsBadInput(t *testing.T) {
	v := NewValidator(newMemoryRepo())

	_, err := v.Validate(context.Background(), 0, 1, 1)
	require.Error(t, err)
	_, err = v.Validate(context.Background(), 1, 1, -1)
	require.Error(t, err)
}
