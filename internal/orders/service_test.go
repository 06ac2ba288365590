package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warelane/warelane/internal/ledger"
)

type fakeOrderRepo struct {
	orders    map[string]Order
	fulfilled map[int64]string
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]Order), fulfilled: make(map[int64]string)}
}

func (r *fakeOrderRepo) GetByReference(_ context.Context, reference string) (Order, error) {
	order, ok := r.orders[reference]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (r *fakeOrderRepo) MarkFulfilled(_ context.Context, id int64, transactionID string) error {
	for ref, order := range r.orders {
		if order.ID != id {
			continue
		}
		if order.Status != StatusOpen {
			return ErrOrderNotOpen
		}
		order.Status = StatusFulfilled
		r.orders[ref] = order
		r.fulfilled[id] = transactionID
		return nil
	}
	return ErrOrderNotFound
}

func (r *fakeOrderRepo) Create(_ context.Context, order Order) (Order, error) {
	order.ID = int64(len(r.orders) + 1)
	order.Status = StatusOpen
	order.CreatedAt = time.Now()
	r.orders[order.Reference] = order
	return order, nil
}

type fakeLedger struct {
	inputs []ledger.BatchInput
	result ledger.BatchResult
	err    error
}

func (f *fakeLedger) ApplyBatch(_ context.Context, input ledger.BatchInput) (ledger.BatchResult, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return ledger.BatchResult{}, f.err
	}
	return f.result, nil
}

func TestFulfillDeductsEveryLine(t *testing.T) {
	repo := newFakeOrderRepo()
	eng := &fakeLedger{result: ledger.BatchResult{TransactionID: "tx-1"}}
	svc := NewService(repo, eng)

	order, err := svc.Create(context.Background(), Order{
		Reference: "SO-1001",
		Lines: []OrderLine{
			{ProductID: 1, LocationID: 1, Quantity: 4},
			{ProductID: 2, LocationID: 1, Quantity: 2},
		},
	})
	require.NoError(t, err)

	result, err := svc.Fulfill(context.Background(), 7, "SO-1001")
	require.NoError(t, err)
	require.Equal(t, "tx-1", result.TransactionID)
	require.Equal(t, StatusFulfilled, result.Order.Status)

	require.Len(t, eng.inputs, 1)
	input := eng.inputs[0]
	require.Equal(t, int64(7), input.UserID)
	require.Equal(t, ledger.AdjustmentTypeSale, input.Type)
	require.Equal(t, "SO-1001", input.Reference)
	require.Len(t, input.Items, 2)
	require.Equal(t, int64(-4), input.Items[0].Delta)
	require.Equal(t, int64(-2), input.Items[1].Delta)

	require.Equal(t, "tx-1", repo.fulfilled[order.ID])
}

func TestFulfillAbortLeavesOrderOpen(t *testing.T) {
	repo := newFakeOrderRepo()
	eng := &fakeLedger{err: &ledger.BatchItemError{
		Index:      1,
		ProductID:  2,
		LocationID: 1,
		Err:        &ledger.InsufficientStockError{ProductID: 2, LocationID: 1, Current: 1, Requested: 2},
	}}
	svc := NewService(repo, eng)

	_, err := svc.Create(context.Background(), Order{
		Reference: "SO-1002",
		Lines: []OrderLine{
			{ProductID: 1, LocationID: 1, Quantity: 4},
			{ProductID: 2, LocationID: 1, Quantity: 2},
		},
	})
	require.NoError(t, err)

	_, err = svc.Fulfill(context.Background(), 7, "SO-1002")
	require.Error(t, err)

	var batchErr *ledger.BatchItemError
	require.True(t, errors.As(err, &batchErr))
	require.Equal(t, 1, batchErr.Index)
	require.Equal(t, ledger.KindInsufficientStock, ledger.ErrorKind(err))

	order, err := repo.GetByReference(context.Background(), "SO-1002")
	require.NoError(t, err)
	require.Equal(t, StatusOpen, order.Status)
	require.Empty(t, repo.fulfilled)
}

func TestFulfillRejectsNonOpenOrder(t *testing.T) {
	repo := newFakeOrderRepo()
	eng := &fakeLedger{result: ledger.BatchResult{TransactionID: "tx-2"}}
	svc := NewService(repo, eng)

	_, err := svc.Create(context.Background(), Order{
		Reference: "SO-1003",
		Lines:     []OrderLine{{ProductID: 1, LocationID: 1, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.Fulfill(context.Background(), 7, "SO-1003")
	require.NoError(t, err)

	_, err = svc.Fulfill(context.Background(), 7, "SO-1003")
	require.ErrorIs(t, err, ErrOrderNotOpen)
	require.Len(t, eng.inputs, 1)
}

func TestFulfillUnknownReference(t *testing.T) {
	svc := NewService(newFakeOrderRepo(), &fakeLedger{})
	_, err := svc.Fulfill(context.Background(), 7, "SO-9999")
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newFakeOrderRepo(), &fakeLedger{})

	_, err := svc.Create(context.Background(), Order{Reference: "SO-1"})
	require.ErrorIs(t, err, ErrNoLines)

	_, err = svc.Create(context.Background(), Order{
		Reference: "SO-2",
		Lines:     []OrderLine{{ProductID: 1, LocationID: 1, Quantity: 0}},
	})
	require.Error(t, err)
}
