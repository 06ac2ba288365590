package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*chi.Mux, *Service) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil, nil)
	h := NewHandler(slog.Default(), svc, NewValidator(repo))
	r := chi.NewRouter()
	r.Route("/stock", h.MountRoutes)
	return r, svc
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerAdjustSuccess(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := postJSON(t, r, "/stock/adjustments", map[string]any{
		"user_id": 1, "product_id": 9, "location_id": 1, "delta": 5, "type": "RESTOCK",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp adjustmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, int64(5), resp.NewQuantity)
	require.Equal(t, int64(1), resp.NewVersion)
	require.Equal(t, int64(5), resp.Entry.Delta)
}

func TestHandlerAdjustConflictPayload(t *testing.T) {
	r, svc := newTestRouter(t)
	_, err := svc.Adjust(context.Background(), AdjustmentInput{UserID: 1, ProductID: 7, LocationID: 1, Delta: 10, Type: AdjustmentTypeRestock})
	require.NoError(t, err)

	rec := postJSON(t, r, "/stock/adjustments", map[string]any{
		"user_id": 1, "product_id": 7, "location_id": 1, "delta": -1, "type": "SALE", "expected_version": 9,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, KindOptimisticLock, payload.Kind)
	require.Equal(t, int64(1), *payload.CurrentVersion)
	require.Equal(t, int64(9), *payload.ExpectedVersion)
}

func TestHandlerAdjustInsufficientPayload(t *testing.T) {
	r, svc := newTestRouter(t)
	_, err := svc.Adjust(context.Background(), AdjustmentInput{UserID: 1, ProductID: 7, LocationID: 1, Delta: 7, Type: AdjustmentTypeRestock})
	require.NoError(t, err)

	rec := postJSON(t, r, "/stock/adjustments", map[string]any{
		"user_id": 1, "product_id": 7, "location_id": 1, "delta": -10, "type": "SALE",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, KindInsufficientStock, payload.Kind)
	require.Equal(t, int64(7), *payload.Current)
	require.Equal(t, int64(10), *payload.Requested)
	require.Equal(t, int64(3), *payload.Shortfall)
}

func TestHandlerAdjustNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := postJSON(t, r, "/stock/adjustments", map[string]any{
		"user_id": 1, "product_id": 404, "location_id": 1, "delta": 5, "type": "RESTOCK",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, KindNotFound, payload.Kind)
}

func TestHandlerBatchAbortNamesFailingItem(t *testing.T) {
	r, svc := newTestRouter(t)
	ctx := context.Background()
	_, err := svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: 1, LocationID: 1, Delta: 10, Type: AdjustmentTypeRestock})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: 2, LocationID: 1, Delta: 5, Type: AdjustmentTypeRestock})
	require.NoError(t, err)

	rec := postJSON(t, r, "/stock/batches", map[string]any{
		"user_id": 3, "type": "SALE", "reference": "SO-7",
		"items": []map[string]any{
			{"product_id": 1, "location_id": 1, "delta": -2},
			{"product_id": 2, "location_id": 1, "delta": -1000},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload errorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, KindInsufficientStock, payload.Kind)
	require.Equal(t, 1, *payload.ItemIndex)
	require.Equal(t, int64(2), *payload.ProductID)

	// Item #1's stock must look as if the batch never ran.
	level, err := svc.StockLevelFor(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(10), level.Quantity)
}

func TestHandlerBatchSuccess(t *testing.T) {
	r, svc := newTestRouter(t)
	_, err := svc.Adjust(context.Background(), AdjustmentInput{UserID: 1, ProductID: 1, LocationID: 1, Delta: 10, Type: AdjustmentTypeRestock})
	require.NoError(t, err)

	rec := postJSON(t, r, "/stock/batches", map[string]any{
		"user_id": 3, "type": "SALE", "reference": "SO-8",
		"items": []map[string]any{
			{"product_id": 1, "location_id": 1, "delta": -2},
			{"product_id": 1, "location_id": 1, "delta": -3},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TransactionID)
	require.Len(t, resp.Entries, 2)
}

func TestHandlerBatchValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := postJSON(t, r, "/stock/batches", map[string]any{
		"user_id": 3, "type": "SALE", "items": []map[string]any{},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerAvailability(t *testing.T) {
	r, svc := newTestRouter(t)
	_, err := svc.Adjust(context.Background(), AdjustmentInput{UserID: 1, ProductID: 7, LocationID: 1, Delta: 4, Type: AdjustmentTypeRestock})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/stock/availability?product_id=7&location_id=1&required=6", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["is_valid"])
	require.Equal(t, float64(4), resp["current"])
	require.Equal(t, float64(2), resp["shortfall"])
}

func TestHandlerAvailabilityRejectsNegativeRequired(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/stock/availability?product_id=7&location_id=1&required=-3", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerLevelAndLog(t *testing.T) {
	r, svc := newTestRouter(t)
	ctx := context.Background()
	_, err := svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: 7, LocationID: 1, Delta: 4, Type: AdjustmentTypeRestock})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: 7, LocationID: 1, Delta: -1, Type: AdjustmentTypeSale})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/stock/levels?product_id=7&location_id=1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var level map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &level))
	require.Equal(t, float64(3), level["quantity"])
	require.Equal(t, float64(2), level["version"])

	req = httptest.NewRequest(http.MethodGet, "/stock/log?product_id=7&location_id=1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var logResp struct {
		Entries []logEntryResponse `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logResp))
	require.Len(t, logResp.Entries, 2)
	// Newest first.
	require.Equal(t, int64(-1), logResp.Entries[0].Delta)
}

func TestHandlerAvailabilityBatch(t *testing.T) {
	r, svc := newTestRouter(t)
	ctx := context.Background()
	_, err := svc.Adjust(ctx, AdjustmentInput{UserID: 1, ProductID: 7, LocationID: 1, Delta: 6, Type: AdjustmentTypeRestock})
	require.NoError(t, err)

	rec := postJSON(t, r, "/stock/availability/check", map[string]any{
		"items": []map[string]any{
			{"product_id": 7, "location_id": 1, "required": 4},
			{"product_id": 9, "location_id": 1, "required": 2},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []struct {
			ProductID int64 `json:"product_id"`
			IsValid   bool  `json:"is_valid"`
			Current   int64 `json:"current"`
			Shortfall int64 `json:"shortfall"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	require.True(t, resp.Results[0].IsValid)
	require.Equal(t, int64(6), resp.Results[0].Current)
	require.False(t, resp.Results[1].IsValid)
	require.Equal(t, int64(2), resp.Results[1].Shortfall)

	rec = postJSON(t, r, "/stock/availability/check", map[string]any{"items": []map[string]any{}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
