package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warelane/warelane/internal/platform/httpx"
	"github.com/warelane/warelane/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger engine.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *Validator
	validate  *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, availability *Validator) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: availability,
		validate:  validator.New(),
	}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/adjustments", h.handleAdjust)
	r.Post("/batches", h.handleBatch)
	r.Get("/levels", h.handleLevel)
	r.Get("/levels/total", h.handleTotal)
	r.Get("/availability", h.handleAvailability)
	r.Post("/availability/check", h.handleAvailabilityBatch)
	r.Get("/log", h.handleLog)
}

type adjustmentRequest struct {
	UserID          int64  `json:"user_id" validate:"required"`
	ProductID       int64  `json:"product_id" validate:"required"`
	LocationID      int64  `json:"location_id" validate:"required"`
	Delta           int64  `json:"delta"`
	Type            string `json:"type" validate:"required"`
	Reference       string `json:"reference"`
	ExpectedVersion *int64 `json:"expected_version"`
}

type batchItemRequest struct {
	ProductID       int64  `json:"product_id" validate:"required"`
	LocationID      int64  `json:"location_id" validate:"required"`
	Delta           int64  `json:"delta"`
	ExpectedVersion *int64 `json:"expected_version"`
}

type batchRequest struct {
	UserID    int64              `json:"user_id" validate:"required"`
	Type      string             `json:"type" validate:"required"`
	Reference string             `json:"reference"`
	Items     []batchItemRequest `json:"items" validate:"required,min=1,dive"`
}

type logEntryResponse struct {
	ID         int64     `json:"id"`
	ProductID  int64     `json:"product_id"`
	LocationID int64     `json:"location_id"`
	UserID     int64     `json:"user_id"`
	Delta      int64     `json:"delta"`
	Type       string    `json:"type"`
	Reference  string    `json:"reference,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type adjustmentResponse struct {
	Entry       logEntryResponse `json:"entry"`
	NewQuantity int64            `json:"new_quantity"`
	NewVersion  int64            `json:"new_version"`
}

type batchResponse struct {
	TransactionID string             `json:"transaction_id"`
	Entries       []logEntryResponse `json:"entries"`
}

// errorPayload carries the structured kind alongside the conflict or
// shortfall detail the caller needs to react.
type errorPayload struct {
	Kind            string `json:"kind"`
	Message         string `json:"message"`
	CurrentVersion  *int64 `json:"current_version,omitempty"`
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
	Current         *int64 `json:"current,omitempty"`
	Requested       *int64 `json:"requested,omitempty"`
	Shortfall       *int64 `json:"shortfall,omitempty"`
	ItemIndex       *int   `json:"item_index,omitempty"`
	ProductID       *int64 `json:"product_id,omitempty"`
	LocationID      *int64 `json:"location_id,omitempty"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Adjust(r.Context(), AdjustmentInput{
		UserID:          req.UserID,
		ProductID:       req.ProductID,
		LocationID:      req.LocationID,
		Delta:           req.Delta,
		Type:            AdjustmentType(req.Type),
		Reference:       req.Reference,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.respondLedgerError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, adjustmentResponse{
		Entry:       toEntryResponse(result.Entry),
		NewQuantity: result.NewQuantity,
		NewVersion:  result.NewVersion,
	})
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	items := make([]BatchItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, BatchItem{
			ProductID:       item.ProductID,
			LocationID:      item.LocationID,
			Delta:           item.Delta,
			ExpectedVersion: item.ExpectedVersion,
		})
	}
	result, err := h.service.ApplyBatch(r.Context(), BatchInput{
		UserID:    req.UserID,
		Type:      AdjustmentType(req.Type),
		Reference: req.Reference,
		Items:     items,
	})
	if err != nil {
		h.respondLedgerError(w, r, err)
		return
	}
	entries := make([]logEntryResponse, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entries = append(entries, toEntryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, batchResponse{TransactionID: result.TransactionID, Entries: entries})
}

func (h *Handler) handleLevel(w http.ResponseWriter, r *http.Request) {
	productID, locationID, ok := h.pairParams(w, r)
	if !ok {
		return
	}
	level, err := h.service.StockLevelFor(r.Context(), productID, locationID)
	if err != nil {
		h.logger.Error("read stock level", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":  level.ProductID,
		"location_id": level.LocationID,
		"quantity":    level.Quantity,
		"version":     level.Version,
	})
}

func (h *Handler) handleTotal(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "product_id is required")
		return
	}
	total, err := h.service.TotalQuantity(r.Context(), productID)
	if err != nil {
		h.logger.Error("read total quantity", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"product_id": productID, "quantity": total})
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	productID, locationID, ok := h.pairParams(w, r)
	if !ok {
		return
	}
	required, err := strconv.ParseInt(r.URL.Query().Get("required"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "required is required")
		return
	}
	if required < 0 {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "required must be >= 0")
		return
	}
	avail, err := h.validator.Validate(r.Context(), productID, locationID, required)
	if err != nil {
		h.logger.Error("validate availability", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"is_valid":  avail.Valid,
		"current":   avail.Current,
		"required":  avail.Required,
		"shortfall": avail.Shortfall,
	})
}

type availabilityCheckRequest struct {
	Items []availabilityItemRequest `json:"items" validate:"required,min=1,dive"`
}

type availabilityItemRequest struct {
	ProductID  int64 `json:"product_id" validate:"required"`
	LocationID int64 `json:"location_id" validate:"required"`
	Required   int64 `json:"required" validate:"gte=0"`
}

func (h *Handler) handleAvailabilityBatch(w http.ResponseWriter, r *http.Request) {
	var req availabilityCheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	queries := make([]AvailabilityQuery, 0, len(req.Items))
	for _, item := range req.Items {
		queries = append(queries, AvailabilityQuery{
			ProductID:  item.ProductID,
			LocationID: item.LocationID,
			Required:   item.Required,
		})
	}
	results, err := h.validator.ValidateMany(r.Context(), queries)
	if err != nil {
		h.logger.Error("validate availability batch", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]map[string]any, 0, len(results))
	for i, avail := range results {
		out = append(out, map[string]any{
			"product_id":  req.Items[i].ProductID,
			"location_id": req.Items[i].LocationID,
			"is_valid":    avail.Valid,
			"current":     avail.Current,
			"required":    avail.Required,
			"shortfall":   avail.Shortfall,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"results": out})
}

func (h *Handler) handleLog(w http.ResponseWriter, r *http.Request) {
	productID, locationID, ok := h.pairParams(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pagination := shared.NewPagination(page, limit, 0)
	entries, err := h.service.Entries(r.Context(), LogFilter{
		ProductID:  productID,
		LocationID: locationID,
		Limit:      pagination.PerPage,
		Offset:     pagination.Offset(),
	})
	if err != nil {
		h.logger.Error("list log entries", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]logEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toEntryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) pairParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "product_id is required")
		return 0, 0, false
	}
	locationID, err := strconv.ParseInt(r.URL.Query().Get("location_id"), 10, 64)
	if err != nil || locationID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "location_id is required")
		return 0, 0, false
	}
	return productID, locationID, true
}

// respondLedgerError maps the engine taxonomy to HTTP: lock conflicts are 409
// and retryable after refetch, insufficient stock is 400, missing references
// are 404. Batch wrappers keep the failing item's identity in the payload.
func (h *Handler) respondLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	if WriteError(w, err) {
		return
	}
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate Submission", err.Error())
	case errors.Is(err, ErrInvalidDelta), errors.Is(err, ErrInvalidType), errors.Is(err, ErrEmptyBatch):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("ledger operation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// WriteError renders an engine error as a structured JSON payload and reports
// whether err belonged to the ledger taxonomy. Callers that invoke the engine
// indirectly (order fulfillment) reuse the same mapping.
func WriteError(w http.ResponseWriter, err error) bool {
	payload := errorPayload{Kind: ErrorKind(err), Message: err.Error()}

	var batchErr *BatchItemError
	if errors.As(err, &batchErr) {
		idx := batchErr.Index
		payload.ItemIndex = &idx
		payload.ProductID = &batchErr.ProductID
		payload.LocationID = &batchErr.LocationID
	}

	var lockErr *OptimisticLockError
	var stockErr *InsufficientStockError
	var notFound *NotFoundError
	switch {
	case errors.As(err, &lockErr):
		payload.CurrentVersion = &lockErr.CurrentVersion
		payload.ExpectedVersion = &lockErr.ExpectedVersion
		httpx.JSON(w, http.StatusConflict, payload)
	case errors.As(err, &stockErr):
		shortfall := stockErr.Shortfall()
		payload.Current = &stockErr.Current
		payload.Requested = &stockErr.Requested
		payload.Shortfall = &shortfall
		httpx.JSON(w, http.StatusBadRequest, payload)
	case errors.As(err, &notFound):
		httpx.JSON(w, http.StatusNotFound, payload)
	default:
		return false
	}
	return true
}

func toEntryResponse(entry LogEntry) logEntryResponse {
	return logEntryResponse{
		ID:         entry.ID,
		ProductID:  entry.ProductID,
		LocationID: entry.LocationID,
		UserID:     entry.UserID,
		Delta:      entry.Delta,
		Type:       string(entry.Type),
		Reference:  entry.Reference,
		OccurredAt: entry.OccurredAt,
	}
}
