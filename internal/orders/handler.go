package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warelane/warelane/internal/ledger"
	"github.com/warelane/warelane/internal/platform/httpx"
)

// Handler exposes sales order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/{reference}", h.handleGet)
	r.Post("/{reference}/fulfill", h.handleFulfill)
}

type orderLineRequest struct {
	ProductID  int64 `json:"product_id" validate:"required"`
	LocationID int64 `json:"location_id" validate:"required"`
	Quantity   int64 `json:"quantity" validate:"required,gt=0"`
}

type createOrderRequest struct {
	Reference string             `json:"reference" validate:"required"`
	Lines     []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type fulfillRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

type orderLineResponse struct {
	ProductID  int64 `json:"product_id"`
	LocationID int64 `json:"location_id"`
	Quantity   int64 `json:"quantity"`
}

type orderResponse struct {
	ID        int64               `json:"id"`
	Reference string              `json:"reference"`
	Status    string              `json:"status"`
	Lines     []orderLineResponse `json:"lines"`
	CreatedAt time.Time           `json:"created_at"`
}

type fulfillResponse struct {
	Order         orderResponse `json:"order"`
	TransactionID string        `json:"transaction_id"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	lines := make([]OrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, OrderLine{
			ProductID:  line.ProductID,
			LocationID: line.LocationID,
			Quantity:   line.Quantity,
		})
	}
	order, err := h.service.Create(r.Context(), Order{Reference: req.Reference, Lines: lines})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleFulfill(w http.ResponseWriter, r *http.Request) {
	var req fulfillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Fulfill(r.Context(), req.UserID, chi.URLParam(r, "reference"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fulfillResponse{
		Order:         toOrderResponse(result.Order),
		TransactionID: result.TransactionID,
	})
}

// respondError lets the ledger taxonomy render itself first so a short line
// aborting fulfillment carries its item index and shortfall through.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if ledger.WriteError(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrOrderNotFound):
		httpx.Problem(w, http.StatusNotFound, "Order Not Found", err.Error())
	case errors.Is(err, ErrOrderNotOpen):
		httpx.Problem(w, http.StatusConflict, "Order Not Open", err.Error())
	case errors.Is(err, ErrNoLines):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		h.logger.Error("orders operation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toOrderResponse(order Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			ProductID:  line.ProductID,
			LocationID: line.LocationID,
			Quantity:   line.Quantity,
		})
	}
	return orderResponse{
		ID:        order.ID,
		Reference: order.Reference,
		Status:    string(order.Status),
		Lines:     lines,
		CreatedAt: order.CreatedAt,
	}
}
