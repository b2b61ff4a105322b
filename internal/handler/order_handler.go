package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ordersaga/internal/logger"
	"ordersaga/internal/order"
	"ordersaga/internal/saga"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// OrderCreator runs the order-creation saga.
type OrderCreator interface {
	CreateOrder(ctx context.Context, in order.CreateOrderInput) (*saga.Result, error)
}

// OrderReader serves committed orders.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID int64) (*order.Order, error)
	ListCustomerOrders(ctx context.Context, customerID int64, limit int) ([]*order.Order, error)
}

type OrderHandler struct {
	creator OrderCreator
	reader  OrderReader
}

func NewOrderHandler(creator OrderCreator, reader OrderReader) *OrderHandler {
	return &OrderHandler{creator: creator, reader: reader}
}

// CreateOrder handles POST /api/orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	log := logger.FromCtx(r.Context()).With(
		zap.String("layer", "handler"),
		zap.String("method", "CreateOrder"),
	)

	var in order.CreateOrderInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		log.Warn("invalid request body", zap.Error(err))
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.creator.CreateOrder(r.Context(), in)
	if err != nil {
		writeRejection(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, order.ToCreateOrderResponse(res.Order, res.Items, res.Quote))
}

// GetOrder handles GET /api/orders/{id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.reader.GetOrder(r.Context(), id)
	if errors.Is(err, order.ErrOrderNotFound) {
		writeError(w, r, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		logger.FromCtx(r.Context()).Error("failed to load order",
			zap.Int64("order_id", id),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "failed to load order")
		return
	}

	writeJSON(w, r, http.StatusOK, order.ToOrderResponse(o))
}

// ListCustomerOrders handles GET /api/customers/{id}/orders?limit=N.
func (h *OrderHandler) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	customerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	orders, err := h.reader.ListCustomerOrders(r.Context(), customerID, limit)
	if err != nil {
		logger.FromCtx(r.Context()).Error("failed to list orders",
			zap.Int64("customer_id", customerID),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "failed to list orders")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"customer_id": customerID,
		"orders":      order.ToOrderResponses(orders),
	})
}

// writeRejection renders a saga failure. Server faults get a fixed message so
// driver errors never reach the caller.
func writeRejection(w http.ResponseWriter, r *http.Request, err error) {
	var rej *saga.Rejection
	if !errors.As(err, &rej) {
		writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	body := ErrorResponse{Error: rej.Error(), Stage: string(rej.Stage)}
	if rej.Stage != saga.StageValidation {
		body.Error = rej.Err.Error()
	}

	status := rej.StatusCode()
	if status >= http.StatusInternalServerError {
		body.Error = "failed to save order"
	}
	writeJSON(w, r, status, body)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
