package handler

import (
	"net/http"

	"ordersaga/internal/metrics"

	"github.com/gorilla/mux"
)

const serviceName = "order-service"

// Routes registers the order API, health and metrics endpoints on r.
func Routes(r *mux.Router, orders *OrderHandler, reg *metrics.Registry) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/orders", orders.CreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/create", orders.CreateOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", orders.GetOrder).Methods(http.MethodGet)
	api.HandleFunc("/customers/{id}/orders", orders.ListCustomerOrders).Methods(http.MethodGet)

	r.HandleFunc("/health", Health).Methods(http.MethodGet)
	r.Handle("/metrics", Metrics(reg)).Methods(http.MethodGet)
}

// Health handles GET /health.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": serviceName,
	})
}

// Metrics serves a JSON snapshot of reg.
func Metrics(reg *metrics.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, reg.Snapshot())
	})
}
