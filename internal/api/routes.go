package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Orders
	mux.Handle("GET /api/v1/orders", chain(http.HandlerFunc(h.ListOrders)))
	mux.Handle("POST /api/v1/orders", chain(http.HandlerFunc(h.CreateOrder)))
	mux.Handle("GET /api/v1/orders/{id}", chain(http.HandlerFunc(h.GetOrder)))
	mux.Handle("POST /api/v1/orders/{id}/approve", chain(http.HandlerFunc(h.ApproveOrder)))
	mux.Handle("POST /api/v1/orders/{id}/cancel", chain(http.HandlerFunc(h.CancelOrder)))
	mux.Handle("GET /api/v1/orders/{id}/audit", chain(http.HandlerFunc(h.ListAudit)))

	// Machine actions within an order
	mux.Handle("POST /api/v1/orders/{id}/machines/{machineID}/start", chain(http.HandlerFunc(h.StartMachine)))
	mux.Handle("POST /api/v1/orders/{id}/machines/{machineID}/progress", chain(http.HandlerFunc(h.SaveProgress)))
	mux.Handle("POST /api/v1/orders/{id}/machines/{machineID}/complete", chain(http.HandlerFunc(h.CompleteMachine)))
	mux.Handle("POST /api/v1/orders/{id}/machines/{machineID}/stop", chain(http.HandlerFunc(h.StopMachine)))
	mux.Handle("POST /api/v1/orders/{id}/machines/{machineID}/resume", chain(http.HandlerFunc(h.ResumeMachine)))
	mux.Handle("GET /api/v1/orders/{id}/machines/{machineID}/rows", chain(http.HandlerFunc(h.ListRows)))

	// Work queue per machine
	mux.Handle("GET /api/v1/machines/{id}/pending", chain(http.HandlerFunc(h.GetPending)))

	// Directory
	mux.Handle("GET /api/v1/machines", chain(http.HandlerFunc(h.ListMachines)))
	mux.Handle("POST /api/v1/machines", chain(http.HandlerFunc(h.CreateMachine)))
	mux.Handle("GET /api/v1/machines/{id}", chain(http.HandlerFunc(h.GetMachine)))
	mux.Handle("POST /api/v1/operators", chain(http.HandlerFunc(h.CreateOperator)))
	mux.Handle("GET /api/v1/operators/{id}", chain(http.HandlerFunc(h.GetOperator)))
	mux.Handle("PUT /api/v1/machines/{id}/operators/{operatorID}", chain(http.HandlerFunc(h.AssignOperator)))
	mux.Handle("DELETE /api/v1/machines/{id}/operators/{operatorID}", chain(http.HandlerFunc(h.UnassignOperator)))
}
