package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shaiso/Fabrika/internal/domain"
)

// CreateOrder создаёт новый заказ по плану каталога.
// POST /api/v1/orders
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	order, err := h.engine.CreateOrder(r.Context(), req.Plan())
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	Created(w, OrderFromDomain(order))
}

// ListOrders возвращает список заказов.
// GET /api/v1/orders?status=...&limit=...
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	limit := parseIntParam(r, "limit", 50)

	orders, err := h.engine.ListOrders(r.Context(), status, limit)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	result := make([]OrderResponse, len(orders))
	for i := range orders {
		result[i] = OrderFromDomain(&orders[i])
	}

	List(w, result, len(result))
}

// GetOrder возвращает заказ с полным деревом этапов и машин.
// GET /api/v1/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid order id")
		return
	}

	order, err := h.engine.GetOrder(r.Context(), id)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	Success(w, OrderFromDomain(order))
}

// ApproveOrder подтверждает заказ, ожидающий одобрения.
// POST /api/v1/orders/{id}/approve
func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid order id")
		return
	}

	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.engine.ApproveOrder(r.Context(), id, req.OperatorID); HandleWorkflowError(w, h.logger, err) {
		return
	}

	order, err := h.engine.GetOrder(r.Context(), id)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	Success(w, OrderFromDomain(order))
}

// CancelOrder отменяет заказ.
// POST /api/v1/orders/{id}/cancel
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid order id")
		return
	}

	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if err := h.engine.CancelOrder(r.Context(), id, req.OperatorID); HandleWorkflowError(w, h.logger, err) {
		return
	}

	order, err := h.engine.GetOrder(r.Context(), id)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	Success(w, OrderFromDomain(order))
}

// ListAudit возвращает журнал аудита заказа.
// GET /api/v1/orders/{id}/audit?limit=...
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid order id")
		return
	}

	limit := parseIntParam(r, "limit", 100)

	entries, err := h.engine.ListAudit(r.Context(), id, limit)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	result := make([]AuditResponse, len(entries))
	for i := range entries {
		result[i] = AuditFromDomain(&entries[i])
	}

	List(w, result, len(result))
}

// parseIntParam читает целочисленный query-параметр с дефолтом.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
