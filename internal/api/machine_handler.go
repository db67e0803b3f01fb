package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/workflow"
)

// orderMachineIDs извлекает пару идентификаторов из пути.
func orderMachineIDs(w http.ResponseWriter, r *http.Request) (orderID, machineID uuid.UUID, ok bool) {
	orderID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid order id")
		return uuid.Nil, uuid.Nil, false
	}
	machineID, err = uuid.Parse(r.PathValue("machineID"))
	if err != nil {
		BadRequest(w, "invalid machine id")
		return uuid.Nil, uuid.Nil, false
	}
	return orderID, machineID, true
}

// StartMachine запускает машину в заказе.
// POST /api/v1/orders/{id}/machines/{machineID}/start
func (h *Handler) StartMachine(w http.ResponseWriter, r *http.Request) {
	orderID, machineID, ok := orderMachineIDs(w, r)
	if !ok {
		return
	}

	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	mp, err := h.engine.StartMachine(r.Context(), orderID, machineID, req.OperatorID)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	Success(w, MachineProgressFromDomain(mp))
}

// SaveProgress применяет батч строк к работающей машине.
// POST /api/v1/orders/{id}/machines/{machineID}/progress
func (h *Handler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	orderID, machineID, ok := orderMachineIDs(w, r)
	if !ok {
		return
	}

	var req SaveProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if len(req.Rows) == 0 {
		BadRequest(w, "rows must not be empty")
		return
	}

	snap, err := h.engine.SaveProgress(r.Context(), orderID, machineID, req.OperatorID, req.Rows, req.Notes)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	Success(w, SnapshotFromDomain(snap))
}

// CompleteMachine завершает работу машины.
// POST /api/v1/orders/{id}/machines/{machineID}/complete
func (h *Handler) CompleteMachine(w http.ResponseWriter, r *http.Request) {
	orderID, machineID, ok := orderMachineIDs(w, r)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	var override *domain.QualityOverride
	if req.Override != nil {
		override = &domain.QualityOverride{
			Status:     req.Override.Status,
			Notes:      req.Override.Notes,
			ReviewerID: req.OperatorID,
		}
	}

	snap, err := h.engine.CompleteMachine(r.Context(), orderID, machineID, req.OperatorID, req.Rows, override)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	Success(w, SnapshotFromDomain(snap))
}

// StopMachine останавливает работающую машину.
// POST /api/v1/orders/{id}/machines/{machineID}/stop
func (h *Handler) StopMachine(w http.ResponseWriter, r *http.Request) {
	orderID, machineID, ok := orderMachineIDs(w, r)
	if !ok {
		return
	}

	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	stopType, ok := domain.ParseStopType(req.Type)
	if !ok {
		BadRequest(w, "unknown stop type: "+req.Type)
		return
	}

	snap, err := h.engine.StopMachine(r.Context(), orderID, machineID, req.OperatorID, workflow.StopInput{
		Type:            stopType,
		Reason:          req.Reason,
		Note:            req.Note,
		Rows:            req.Rows,
		PlannedResumeAt: req.PlannedResumeAt,
	})
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	Success(w, SnapshotFromDomain(snap))
}

// ResumeMachine возобновляет машину после паузы или ошибки.
// POST /api/v1/orders/{id}/machines/{machineID}/resume
func (h *Handler) ResumeMachine(w http.ResponseWriter, r *http.Request) {
	orderID, machineID, ok := orderMachineIDs(w, r)
	if !ok {
		return
	}

	var req ActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	mp, err := h.engine.ResumeMachine(r.Context(), orderID, machineID, req.OperatorID)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	Success(w, MachineProgressFromDomain(mp))
}

// ListRows возвращает строки выработки машины в заказе.
// GET /api/v1/orders/{id}/machines/{machineID}/rows
func (h *Handler) ListRows(w http.ResponseWriter, r *http.Request) {
	orderID, machineID, ok := orderMachineIDs(w, r)
	if !ok {
		return
	}

	rows, err := h.engine.ListRows(r.Context(), orderID, machineID)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	result := make([]RowResponse, len(rows))
	for i := range rows {
		result[i] = RowFromDomain(&rows[i])
	}

	List(w, result, len(result))
}

// GetPending возвращает очередь работ машины.
// GET /api/v1/machines/{id}/pending
func (h *Handler) GetPending(w http.ResponseWriter, r *http.Request) {
	machineID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid machine id")
		return
	}

	work, err := h.engine.GetPendingForMachine(r.Context(), machineID)
	if HandleWorkflowError(w, h.logger, err) {
		return
	}

	List(w, work, len(work))
}
