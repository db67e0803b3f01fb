package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/shaiso/Fabrika/internal/domain"
)

// CreateMachine добавляет машину в справочник.
// POST /api/v1/machines
func (h *Handler) CreateMachine(w http.ResponseWriter, r *http.Request) {
	var req CreateMachineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Code == "" || req.Name == "" {
		BadRequest(w, "code and name are required")
		return
	}

	m := &domain.Machine{
		ID:       uuid.New(),
		Code:     req.Code,
		Name:     req.Name,
		IsActive: true,
	}
	if err := h.directory.CreateMachine(r.Context(), m); HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, MachineFromDomain(m))
}

// GetMachine возвращает машину справочника.
// GET /api/v1/machines/{id}
func (h *Handler) GetMachine(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid machine id")
		return
	}

	m, err := h.directory.GetMachine(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "machine not found") {
		return
	}

	Success(w, MachineFromDomain(m))
}

// ListMachines возвращает все машины справочника.
// GET /api/v1/machines
func (h *Handler) ListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.directory.ListMachines(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]MachineResponse, len(machines))
	for i := range machines {
		result[i] = MachineFromDomain(&machines[i])
	}

	List(w, result, len(result))
}

// CreateOperator добавляет оператора в справочник.
// POST /api/v1/operators
func (h *Handler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req CreateOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	role := req.Role
	if role == "" {
		role = domain.RoleOperator
	}
	if role != domain.RoleOperator && role != domain.RoleSupervisor {
		BadRequest(w, "unknown role")
		return
	}

	o := &domain.Operator{
		ID:       uuid.New(),
		Name:     req.Name,
		Role:     role,
		IsActive: true,
	}
	if err := h.directory.CreateOperator(r.Context(), o); HandleRepoError(w, h.logger, err, "") {
		return
	}

	Created(w, OperatorFromDomain(o))
}

// GetOperator возвращает оператора справочника.
// GET /api/v1/operators/{id}
func (h *Handler) GetOperator(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid operator id")
		return
	}

	o, err := h.directory.GetOperator(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "operator not found") {
		return
	}

	Success(w, OperatorFromDomain(o))
}

// AssignOperator назначает оператора на машину.
// PUT /api/v1/machines/{id}/operators/{operatorID}
func (h *Handler) AssignOperator(w http.ResponseWriter, r *http.Request) {
	machineID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid machine id")
		return
	}
	operatorID, err := uuid.Parse(r.PathValue("operatorID"))
	if err != nil {
		BadRequest(w, "invalid operator id")
		return
	}

	if err := h.directory.Assign(r.Context(), operatorID, machineID); HandleRepoError(w, h.logger, err, "machine or operator not found") {
		return
	}

	NoContent(w)
}

// UnassignOperator снимает назначение оператора с машины.
// DELETE /api/v1/machines/{id}/operators/{operatorID}
func (h *Handler) UnassignOperator(w http.ResponseWriter, r *http.Request) {
	machineID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid machine id")
		return
	}
	operatorID, err := uuid.Parse(r.PathValue("operatorID"))
	if err != nil {
		BadRequest(w, "invalid operator id")
		return
	}

	if err := h.directory.Unassign(r.Context(), operatorID, machineID); HandleRepoError(w, h.logger, err, "assignment not found") {
		return
	}

	NoContent(w)
}
