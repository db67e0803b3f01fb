package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/workflow"
)

// Order DTOs

// CreateOrderRequest — запрос на создание заказа.
// Steps передаются в формате плана каталога.
type CreateOrderRequest struct {
	Number           string             `json:"number"`
	Priority         domain.Priority    `json:"priority,omitempty"`
	RequiresApproval bool               `json:"requires_approval,omitempty"`
	Params           map[string]float64 `json:"params,omitempty"`
	Steps            []domain.StepPlan  `json:"steps"`
}

// Plan конвертирует запрос в доменный план заказа.
func (r *CreateOrderRequest) Plan() *domain.OrderPlan {
	return &domain.OrderPlan{
		Number:           r.Number,
		Priority:         r.Priority,
		RequiresApproval: r.RequiresApproval,
		Params:           r.Params,
		Steps:            r.Steps,
	}
}

// OrderResponse — ответ с заказом.
type OrderResponse struct {
	ID               uuid.UUID       `json:"id"`
	Number           string          `json:"number"`
	Status           string          `json:"status"`
	Priority         string          `json:"priority"`
	CurrentStepIndex int             `json:"current_step_index"`
	Steps            []StepResponse  `json:"steps,omitempty"`
	Summary          *domain.Summary `json:"summary,omitempty"`
	ActualStartAt    *time.Time      `json:"actual_start_at,omitempty"`
	ActualEndAt      *time.Time      `json:"actual_end_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// StepResponse — ответ с этапом заказа.
type StepResponse struct {
	StepIndex   int               `json:"step_index"`
	StepID      uuid.UUID         `json:"step_id"`
	Status      string            `json:"status"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Machines    []MachineProgress `json:"machines"`
}

// MachineProgress — ответ с записью прогресса машины.
type MachineProgress struct {
	MachineID     uuid.UUID                `json:"machine_id"`
	StepIndex     int                      `json:"step_index"`
	SequenceOrder int                      `json:"sequence_order"`
	Status        string                   `json:"status"`
	OperatorID    *uuid.UUID               `json:"operator_id,omitempty"`
	StartedAt     *time.Time               `json:"started_at,omitempty"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
	StoppedAt     *time.Time               `json:"stopped_at,omitempty"`
	Target        domain.TargetOutput      `json:"target"`
	Calculated    *domain.CalculatedOutput `json:"calculated,omitempty"`
	QualityStatus string                   `json:"quality_status,omitempty"`
	QualityNotes  []string                 `json:"quality_notes,omitempty"`
	Reason        string                   `json:"reason,omitempty"`
	Note          string                   `json:"note,omitempty"`
}

// OrderFromDomain конвертирует domain.Order в OrderResponse.
func OrderFromDomain(o *domain.Order) OrderResponse {
	steps := make([]StepResponse, len(o.Steps))
	for i := range o.Steps {
		steps[i] = stepFromDomain(&o.Steps[i])
	}
	return OrderResponse{
		ID:               o.ID,
		Number:           o.Number,
		Status:           string(o.Status),
		Priority:         string(o.Priority),
		CurrentStepIndex: o.CurrentStepIndex,
		Steps:            steps,
		Summary:          o.Summary,
		ActualStartAt:    o.ActualStartAt,
		ActualEndAt:      o.ActualEndAt,
		CreatedAt:        o.CreatedAt,
	}
}

func stepFromDomain(s *domain.OrderStep) StepResponse {
	machines := make([]MachineProgress, len(s.Machines))
	for i := range s.Machines {
		machines[i] = MachineProgressFromDomain(&s.Machines[i])
	}
	return StepResponse{
		StepIndex:   s.StepIndex,
		StepID:      s.StepID,
		Status:      string(s.Status),
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
		Machines:    machines,
	}
}

// MachineProgressFromDomain конвертирует domain.MachineProgress.
func MachineProgressFromDomain(m *domain.MachineProgress) MachineProgress {
	return MachineProgress{
		MachineID:     m.MachineID,
		StepIndex:     m.StepIndex,
		SequenceOrder: m.SequenceOrder,
		Status:        string(m.Status),
		OperatorID:    m.OperatorID,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		StoppedAt:     m.StoppedAt,
		Target:        m.Target,
		Calculated:    m.Calculated,
		QualityStatus: string(m.QualityStatus),
		QualityNotes:  m.QualityNotes,
		Reason:        m.Reason,
		Note:          m.Note,
	}
}

// Machine action DTOs

// ActorRequest — запрос действия без дополнительных данных.
type ActorRequest struct {
	OperatorID uuid.UUID `json:"operator_id"`
}

// SaveProgressRequest — запрос на сохранение батча строк.
type SaveProgressRequest struct {
	OperatorID uuid.UUID            `json:"operator_id"`
	Rows       []domain.RowMutation `json:"rows"`
	Notes      string               `json:"notes,omitempty"`
}

// OverrideRequest — ручное решение контроля качества.
type OverrideRequest struct {
	Status domain.QualityStatus `json:"status"`
	Notes  []string             `json:"notes,omitempty"`
}

// CompleteRequest — запрос на завершение машины.
type CompleteRequest struct {
	OperatorID uuid.UUID            `json:"operator_id"`
	Rows       []domain.RowMutation `json:"rows,omitempty"`
	Override   *OverrideRequest     `json:"override,omitempty"`
}

// StopRequest — запрос на остановку машины. Type парсится через
// domain.ParseStopType, неизвестный тип отклоняется до engine.
type StopRequest struct {
	OperatorID      uuid.UUID            `json:"operator_id"`
	Type            string               `json:"type"`
	Reason          string               `json:"reason,omitempty"`
	Note            string               `json:"note,omitempty"`
	Rows            []domain.RowMutation `json:"rows,omitempty"`
	PlannedResumeAt *time.Time           `json:"planned_resume_at,omitempty"`
}

// SnapshotResponse — ответ с результатом применения батча.
type SnapshotResponse struct {
	Results []domain.RowResult      `json:"results"`
	Output  domain.CalculatedOutput `json:"output"`
	Machine MachineProgress         `json:"machine"`
}

// SnapshotFromDomain конвертирует workflow.ProgressSnapshot.
func SnapshotFromDomain(s *workflow.ProgressSnapshot) SnapshotResponse {
	return SnapshotResponse{
		Results: s.Results,
		Output:  s.Output,
		Machine: MachineProgressFromDomain(s.Machine),
	}
}

// RowResponse — ответ со строкой выработки.
type RowResponse struct {
	ID          uuid.UUID `json:"id"`
	GrossWeight float64   `json:"gross_weight"`
	TareWeight  float64   `json:"tare_weight"`
	NetWeight   float64   `json:"net_weight"`
	Wastage     float64   `json:"wastage"`
	Cost        float64   `json:"cost"`
	Units       int       `json:"units"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RowFromDomain конвертирует domain.ProductionRow в RowResponse.
func RowFromDomain(r *domain.ProductionRow) RowResponse {
	return RowResponse{
		ID:          r.ID,
		GrossWeight: r.GrossWeight,
		TareWeight:  r.TareWeight,
		NetWeight:   r.NetWeight(),
		Wastage:     r.Wastage,
		Cost:        r.Cost,
		Units:       r.Units,
		Note:        r.Note,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// AuditResponse — ответ с записью журнала аудита.
type AuditResponse struct {
	ID              uuid.UUID  `json:"id"`
	OrderID         uuid.UUID  `json:"order_id"`
	MachineID       *uuid.UUID `json:"machine_id,omitempty"`
	ActorID         *uuid.UUID `json:"actor_id,omitempty"`
	Action          string     `json:"action"`
	StopType        string     `json:"stop_type,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Note            string     `json:"note,omitempty"`
	PlannedResumeAt *time.Time `json:"planned_resume_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// AuditFromDomain конвертирует domain.AuditEntry в AuditResponse.
func AuditFromDomain(e *domain.AuditEntry) AuditResponse {
	return AuditResponse{
		ID:              e.ID,
		OrderID:         e.OrderID,
		MachineID:       e.MachineID,
		ActorID:         e.ActorID,
		Action:          string(e.Action),
		StopType:        string(e.StopType),
		Reason:          e.Reason,
		Note:            e.Note,
		PlannedResumeAt: e.PlannedResumeAt,
		CreatedAt:       e.CreatedAt,
	}
}

// Directory DTOs

// CreateMachineRequest — запрос на создание машины в справочнике.
type CreateMachineRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// MachineResponse — ответ с машиной справочника.
type MachineResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// MachineFromDomain конвертирует domain.Machine в MachineResponse.
func MachineFromDomain(m *domain.Machine) MachineResponse {
	return MachineResponse{
		ID:        m.ID,
		Code:      m.Code,
		Name:      m.Name,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
	}
}

// CreateOperatorRequest — запрос на создание оператора.
type CreateOperatorRequest struct {
	Name string              `json:"name"`
	Role domain.OperatorRole `json:"role,omitempty"`
}

// OperatorResponse — ответ с оператором справочника.
type OperatorResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// OperatorFromDomain конвертирует domain.Operator в OperatorResponse.
func OperatorFromDomain(o *domain.Operator) OperatorResponse {
	return OperatorResponse{
		ID:        o.ID,
		Name:      o.Name,
		Role:      string(o.Role),
		IsActive:  o.IsActive,
		CreatedAt: o.CreatedAt,
	}
}
