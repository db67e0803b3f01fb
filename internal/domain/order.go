package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order — производственный заказ, проходящий через конвейер этапов.
//
// Заказ владеет своими этапами, этап владеет записями прогресса машин:
// общих изменяемых объектов между заказами нет, адресация — по позиции
// в дереве.
type Order struct {
	// ID — уникальный идентификатор заказа.
	ID uuid.UUID `json:"id"`

	// Number — человекочитаемый номер заказа.
	Number string `json:"number"`

	// Status — текущий статус заказа.
	Status OrderStatus `json:"status"`

	// Priority — приоритет в очереди работ.
	Priority Priority `json:"priority"`

	// CurrentStepIndex — индекс первого незавершённого этапа.
	// Равен len(Steps), когда заказ полностью завершён.
	CurrentStepIndex int `json:"current_step_index"`

	// Steps — упорядоченный список этапов. Порядок фиксируется при
	// создании заказа и не меняется.
	Steps []OrderStep `json:"steps"`

	// Summary — денормализованная сводка прогресса.
	// Перестраивается engine.Summarize после каждой мутации,
	// самостоятельным источником истины не является.
	Summary *Summary `json:"summary,omitempty"`

	// ActualStartAt — фактическое начало производства.
	// Устанавливается один раз при первом запуске машины.
	ActualStartAt *time.Time `json:"actual_start_at,omitempty"`

	// ActualEndAt — фактическое завершение производства.
	// Устанавливается один раз при завершении последнего этапа.
	ActualEndAt *time.Time `json:"actual_end_at,omitempty"`

	// CreatedAt — время создания заказа.
	CreatedAt time.Time `json:"created_at"`
}

// Step возвращает этап по индексу.
func (o *Order) Step(index int) (*OrderStep, bool) {
	if index < 0 || index >= len(o.Steps) {
		return nil, false
	}
	return &o.Steps[index], true
}

// FindMachine ищет запись прогресса машины по всему дереву заказа.
// Возвращает индекс этапа и указатель на запись.
func (o *Order) FindMachine(machineID uuid.UUID) (int, *MachineProgress, bool) {
	for i := range o.Steps {
		if mp, ok := o.Steps[i].Machine(machineID); ok {
			return i, mp, true
		}
	}
	return 0, nil, false
}

// IsFinished возвращает true, если заказ в терминальном статусе.
func (o *Order) IsFinished() bool {
	return o.Status.IsTerminal()
}

// MarkInProgress переводит заказ в IN_PROGRESS.
// ActualStartAt устанавливается только при первом вызове.
func (o *Order) MarkInProgress(at time.Time) {
	o.Status = OrderStatusInProgress
	if o.ActualStartAt == nil {
		o.ActualStartAt = &at
	}
}

// MarkCompleted переводит заказ в COMPLETED.
// ActualEndAt устанавливается только при первом вызове.
func (o *Order) MarkCompleted(at time.Time) {
	o.Status = OrderStatusCompleted
	o.CurrentStepIndex = len(o.Steps)
	if o.ActualEndAt == nil {
		o.ActualEndAt = &at
	}
}

// OrderStep — один этап конвейера внутри заказа.
type OrderStep struct {
	// StepIndex — позиция этапа в заказе, неизменна после создания.
	StepIndex int `json:"step_index"`

	// StepID — ссылка на определение этапа в каталоге (не принадлежит ядру).
	StepID uuid.UUID `json:"step_id"`

	// Status — статус этапа, всегда выводится из статусов машин.
	Status StepStatus `json:"status"`

	// StartedAt — время запуска первой машины этапа.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения последней машины этапа.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Machines — записи прогресса машин, упорядочены по SequenceOrder.
	Machines []MachineProgress `json:"machines"`
}

// Machine возвращает запись прогресса машины этапа.
func (s *OrderStep) Machine(machineID uuid.UUID) (*MachineProgress, bool) {
	for i := range s.Machines {
		if s.Machines[i].MachineID == machineID {
			return &s.Machines[i], true
		}
	}
	return nil, false
}

// IsCompleted возвращает true, если этап завершён.
// Этап без машин считается завершённым сразу и никогда не блокирует конвейер.
func (s *OrderStep) IsCompleted() bool {
	if len(s.Machines) == 0 {
		return true
	}
	return s.Status == StepStatusCompleted
}

// Summary — денормализованная сводка прогресса заказа.
//
// Содержит только производные данные; пересобирается целиком после каждой
// мутации и нигде не правится вручную.
type Summary struct {
	TotalSteps        int     `json:"total_steps"`
	CompletedSteps    int     `json:"completed_steps"`
	TotalMachines     int     `json:"total_machines"`
	ActiveMachines    int     `json:"active_machines"`
	CompletedMachines int     `json:"completed_machines"`
	NetWeight         float64 `json:"net_weight"`
	Wastage           float64 `json:"wastage"`
	Cost              float64 `json:"cost"`
	// Progress — доля завершённых машин, 0..100.
	Progress  float64   `json:"progress"`
	UpdatedAt time.Time `json:"updated_at"`
}
