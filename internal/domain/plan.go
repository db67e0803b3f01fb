package domain

import "github.com/google/uuid"

// OrderPlan — план заказа, полученный от каталога при создании.
//
// Ядро план не изменяет: этапы, машины и их порядок фиксируются один раз.
type OrderPlan struct {
	// Number — человекочитаемый номер заказа.
	Number string `json:"number"`

	// Priority — приоритет, по умолчанию NORMAL.
	Priority Priority `json:"priority,omitempty"`

	// RequiresApproval — создать заказ в статусе WAIT_APPROVAL.
	RequiresApproval bool `json:"requires_approval,omitempty"`

	// Params — параметры заказа для формул целевого выпуска
	// (количество, плотность плёнки и т.п.).
	Params map[string]float64 `json:"params,omitempty"`

	// Steps — упорядоченный план этапов.
	Steps []StepPlan `json:"steps"`
}

// StepPlan — план одного этапа.
type StepPlan struct {
	// StepID — ссылка на определение этапа в каталоге.
	StepID uuid.UUID `json:"step_id"`

	// Machines — машины этапа с явным порядком выполнения.
	Machines []MachinePlan `json:"machines"`
}

// MachinePlan — план одной машины внутри этапа.
type MachinePlan struct {
	// MachineID — ссылка на машину в справочнике.
	MachineID uuid.UUID `json:"machine_id"`

	// SequenceOrder — порядок выполнения внутри этапа, уникален в этапе.
	SequenceOrder int `json:"sequence_order"`

	// Target — целевой выпуск, заданный напрямую.
	Target TargetOutput `json:"target,omitempty"`

	// TargetFormulas — формулы целевого выпуска по имени поля
	// ("expected_weight", "expected_efficiency", "max_wastage",
	// "expected_units"). Вычисляются каталогом над Params и имеют
	// приоритет над Target.
	TargetFormulas map[string]string `json:"target_formulas,omitempty"`
}
