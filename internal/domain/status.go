package domain

// OrderStatus — статус производственного заказа.
//
// Жизненный цикл:
//
//	PENDING → IN_PROGRESS → COMPLETED
//	WAIT_APPROVAL → IN_PROGRESS (первый запуск машины переводит заказ в работу)
//	PENDING/WAIT_APPROVAL/IN_PROGRESS → CANCELLED (внешнее решение)
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, производство не начато.
	OrderStatusPending OrderStatus = "PENDING"

	// OrderStatusWaitApproval — заказ ожидает подтверждения.
	OrderStatusWaitApproval OrderStatus = "WAIT_APPROVAL"

	// OrderStatusInProgress — хотя бы одна машина была запущена.
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"

	// OrderStatusCompleted — все этапы завершены.
	OrderStatusCompleted OrderStatus = "COMPLETED"

	// OrderStatusCancelled — заказ отменён.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// CanStart возвращает true, если из этого статуса допустим запуск машин.
func (s OrderStatus) CanStart() bool {
	switch s {
	case OrderStatusPending, OrderStatusWaitApproval, OrderStatusInProgress:
		return true
	default:
		return false
	}
}

// StepStatus — статус одного этапа конвейера.
//
// Жизненный цикл:
//
//	PENDING → IN_PROGRESS → COMPLETED
//	IN_PROGRESS → BLOCKED (машина остановлена, активных не осталось)
//	BLOCKED → IN_PROGRESS (resume)
type StepStatus string

const (
	// StepStatusPending — ни одна машина этапа не запускалась.
	StepStatusPending StepStatus = "PENDING"

	// StepStatusInProgress — этап в работе.
	StepStatusInProgress StepStatus = "IN_PROGRESS"

	// StepStatusCompleted — все машины этапа завершены.
	StepStatusCompleted StepStatus = "COMPLETED"

	// StepStatusBlocked — на этапе нет работающих машин, но он не завершён
	// (машина в паузе или в ошибке).
	StepStatusBlocked StepStatus = "BLOCKED"
)

// MachineStatus — статус машины в рамках этапа заказа.
//
// Жизненный цикл (терминальное состояние — COMPLETED):
//
//	PENDING → IN_PROGRESS → COMPLETED
//	IN_PROGRESS → PAUSED → IN_PROGRESS (pause/resume)
//	IN_PROGRESS → ERROR → IN_PROGRESS (после вмешательства)
//	IN_PROGRESS → PENDING (жёсткая остановка, оператор освобождается)
type MachineStatus string

const (
	// MachineStatusPending — машина ожидает запуска.
	MachineStatusPending MachineStatus = "PENDING"

	// MachineStatusInProgress — машина работает, оператор привязан.
	MachineStatusInProgress MachineStatus = "IN_PROGRESS"

	// MachineStatusCompleted — машина завершила свою часть заказа.
	MachineStatusCompleted MachineStatus = "COMPLETED"

	// MachineStatusPaused — временная остановка, оператор сохранён.
	MachineStatusPaused MachineStatus = "PAUSED"

	// MachineStatusError — остановка по ошибке, требуется вмешательство.
	MachineStatusError MachineStatus = "ERROR"
)

// IsActive возвращает true, если к машине привязан оператор.
func (s MachineStatus) IsActive() bool {
	switch s {
	case MachineStatusInProgress, MachineStatusPaused, MachineStatusError:
		return true
	default:
		return false
	}
}

// IsStoppable возвращает true, если из этого статуса допустима остановка.
func (s MachineStatus) IsStoppable() bool {
	return s == MachineStatusInProgress || s == MachineStatusPaused
}

// StopType — тип остановки машины.
type StopType string

const (
	// StopTypePause — временная пауза, тот же оператор продолжит.
	StopTypePause StopType = "PAUSE"

	// StopTypeMaintenance — остановка на обслуживание, семантика паузы
	// с отдельной причиной в аудите.
	StopTypeMaintenance StopType = "MAINTENANCE"

	// StopTypeStop — жёсткая остановка: машина возвращается в PENDING,
	// оператор освобождается для переназначения.
	StopTypeStop StopType = "STOP"

	// StopTypeError — остановка по ошибке, оператор остаётся привязан.
	StopTypeError StopType = "ERROR"
)

// ParseStopType парсит строку в StopType.
// Возвращает false для неизвестного типа.
func ParseStopType(s string) (StopType, bool) {
	t := StopType(s)
	if !t.IsValid() {
		return "", false
	}
	return t, true
}

// IsValid возвращает true для известного типа остановки.
func (t StopType) IsValid() bool {
	switch t {
	case StopTypePause, StopTypeMaintenance, StopTypeStop, StopTypeError:
		return true
	default:
		return false
	}
}

// Priority — приоритет заказа.
type Priority string

const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityNormal Priority = "NORMAL"
	PriorityLow    Priority = "LOW"
)

// Rank возвращает числовой ранг приоритета (меньше — важнее).
// Используется для сортировки очереди работ.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// IsValid возвращает true для известного приоритета.
func (p Priority) IsValid() bool {
	return p.Rank() < 4
}

// QualityStatus — вердикт контроля качества при завершении машины.
type QualityStatus string

const (
	// QualityPassed — расчётный выпуск в пределах целевых порогов.
	QualityPassed QualityStatus = "PASSED"

	// QualityReview — нарушен хотя бы один порог, нужна проверка.
	QualityReview QualityStatus = "REVIEW"

	// QualityFailed — брак, выставляется только ручным override.
	QualityFailed QualityStatus = "FAILED"
)

// TableStatus — статус таблицы производственных строк.
type TableStatus string

const (
	// TableStatusOpen — таблица принимает мутации строк.
	TableStatusOpen TableStatus = "OPEN"

	// TableStatusPaused — таблица заморожена остановкой машины.
	TableStatusPaused TableStatus = "PAUSED"

	// TableStatusCompleted — таблица заморожена завершением машины.
	TableStatusCompleted TableStatus = "COMPLETED"
)

// OutputStatus — статус снимка расчётного выпуска.
type OutputStatus string

const (
	// OutputPartial — промежуточный снимок (save/stop).
	OutputPartial OutputStatus = "PARTIAL"

	// OutputFinal — финальный снимок, заморожен завершением машины.
	OutputFinal OutputStatus = "FINAL"
)
