package domain

import (
	"time"

	"github.com/google/uuid"
)

// MachineProgress — запись выполнения одной машины в рамках одного этапа
// одного заказа.
//
// Все переходы статуса выполняются условными записями на уровне хранилища
// (compare-and-swap по текущему статусу), поэтому запись никогда не
// оказывается в неопределённом состоянии при конкурентных запросах.
type MachineProgress struct {
	// OrderID — заказ, к которому относится запись.
	OrderID uuid.UUID `json:"order_id"`

	// StepIndex — этап, на котором работает машина.
	StepIndex int `json:"step_index"`

	// MachineID — ссылка на машину в справочнике.
	MachineID uuid.UUID `json:"machine_id"`

	// SequenceOrder — явный порядок машины внутри этапа.
	// Уникален в пределах этапа, проверяется при создании заказа,
	// от позиции в массиве хранения не зависит.
	SequenceOrder int `json:"sequence_order"`

	// Status — текущий статус машины.
	Status MachineStatus `json:"status"`

	// OperatorID — привязанный оператор.
	// Не nil только в статусах IN_PROGRESS/PAUSED/ERROR;
	// жёсткая остановка очищает привязку.
	OperatorID *uuid.UUID `json:"operator_id,omitempty"`

	// StartedAt — время последнего запуска или продолжения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// StoppedAt — время последней остановки (pause/stop/error).
	// По этой отметке watchdog находит застрявшие машины.
	StoppedAt *time.Time `json:"stopped_at,omitempty"`

	// TableID — таблица производственных строк этой машины.
	// Создаётся пустой при первом запуске.
	TableID *uuid.UUID `json:"table_id,omitempty"`

	// Target — целевой выпуск, задаётся при создании заказа.
	Target TargetOutput `json:"target"`

	// Calculated — снимок агрегированных строк на момент последнего
	// save/stop/complete. После COMPLETED неизменен.
	Calculated *CalculatedOutput `json:"calculated,omitempty"`

	// QualityStatus — вердикт контроля качества, выставляется при завершении.
	QualityStatus QualityStatus `json:"quality_status,omitempty"`

	// QualityNotes — замечания контроля качества.
	QualityNotes []string `json:"quality_notes,omitempty"`

	// Reason — причина последней остановки/паузы.
	Reason string `json:"reason,omitempty"`

	// Note — свободный комментарий последней остановки/паузы.
	Note string `json:"note,omitempty"`
}

// IsFinished возвращает true, если машина завершила работу.
func (m *MachineProgress) IsFinished() bool {
	return m.Status == MachineStatusCompleted
}

// BoundTo возвращает true, если к машине привязан именно этот оператор.
func (m *MachineProgress) BoundTo(operatorID uuid.UUID) bool {
	return m.OperatorID != nil && *m.OperatorID == operatorID
}

// MarkStarted переводит запись в IN_PROGRESS с привязкой оператора
// и новой таблицей строк.
func (m *MachineProgress) MarkStarted(operatorID, tableID uuid.UUID, at time.Time) {
	m.Status = MachineStatusInProgress
	m.OperatorID = &operatorID
	m.StartedAt = &at
	m.TableID = &tableID
}

// MarkPaused переводит запись в PAUSED, оператор сохраняется.
func (m *MachineProgress) MarkPaused(reason, note string, at time.Time) {
	m.Status = MachineStatusPaused
	m.Reason = reason
	m.Note = note
	m.StoppedAt = &at
}

// MarkError переводит запись в ERROR, оператор сохраняется.
func (m *MachineProgress) MarkError(reason, note string, at time.Time) {
	m.Status = MachineStatusError
	m.Reason = reason
	m.Note = note
	m.StoppedAt = &at
}

// MarkReleased возвращает запись в PENDING после жёсткой остановки.
// Привязка оператора очищается, частичный выпуск и таблица строк остаются.
func (m *MachineProgress) MarkReleased(reason, note string, at time.Time) {
	m.Status = MachineStatusPending
	m.OperatorID = nil
	m.StartedAt = nil
	m.Reason = reason
	m.Note = note
	m.StoppedAt = &at
}

// MarkResumed возвращает запись в IN_PROGRESS после паузы или ошибки.
// StartedAt получает новую отметку продолжения, данные строк не трогаются.
func (m *MachineProgress) MarkResumed(operatorID uuid.UUID, at time.Time) {
	m.Status = MachineStatusInProgress
	m.OperatorID = &operatorID
	m.StartedAt = &at
	m.Reason = ""
	m.Note = ""
	m.StoppedAt = nil
}

// MarkCompleted переводит запись в COMPLETED с финальным снимком выпуска
// и вердиктом качества. Дальнейшие изменения снимка запрещены.
func (m *MachineProgress) MarkCompleted(at time.Time, out CalculatedOutput, quality QualityStatus, notes []string) {
	m.Status = MachineStatusCompleted
	m.CompletedAt = &at
	m.Calculated = &out
	m.QualityStatus = quality
	m.QualityNotes = notes
}
