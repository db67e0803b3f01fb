package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction — тип записи в журнале аудита.
type AuditAction string

const (
	AuditOrderCreated AuditAction = "order.created"
	AuditStart        AuditAction = "machine.start"
	AuditSaveProgress AuditAction = "machine.save_progress"
	AuditStop         AuditAction = "machine.stop"
	AuditResume       AuditAction = "machine.resume"
	AuditComplete     AuditAction = "machine.complete"
	AuditStalled      AuditAction = "machine.stalled"
)

// AuditEntry — запись журнала аудита.
//
// Журнал только накапливается; записи не влияют на состояние конвейера.
// PlannedResumeAt — справочная отметка, никакого принудительного
// возобновления по ней не происходит.
type AuditEntry struct {
	ID              uuid.UUID   `json:"id"`
	OrderID         uuid.UUID   `json:"order_id"`
	MachineID       *uuid.UUID  `json:"machine_id,omitempty"`
	ActorID         *uuid.UUID  `json:"actor_id,omitempty"`
	Action          AuditAction `json:"action"`
	StopType        StopType    `json:"stop_type,omitempty"`
	Reason          string      `json:"reason,omitempty"`
	Note            string      `json:"note,omitempty"`
	PlannedResumeAt *time.Time  `json:"planned_resume_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
