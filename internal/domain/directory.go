package domain

import (
	"time"

	"github.com/google/uuid"
)

// Machine — запись справочника машин.
type Machine struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// OperatorRole — роль человека в справочнике.
type OperatorRole string

const (
	// RoleOperator — оператор, действует только на назначенных машинах.
	RoleOperator OperatorRole = "OPERATOR"

	// RoleSupervisor — супервизор, действует на любой машине.
	RoleSupervisor OperatorRole = "SUPERVISOR"
)

// Operator — запись справочника операторов.
type Operator struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Role      OperatorRole `json:"role"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

// StalledMachine — машина, застрявшая в PAUSED/ERROR дольше порога.
// Находится watchdog'ом по времени последней остановки.
type StalledMachine struct {
	OrderID   uuid.UUID     `json:"order_id"`
	MachineID uuid.UUID     `json:"machine_id"`
	Status    MachineStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Since     time.Time     `json:"since"`
}
