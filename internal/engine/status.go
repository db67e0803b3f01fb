package engine

import (
	"time"

	"github.com/shaiso/Fabrika/internal/domain"
)

// DeriveStepStatus выводит статус этапа из статусов его машин.
// Этап не имеет собственного пути мутации — статус всегда пересчитывается
// как побочный эффект перехода машины.
//
// Правила (в порядке приоритета):
//   - все машины завершены (или этап пуст)  → COMPLETED
//   - все машины ожидают                    → PENDING
//   - есть работающая машина               → IN_PROGRESS
//   - есть пауза или ошибка                → BLOCKED
//   - иначе (смесь завершённых и ожидающих) → IN_PROGRESS
//
// Последнее правило разрешает неоднозначность спеки между «этап без
// активных машин заблокирован» и обычным зазором между последовательными
// машинами: зазор после завершения предшественника — рабочее состояние,
// блокировка — только следствие паузы/ошибки.
func DeriveStepStatus(machines []domain.MachineProgress) domain.StepStatus {
	if len(machines) == 0 {
		return domain.StepStatusCompleted
	}

	var completed, pending, running, halted int
	for i := range machines {
		switch machines[i].Status {
		case domain.MachineStatusCompleted:
			completed++
		case domain.MachineStatusPending:
			pending++
		case domain.MachineStatusInProgress:
			running++
		case domain.MachineStatusPaused, domain.MachineStatusError:
			halted++
		}
	}

	switch {
	case completed == len(machines):
		return domain.StepStatusCompleted
	case pending == len(machines):
		return domain.StepStatusPending
	case running > 0:
		return domain.StepStatusInProgress
	case halted > 0:
		return domain.StepStatusBlocked
	default:
		return domain.StepStatusInProgress
	}
}

// AllStepsCompleted возвращает true, если каждый этап заказа завершён.
func AllStepsCompleted(o *domain.Order) bool {
	for i := range o.Steps {
		if !o.Steps[i].IsCompleted() {
			return false
		}
	}
	return true
}

// NextStepIndex возвращает индекс первого незавершённого этапа.
// Для полностью завершённого заказа возвращает len(Steps).
func NextStepIndex(o *domain.Order) int {
	for i := range o.Steps {
		if !o.Steps[i].IsCompleted() {
			return i
		}
	}
	return len(o.Steps)
}

// Summarize собирает денормализованную сводку заказа.
//
// Сводка перестраивается целиком после каждой мутации; по месту она
// никогда не правится и самостоятельным источником истины не является.
func Summarize(o *domain.Order, at time.Time) domain.Summary {
	s := domain.Summary{
		TotalSteps: len(o.Steps),
		UpdatedAt:  at,
	}

	for i := range o.Steps {
		step := &o.Steps[i]
		if step.IsCompleted() {
			s.CompletedSteps++
		}
		for j := range step.Machines {
			mp := &step.Machines[j]
			s.TotalMachines++
			switch {
			case mp.Status == domain.MachineStatusCompleted:
				s.CompletedMachines++
			case mp.Status.IsActive():
				s.ActiveMachines++
			}
			if mp.Calculated != nil {
				s.NetWeight += mp.Calculated.NetWeight
				s.Wastage += mp.Calculated.Wastage
				s.Cost += mp.Calculated.Cost
			}
		}
	}

	if s.TotalMachines > 0 {
		s.Progress = float64(s.CompletedMachines) / float64(s.TotalMachines) * 100
	} else {
		s.Progress = 100
	}

	return s
}
