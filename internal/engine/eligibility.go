package engine

import (
	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
)

// CanStart проверяет допуск машины к запуску.
//
// Конвейер — это «конвейер конвейеров»: этапы выполняются строго
// последовательно, машины внутри этапа — тоже строго последовательно.
// Это намеренное упрощение, которое engine навязывает, а не свойство
// какого-то хранимого графа.
//
// Правила:
//  1. Все этапы с индексом меньше stepIndex должны быть завершены
//     (этап без машин считается завершённым и не блокирует).
//  2. Внутри целевого этапа все машины с меньшим SequenceOrder
//     должны быть завершены.
//
// Для stepIndex == 0 действует только внутриэтапная проверка.
func CanStart(o *domain.Order, stepIndex int, machineID uuid.UUID) bool {
	step, ok := o.Step(stepIndex)
	if !ok {
		return false
	}
	mp, ok := step.Machine(machineID)
	if !ok {
		return false
	}

	// Межэтапная проверка: всё, что раньше, завершено.
	for i := 0; i < stepIndex; i++ {
		if !o.Steps[i].IsCompleted() {
			return false
		}
	}

	// Внутриэтапная проверка: все предшественники по порядку завершены.
	// Дубликаты SequenceOrder отклоняются при создании заказа; если запись
	// всё же повреждена, решает порядок хранения — первая машина выигрывает.
	self := -1
	for i := range step.Machines {
		if step.Machines[i].MachineID == mp.MachineID {
			self = i
			break
		}
	}
	for i := range step.Machines {
		if i == self {
			continue
		}
		prev := &step.Machines[i]
		precedes := prev.SequenceOrder < mp.SequenceOrder ||
			(prev.SequenceOrder == mp.SequenceOrder && i < self)
		if precedes && !prev.IsFinished() {
			return false
		}
	}

	return true
}

// NextEligible возвращает первую ожидающую машину заказа, допущенную
// к запуску. Используется очередью работ по машинам.
func NextEligible(o *domain.Order) (int, *domain.MachineProgress, bool) {
	if o.IsFinished() {
		return 0, nil, false
	}
	for i := range o.Steps {
		step := &o.Steps[i]
		for j := range step.Machines {
			mp := &step.Machines[j]
			if mp.Status != domain.MachineStatusPending {
				continue
			}
			if CanStart(o, i, mp.MachineID) {
				return i, mp, true
			}
		}
	}
	return 0, nil, false
}
