package engine

import (
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
)

// testOrder builds an order with the given machine statuses per step.
// Machine IDs are returned in step-major order.
func testOrder(steps ...[]domain.MachineStatus) (*domain.Order, [][]uuid.UUID) {
	o := &domain.Order{
		ID:     uuid.New(),
		Status: domain.OrderStatusInProgress,
	}
	ids := make([][]uuid.UUID, len(steps))
	for i, statuses := range steps {
		step := domain.OrderStep{
			StepIndex: i,
			StepID:    uuid.New(),
			Status:    domain.StepStatusPending,
		}
		for j, st := range statuses {
			id := uuid.New()
			ids[i] = append(ids[i], id)
			step.Machines = append(step.Machines, domain.MachineProgress{
				OrderID:       o.ID,
				StepIndex:     i,
				MachineID:     id,
				SequenceOrder: j + 1,
				Status:        st,
			})
		}
		step.Status = DeriveStepStatus(step.Machines)
		o.Steps = append(o.Steps, step)
	}
	return o, ids
}

func TestCanStart_FirstMachineOfFirstStep(t *testing.T) {
	o, ids := testOrder(
		[]domain.MachineStatus{domain.MachineStatusPending, domain.MachineStatusPending},
		[]domain.MachineStatus{domain.MachineStatusPending},
	)

	if !CanStart(o, 0, ids[0][0]) {
		t.Error("first machine of first step should be eligible")
	}
}

func TestCanStart_SecondMachineBlockedBySibling(t *testing.T) {
	// Step 1 has machines [A, B]: B must wait for A.
	o, ids := testOrder(
		[]domain.MachineStatus{domain.MachineStatusPending, domain.MachineStatusPending},
		[]domain.MachineStatus{domain.MachineStatusPending},
	)

	if CanStart(o, 0, ids[0][1]) {
		t.Error("B should not be eligible before A completes")
	}

	// Complete A — B becomes eligible.
	o.Steps[0].Machines[0].Status = domain.MachineStatusCompleted
	if !CanStart(o, 0, ids[0][1]) {
		t.Error("B should be eligible after A completes")
	}
}

func TestCanStart_NextStepBlockedByPreviousStep(t *testing.T) {
	// Step 2 machine C must wait for both A and B.
	o, ids := testOrder(
		[]domain.MachineStatus{domain.MachineStatusPending, domain.MachineStatusPending},
		[]domain.MachineStatus{domain.MachineStatusPending},
	)

	if CanStart(o, 1, ids[1][0]) {
		t.Error("C should not be eligible before step 1 completes")
	}

	// A completed, B still pending — step 1 not done.
	o.Steps[0].Machines[0].Status = domain.MachineStatusCompleted
	o.Steps[0].Status = DeriveStepStatus(o.Steps[0].Machines)
	if CanStart(o, 1, ids[1][0]) {
		t.Error("C should not be eligible while B is pending")
	}

	// Both completed — C is eligible.
	o.Steps[0].Machines[1].Status = domain.MachineStatusCompleted
	o.Steps[0].Status = DeriveStepStatus(o.Steps[0].Machines)
	if !CanStart(o, 1, ids[1][0]) {
		t.Error("C should be eligible after step 1 completes")
	}
}

func TestCanStart_EmptyStepNeverBlocks(t *testing.T) {
	// Step 1 has no machines: step 2 is eligible immediately.
	o, ids := testOrder(
		[]domain.MachineStatus{},
		[]domain.MachineStatus{domain.MachineStatusPending},
	)

	if !CanStart(o, 1, ids[1][0]) {
		t.Error("empty step should not block the next step")
	}
}

func TestCanStart_UnknownTargets(t *testing.T) {
	o, _ := testOrder([]domain.MachineStatus{domain.MachineStatusPending})

	if CanStart(o, 5, uuid.New()) {
		t.Error("out-of-range step index should not be eligible")
	}
	if CanStart(o, 0, uuid.New()) {
		t.Error("unknown machine should not be eligible")
	}
}

func TestCanStart_Monotonic(t *testing.T) {
	// Once eligible, eligibility holds while other machines only progress.
	o, ids := testOrder(
		[]domain.MachineStatus{domain.MachineStatusCompleted, domain.MachineStatusPending},
		[]domain.MachineStatus{domain.MachineStatusPending},
	)

	if !CanStart(o, 0, ids[0][1]) {
		t.Fatal("B should be eligible")
	}

	// Forward transitions elsewhere never revoke eligibility.
	o.Steps[0].Machines[1].Status = domain.MachineStatusPending // no-op
	if !CanStart(o, 0, ids[0][1]) {
		t.Error("eligibility should be stable without regressions")
	}

	// A regression (completed machine released) does revoke it.
	o.Steps[0].Machines[0].Status = domain.MachineStatusPending
	if CanStart(o, 0, ids[0][1]) {
		t.Error("eligibility should be revoked when a predecessor regresses")
	}
}

func TestCanStart_DuplicateSequenceOrderFirstWins(t *testing.T) {
	// Corrupted data: two machines share a sequence order.
	// Stored array order decides — the first one wins.
	o, ids := testOrder(
		[]domain.MachineStatus{domain.MachineStatusPending, domain.MachineStatusPending},
	)
	o.Steps[0].Machines[1].SequenceOrder = o.Steps[0].Machines[0].SequenceOrder

	if !CanStart(o, 0, ids[0][0]) {
		t.Error("first machine in stored order should be eligible")
	}
	if CanStart(o, 0, ids[0][1]) {
		t.Error("second machine should wait for the first")
	}
}

func TestNextEligible(t *testing.T) {
	o, ids := testOrder(
		[]domain.MachineStatus{domain.MachineStatusCompleted, domain.MachineStatusPending},
		[]domain.MachineStatus{domain.MachineStatusPending},
	)
	o.Steps[0].Status = DeriveStepStatus(o.Steps[0].Machines)

	stepIdx, mp, ok := NextEligible(o)
	if !ok {
		t.Fatal("expected an eligible machine")
	}
	if stepIdx != 0 || mp.MachineID != ids[0][1] {
		t.Errorf("expected B on step 0, got step %d machine %s", stepIdx, mp.MachineID)
	}

	// Finished order has no eligible work.
	o.Status = domain.OrderStatusCompleted
	if _, _, ok := NextEligible(o); ok {
		t.Error("completed order should have no eligible machines")
	}
}
