package engine

import (
	"testing"
	"time"

	"github.com/shaiso/Fabrika/internal/domain"
)

func machines(statuses ...domain.MachineStatus) []domain.MachineProgress {
	out := make([]domain.MachineProgress, len(statuses))
	for i, s := range statuses {
		out[i].Status = s
		out[i].SequenceOrder = i + 1
	}
	return out
}

func TestDeriveStepStatus(t *testing.T) {
	tests := []struct {
		name string
		in   []domain.MachineProgress
		want domain.StepStatus
	}{
		{"empty step is completed", machines(), domain.StepStatusCompleted},
		{"all pending", machines(domain.MachineStatusPending, domain.MachineStatusPending), domain.StepStatusPending},
		{"all completed", machines(domain.MachineStatusCompleted, domain.MachineStatusCompleted), domain.StepStatusCompleted},
		{"one running", machines(domain.MachineStatusInProgress, domain.MachineStatusPending), domain.StepStatusInProgress},
		{"paused without active siblings", machines(domain.MachineStatusPaused, domain.MachineStatusPending), domain.StepStatusBlocked},
		{"error without active siblings", machines(domain.MachineStatusError, domain.MachineStatusCompleted), domain.StepStatusBlocked},
		{"paused next to a running sibling", machines(domain.MachineStatusPaused, domain.MachineStatusInProgress), domain.StepStatusInProgress},
		{"gap between sequential machines", machines(domain.MachineStatusCompleted, domain.MachineStatusPending), domain.StepStatusInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStepStatus(tt.in); got != tt.want {
				t.Errorf("DeriveStepStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAllStepsCompleted(t *testing.T) {
	o, _ := testOrder(
		[]domain.MachineStatus{domain.MachineStatusCompleted},
		[]domain.MachineStatus{domain.MachineStatusCompleted},
	)
	for i := range o.Steps {
		o.Steps[i].Status = DeriveStepStatus(o.Steps[i].Machines)
	}

	if !AllStepsCompleted(o) {
		t.Error("all steps completed should hold")
	}
	if got := NextStepIndex(o); got != 2 {
		t.Errorf("NextStepIndex = %d, want 2 (past the end)", got)
	}

	o.Steps[1].Machines[0].Status = domain.MachineStatusInProgress
	o.Steps[1].Status = DeriveStepStatus(o.Steps[1].Machines)
	if AllStepsCompleted(o) {
		t.Error("order with a running machine is not completed")
	}
	if got := NextStepIndex(o); got != 1 {
		t.Errorf("NextStepIndex = %d, want 1", got)
	}
}

func TestSummarize(t *testing.T) {
	o, _ := testOrder(
		[]domain.MachineStatus{domain.MachineStatusCompleted, domain.MachineStatusInProgress},
		[]domain.MachineStatus{domain.MachineStatusPending},
	)
	for i := range o.Steps {
		o.Steps[i].Status = DeriveStepStatus(o.Steps[i].Machines)
	}
	o.Steps[0].Machines[0].Calculated = &domain.CalculatedOutput{
		TotalCalculations: domain.TotalCalculations{NetWeight: 90, Wastage: 10, Cost: 200, Rows: 3},
		Status:            domain.OutputFinal,
	}
	o.Steps[0].Machines[1].Calculated = &domain.CalculatedOutput{
		TotalCalculations: domain.TotalCalculations{NetWeight: 40, Wastage: 5, Cost: 80, Rows: 1},
		Status:            domain.OutputPartial,
	}

	now := time.Now()
	s := Summarize(o, now)

	if s.TotalSteps != 2 || s.CompletedSteps != 0 {
		t.Errorf("steps = %d/%d, want 0/2", s.CompletedSteps, s.TotalSteps)
	}
	if s.TotalMachines != 3 || s.CompletedMachines != 1 || s.ActiveMachines != 1 {
		t.Errorf("machines = total %d completed %d active %d", s.TotalMachines, s.CompletedMachines, s.ActiveMachines)
	}
	if s.NetWeight != 130 || s.Wastage != 15 || s.Cost != 280 {
		t.Errorf("aggregates = %v/%v/%v", s.NetWeight, s.Wastage, s.Cost)
	}
	if s.Progress < 33.2 || s.Progress > 33.4 {
		t.Errorf("progress = %v, want ~33.3", s.Progress)
	}
	if !s.UpdatedAt.Equal(now) {
		t.Error("UpdatedAt should be the supplied timestamp")
	}
}
