package catalog

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
)

func validPlan() *domain.OrderPlan {
	return &domain.OrderPlan{
		Number: "ORD-1001",
		Params: map[string]float64{"quantity": 500, "density": 0.92},
		Steps: []domain.StepPlan{
			{
				StepID: uuid.New(),
				Machines: []domain.MachinePlan{
					{MachineID: uuid.New(), SequenceOrder: 1},
					{MachineID: uuid.New(), SequenceOrder: 2},
				},
			},
		},
	}
}

func TestValidatePlan(t *testing.T) {
	if err := ValidatePlan(validPlan()); err != nil {
		t.Fatalf("valid plan rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*domain.OrderPlan)
	}{
		{"empty number", func(p *domain.OrderPlan) { p.Number = "" }},
		{"no steps", func(p *domain.OrderPlan) { p.Steps = nil }},
		{"unknown priority", func(p *domain.OrderPlan) { p.Priority = "SOMEDAY" }},
		{"duplicate sequence order", func(p *domain.OrderPlan) {
			p.Steps[0].Machines[1].SequenceOrder = 1
		}},
		{"zero sequence order", func(p *domain.OrderPlan) {
			p.Steps[0].Machines[0].SequenceOrder = 0
		}},
		{"machine listed twice", func(p *domain.OrderPlan) {
			p.Steps[0].Machines[1].MachineID = p.Steps[0].Machines[0].MachineID
		}},
		{"unknown formula field", func(p *domain.OrderPlan) {
			p.Steps[0].Machines[0].TargetFormulas = map[string]string{"weight": "quantity"}
		}},
		{"formula does not compile", func(p *domain.OrderPlan) {
			p.Steps[0].Machines[0].TargetFormulas = map[string]string{"expected_weight": "quantity *"}
		}},
		{"formula references unknown param", func(p *domain.OrderPlan) {
			p.Steps[0].Machines[0].TargetFormulas = map[string]string{"expected_weight": "volume * 2"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(p)
			err := ValidatePlan(p)
			if !errors.Is(err, ErrPlan) {
				t.Errorf("err = %v, want ErrPlan", err)
			}
		})
	}
}

func TestResolveTargets(t *testing.T) {
	params := map[string]float64{"quantity": 500, "density": 0.92}
	m := &domain.MachinePlan{
		MachineID:     uuid.New(),
		SequenceOrder: 1,
		Target:        domain.TargetOutput{ExpectedWeight: 10, MaxWastage: 5},
		TargetFormulas: map[string]string{
			"expected_weight": "quantity * density",
			"expected_units":  "quantity / 2",
		},
	}

	target, err := ResolveTargets(m, params)
	if err != nil {
		t.Fatalf("ResolveTargets: %v", err)
	}
	if target.ExpectedWeight != 460 {
		t.Errorf("ExpectedWeight = %v, want 460 (formula wins over static)", target.ExpectedWeight)
	}
	if target.ExpectedUnits != 250 {
		t.Errorf("ExpectedUnits = %v, want 250", target.ExpectedUnits)
	}
	if target.MaxWastage != 5 {
		t.Errorf("MaxWastage = %v, want static value kept", target.MaxWastage)
	}
}

func TestResolveTargets_NegativeResult(t *testing.T) {
	m := &domain.MachinePlan{
		MachineID:      uuid.New(),
		SequenceOrder:  1,
		TargetFormulas: map[string]string{"max_wastage": "quantity - 1000"},
	}

	_, err := ResolveTargets(m, map[string]float64{"quantity": 500})
	if !errors.Is(err, ErrPlan) {
		t.Errorf("err = %v, want ErrPlan for negative threshold", err)
	}
}

func TestResolveTargets_NoFormulas(t *testing.T) {
	m := &domain.MachinePlan{
		MachineID:     uuid.New(),
		SequenceOrder: 1,
		Target:        domain.TargetOutput{ExpectedEfficiency: 85},
	}

	target, err := ResolveTargets(m, nil)
	if err != nil {
		t.Fatalf("ResolveTargets: %v", err)
	}
	if target.ExpectedEfficiency != 85 {
		t.Errorf("static target must pass through unchanged, got %+v", target)
	}
}
