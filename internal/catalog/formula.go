package catalog

import (
	"errors"
	"fmt"
	"math"

	"github.com/antonmedv/expr"
	"github.com/antonmedv/expr/vm"

	"github.com/shaiso/Fabrika/internal/domain"
)

// ErrPlan — план заказа структурно некорректен.
var ErrPlan = errors.New("catalog: invalid order plan")

// Допустимые имена полей в TargetFormulas.
const (
	fieldExpectedWeight     = "expected_weight"
	fieldExpectedEfficiency = "expected_efficiency"
	fieldMaxWastage         = "max_wastage"
	fieldExpectedUnits      = "expected_units"
)

// ValidatePlan проверяет структуру плана перед созданием заказа.
//
// Требования: непустой номер, хотя бы один этап, в каждом этапе
// уникальные SequenceOrder и машины, формулы ссылаются только на
// известные поля и компилируются над Params.
func ValidatePlan(p *domain.OrderPlan) error {
	if p.Number == "" {
		return fmt.Errorf("%w: empty order number", ErrPlan)
	}
	if p.Priority != "" && !p.Priority.IsValid() {
		return fmt.Errorf("%w: unknown priority %q", ErrPlan, p.Priority)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrPlan)
	}

	for si := range p.Steps {
		step := &p.Steps[si]
		seen := make(map[int]struct{}, len(step.Machines))
		ids := make(map[[16]byte]struct{}, len(step.Machines))
		for mi := range step.Machines {
			m := &step.Machines[mi]
			if m.SequenceOrder <= 0 {
				return fmt.Errorf("%w: step %d machine %s: sequence order must be positive", ErrPlan, si, m.MachineID)
			}
			if _, dup := seen[m.SequenceOrder]; dup {
				return fmt.Errorf("%w: step %d: duplicate sequence order %d", ErrPlan, si, m.SequenceOrder)
			}
			seen[m.SequenceOrder] = struct{}{}
			if _, dup := ids[m.MachineID]; dup {
				return fmt.Errorf("%w: step %d: machine %s listed twice", ErrPlan, si, m.MachineID)
			}
			ids[m.MachineID] = struct{}{}

			for field, formula := range m.TargetFormulas {
				if !knownField(field) {
					return fmt.Errorf("%w: step %d machine %s: unknown target field %q", ErrPlan, si, m.MachineID, field)
				}
				if _, err := compile(formula, p.Params); err != nil {
					return fmt.Errorf("%w: step %d machine %s: field %q: %v", ErrPlan, si, m.MachineID, field, err)
				}
			}
		}
	}
	return nil
}

// ResolveTargets вычисляет целевые пороги для машины плана.
//
// Результат начинается со статически заданного Target; каждое
// вычисленное по формуле поле перекрывает статическое значение.
// Отрицательный результат формулы — ошибка: пороги не бывают
// отрицательными.
func ResolveTargets(m *domain.MachinePlan, params map[string]float64) (domain.TargetOutput, error) {
	target := m.Target
	for field, formula := range m.TargetFormulas {
		v, err := evaluate(formula, params)
		if err != nil {
			return domain.TargetOutput{}, fmt.Errorf("%w: field %q: %v", ErrPlan, field, err)
		}
		if v < 0 {
			return domain.TargetOutput{}, fmt.Errorf("%w: field %q: formula yields negative value %v", ErrPlan, field, v)
		}
		switch field {
		case fieldExpectedWeight:
			target.ExpectedWeight = v
		case fieldExpectedEfficiency:
			target.ExpectedEfficiency = v
		case fieldMaxWastage:
			target.MaxWastage = v
		case fieldExpectedUnits:
			target.ExpectedUnits = int(math.Round(v))
		default:
			return domain.TargetOutput{}, fmt.Errorf("%w: unknown target field %q", ErrPlan, field)
		}
	}
	return target, nil
}

func knownField(name string) bool {
	switch name {
	case fieldExpectedWeight, fieldExpectedEfficiency, fieldMaxWastage, fieldExpectedUnits:
		return true
	}
	return false
}

func compile(formula string, params map[string]float64) (*vm.Program, error) {
	program, err := expr.Compile(formula, expr.Env(exprEnv(params)))
	if err != nil {
		return nil, fmt.Errorf("compile: %v", err)
	}
	return program, nil
}

func evaluate(formula string, params map[string]float64) (float64, error) {
	program, err := compile(formula, params)
	if err != nil {
		return 0, err
	}
	result, err := expr.Run(program, exprEnv(params))
	if err != nil {
		return 0, fmt.Errorf("run: %v", err)
	}
	switch v := result.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("result is %T, want a number", result)
	}
}

func exprEnv(params map[string]float64) map[string]interface{} {
	env := make(map[string]interface{}, len(params))
	for k, v := range params {
		env[k] = v
	}
	return env
}
