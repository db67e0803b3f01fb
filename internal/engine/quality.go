package engine

import (
	"fmt"

	"github.com/shaiso/Fabrika/internal/domain"
)

// weightShortfallFactor — доля целевого веса, ниже которой выпуск
// уходит на проверку.
const weightShortfallFactor = 0.9

// Evaluate — контроль качества расчётного выпуска против целевых порогов.
//
// По умолчанию вердикт PASSED. Каждый заданный порог проверяется
// независимо; любое нарушение понижает вердикт до REVIEW и добавляет
// замечание. Ручной override заменяет вычисленный вердикт целиком,
// его замечания дописываются к вычисленным.
//
// Функция чистая: без побочных эффектов, детерминирована по входу.
func Evaluate(calc domain.CalculatedOutput, target domain.TargetOutput, override *domain.QualityOverride) (domain.QualityStatus, []string) {
	status := domain.QualityPassed
	var notes []string

	if target.ExpectedWeight > 0 && calc.NetWeight < target.ExpectedWeight*weightShortfallFactor {
		status = domain.QualityReview
		notes = append(notes, fmt.Sprintf(
			"net weight %.2f below %.0f%% of expected %.2f",
			calc.NetWeight, weightShortfallFactor*100, target.ExpectedWeight))
	}

	if target.ExpectedEfficiency > 0 && calc.Efficiency < target.ExpectedEfficiency {
		status = domain.QualityReview
		notes = append(notes, fmt.Sprintf(
			"efficiency %.2f%% below expected %.2f%%",
			calc.Efficiency, target.ExpectedEfficiency))
	}

	if target.MaxWastage > 0 && calc.Wastage > target.MaxWastage {
		status = domain.QualityReview
		notes = append(notes, fmt.Sprintf(
			"wastage %.2f exceeds limit %.2f",
			calc.Wastage, target.MaxWastage))
	}

	if override != nil {
		status = override.Status
		notes = append(notes, override.Notes...)
	}

	return status, notes
}
