package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProductionTable — таблица строк выработки одной машины по одному заказу.
//
// Создаётся пустой при запуске машины, принимает мутации пока машина
// работает, замораживается остановкой или завершением.
type ProductionTable struct {
	ID        uuid.UUID   `json:"id"`
	OrderID   uuid.UUID   `json:"order_id"`
	MachineID uuid.UUID   `json:"machine_id"`
	Status    TableStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// ProductionRow — одна строка измерений, введённая оператором.
type ProductionRow struct {
	ID      uuid.UUID `json:"id"`
	TableID uuid.UUID `json:"table_id"`

	// GrossWeight — вес брутто, кг.
	GrossWeight float64 `json:"gross_weight"`

	// TareWeight — вес тары, кг.
	TareWeight float64 `json:"tare_weight"`

	// Wastage — отходы, кг.
	Wastage float64 `json:"wastage"`

	// Cost — стоимость строки.
	Cost float64 `json:"cost"`

	// Units — количество единиц продукции.
	Units int `json:"units"`

	// Note — комментарий оператора.
	Note string `json:"note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NetWeight возвращает вес нетто строки: брутто минус тара, не меньше нуля.
func (r *ProductionRow) NetWeight() float64 {
	net := r.GrossWeight - r.TareWeight
	if net < 0 {
		return 0
	}
	return net
}

// RowPayload — данные строки в мутации от оператора.
type RowPayload struct {
	GrossWeight float64 `json:"gross_weight"`
	TareWeight  float64 `json:"tare_weight"`
	Wastage     float64 `json:"wastage"`
	Cost        float64 `json:"cost"`
	Units       int     `json:"units"`
	Note        string  `json:"note,omitempty"`
}

// Validate проверяет поля строки.
func (p *RowPayload) Validate() error {
	if p.GrossWeight < 0 || p.TareWeight < 0 || p.Wastage < 0 || p.Cost < 0 {
		return fmt.Errorf("row measurements must be non-negative")
	}
	if p.Units < 0 {
		return fmt.Errorf("units must be non-negative")
	}
	if p.TareWeight > p.GrossWeight {
		return fmt.Errorf("tare weight %g exceeds gross weight %g", p.TareWeight, p.GrossWeight)
	}
	return nil
}

// RowOp — операция над строкой.
type RowOp string

const (
	RowOpAdd    RowOp = "ADD"
	RowOpUpdate RowOp = "UPDATE"
	RowOpDelete RowOp = "DELETE"
)

// RowMutation — одна операция из упорядоченного батча saveProgress.
type RowMutation struct {
	// Op — тип операции.
	Op RowOp `json:"op"`

	// RowID — идентификатор строки, обязателен для UPDATE и DELETE.
	RowID *uuid.UUID `json:"row_id,omitempty"`

	// Row — данные строки, обязательны для ADD и UPDATE.
	Row *RowPayload `json:"row,omitempty"`
}

// RowResult — результат применения одной мутации.
// Батч применяется по порядку, отказ отдельной строки не прерывает
// остальные: частичное применение — документированный контракт.
type RowResult struct {
	Index   int       `json:"index"`
	Op      RowOp     `json:"op"`
	RowID   uuid.UUID `json:"row_id,omitempty"`
	Applied bool      `json:"applied"`
	Error   string    `json:"error,omitempty"`
}

// TotalCalculations — агрегат по всем строкам таблицы.
// Чистая свёртка: пересчитывается целиком после каждой мутации строк.
type TotalCalculations struct {
	// NetWeight — суммарный вес нетто, кг.
	NetWeight float64 `json:"net_weight"`

	// Wastage — суммарные отходы, кг.
	Wastage float64 `json:"wastage"`

	// Efficiency — нетто / (нетто + отходы) × 100.
	Efficiency float64 `json:"efficiency"`

	// Cost — суммарная стоимость.
	Cost float64 `json:"cost"`

	// Units — суммарное количество единиц.
	Units int `json:"units"`

	// Rows — количество строк.
	Rows int `json:"rows"`
}

// FoldRows сворачивает строки в TotalCalculations.
// Хранилище делает ту же свёртку SQL-агрегатом; функция используется
// вне БД (тесты, сводки в памяти).
func FoldRows(rows []ProductionRow) TotalCalculations {
	var t TotalCalculations
	for i := range rows {
		t.NetWeight += rows[i].NetWeight()
		t.Wastage += rows[i].Wastage
		t.Cost += rows[i].Cost
		t.Units += rows[i].Units
		t.Rows++
	}
	if gross := t.NetWeight + t.Wastage; gross > 0 {
		t.Efficiency = t.NetWeight / gross * 100
	}
	return t
}

// TargetOutput — целевой выпуск машины, задаётся при создании заказа.
// Нулевое значение порога означает «порог не задан».
type TargetOutput struct {
	// ExpectedWeight — ожидаемый вес нетто, кг.
	ExpectedWeight float64 `json:"expected_weight,omitempty"`

	// ExpectedEfficiency — ожидаемая эффективность, %.
	ExpectedEfficiency float64 `json:"expected_efficiency,omitempty"`

	// MaxWastage — потолок отходов, кг.
	MaxWastage float64 `json:"max_wastage,omitempty"`

	// ExpectedUnits — ожидаемое количество единиц.
	ExpectedUnits int `json:"expected_units,omitempty"`
}

// CalculatedOutput — снимок агрегата строк в момент save/stop/complete.
type CalculatedOutput struct {
	TotalCalculations

	// Status — PARTIAL для промежуточных снимков, FINAL после завершения.
	Status OutputStatus `json:"status"`

	// CalculatedAt — время снятия снимка.
	CalculatedAt time.Time `json:"calculated_at"`
}

// QualityOverride — ручное решение проверяющего, заменяет расчётный
// вердикт целиком; замечания дописываются к расчётным.
type QualityOverride struct {
	Status     QualityStatus `json:"status"`
	Notes      []string      `json:"notes,omitempty"`
	ReviewerID uuid.UUID     `json:"reviewer_id"`
}
