package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Fabrika/internal/domain"
)

// ProductionRepo — репозиторий производственных таблиц и строк.
//
// Строки — источник истины для агрегатов: Totals сворачивает их
// SQL-агрегатом при каждом пересчёте, снимок хранится отдельно
// в machine_progress.
type ProductionRepo struct {
	pool *pgxpool.Pool
}

// NewProductionRepo создаёт новый ProductionRepo.
func NewProductionRepo(pool *pgxpool.Pool) *ProductionRepo {
	return &ProductionRepo{pool: pool}
}

// CreateTable создаёт пустую таблицу строк.
func (r *ProductionRepo) CreateTable(ctx context.Context, t *domain.ProductionTable) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO production_tables (id, order_id, machine_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.OrderID, t.MachineID, t.Status, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert production table: %w", err)
	}
	return nil
}

// SetTableStatus переключает статус таблицы.
func (r *ProductionRepo) SetTableStatus(ctx context.Context, tableID uuid.UUID, status domain.TableStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE production_tables
		SET status = $2
		WHERE id = $1
	`, tableID, status)
	if err != nil {
		return fmt.Errorf("set table status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRow добавляет строку в таблицу.
func (r *ProductionRepo) AddRow(ctx context.Context, row *domain.ProductionRow) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO production_rows (id, table_id, gross_weight, tare_weight, wastage, cost, units, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		row.ID,
		row.TableID,
		row.GrossWeight,
		row.TareWeight,
		row.Wastage,
		row.Cost,
		row.Units,
		nullString(row.Note),
		row.CreatedAt,
		row.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert production row: %w", err)
	}
	return nil
}

// UpdateRow переписывает строку. Строка адресуется парой
// (table_id, row_id) — чужую таблицу задеть нельзя.
func (r *ProductionRepo) UpdateRow(ctx context.Context, tableID, rowID uuid.UUID, p domain.RowPayload, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE production_rows
		SET gross_weight = $3, tare_weight = $4, wastage = $5, cost = $6, units = $7, note = $8, updated_at = $9
		WHERE table_id = $1 AND id = $2
	`, tableID, rowID, p.GrossWeight, p.TareWeight, p.Wastage, p.Cost, p.Units, nullString(p.Note), at)
	if err != nil {
		return fmt.Errorf("update production row: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRow удаляет строку.
func (r *ProductionRepo) DeleteRow(ctx context.Context, tableID, rowID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM production_rows
		WHERE table_id = $1 AND id = $2
	`, tableID, rowID)
	if err != nil {
		return fmt.Errorf("delete production row: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRows возвращает строки таблицы в порядке создания.
func (r *ProductionRepo) ListRows(ctx context.Context, tableID uuid.UUID) ([]domain.ProductionRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, table_id, gross_weight, tare_weight, wastage, cost, units, note, created_at, updated_at
		FROM production_rows
		WHERE table_id = $1
		ORDER BY created_at ASC
	`, tableID)
	if err != nil {
		return nil, fmt.Errorf("list production rows: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductionRow
	for rows.Next() {
		var pr domain.ProductionRow
		var note *string
		err := rows.Scan(
			&pr.ID,
			&pr.TableID,
			&pr.GrossWeight,
			&pr.TareWeight,
			&pr.Wastage,
			&pr.Cost,
			&pr.Units,
			&note,
			&pr.CreatedAt,
			&pr.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan production row: %w", err)
		}
		if note != nil {
			pr.Note = *note
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// Totals сворачивает строки таблицы в агрегат одним запросом.
// Вес нетто строки ограничен нулём снизу, как в domain.FoldRows.
func (r *ProductionRepo) Totals(ctx context.Context, tableID uuid.UUID) (domain.TotalCalculations, error) {
	var t domain.TotalCalculations

	row := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(GREATEST(gross_weight - tare_weight, 0)), 0),
		       COALESCE(SUM(wastage), 0),
		       COALESCE(SUM(cost), 0),
		       COALESCE(SUM(units), 0),
		       COUNT(*)
		FROM production_rows
		WHERE table_id = $1
	`, tableID)

	err := row.Scan(&t.NetWeight, &t.Wastage, &t.Cost, &t.Units, &t.Rows)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("fold production rows: %w", err)
	}

	if t.NetWeight+t.Wastage > 0 {
		t.Efficiency = t.NetWeight / (t.NetWeight + t.Wastage) * 100
	}
	return t, nil
}
