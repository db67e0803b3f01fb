package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Fabrika/internal/domain"
)

// OrderRepo — репозиторий заказов: заказы, этапы и сводки.
//
// Заказ хранится в трёх таблицах (orders, order_steps, machine_progress),
// Get и списки собирают полное дерево. Переходы статуса заказа —
// условные записи: проигравший конкурент получает ErrInvalidState.
type OrderRepo struct {
	pool *pgxpool.Pool
}

// NewOrderRepo создаёт новый OrderRepo.
func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

const orderColumns = `id, number, status, priority, current_step_index, summary,
       actual_start_at, actual_end_at, created_at`

// Create сохраняет заказ целиком в одной транзакции.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	summaryJSON, err := marshalSummary(o.Summary)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, number, status, priority, current_step_index, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.Number, o.Status, o.Priority, o.CurrentStepIndex, summaryJSON, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for si := range o.Steps {
		step := &o.Steps[si]
		_, err = tx.Exec(ctx, `
			INSERT INTO order_steps (order_id, step_index, step_id, status)
			VALUES ($1, $2, $3, $4)
		`, o.ID, step.StepIndex, step.StepID, step.Status)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", step.StepIndex, err)
		}

		for mi := range step.Machines {
			mp := &step.Machines[mi]
			targetJSON, err := json.Marshal(mp.Target)
			if err != nil {
				return fmt.Errorf("marshal target: %w", err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO machine_progress (order_id, step_index, machine_id, sequence_order, status, target)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, o.ID, mp.StepIndex, mp.MachineID, mp.SequenceOrder, mp.Status, targetJSON)
			if err != nil {
				return fmt.Errorf("insert machine %s: %w", mp.MachineID, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// Get возвращает заказ с полным деревом этапов и машин.
func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := r.scanOrder(r.pool.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	if err := r.loadTrees(ctx, map[uuid.UUID]*domain.Order{o.ID: o}); err != nil {
		return nil, err
	}
	return o, nil
}

// List возвращает заказы по статусу без деревьев этапов.
// Пустой статус — все заказы.
func (r *OrderRepo) List(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, nullString(string(status)), limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

// ListActive возвращает заказы, в которых машины могут запускаться,
// с полными деревьями — по ним строится очередь работ машин.
func (r *OrderRepo) ListActive(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status IN ('PENDING', 'WAIT_APPROVAL', 'IN_PROGRESS')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list active orders: %w", err)
	}
	defer rows.Close()

	orders, err := r.collectOrders(rows)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}
	if err := r.loadTrees(ctx, byID); err != nil {
		return nil, err
	}
	return orders, nil
}

// MarkInProgress — условный переход PENDING | WAIT_APPROVAL → IN_PROGRESS.
// Запуск первой машины одобряет заказ неявно.
func (r *OrderRepo) MarkInProgress(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'IN_PROGRESS',
			actual_start_at = COALESCE(actual_start_at, $2)
		WHERE id = $1 AND status IN ('PENDING', 'WAIT_APPROVAL')
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark order in progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// MarkCompleted — условный переход IN_PROGRESS → COMPLETED.
func (r *OrderRepo) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'COMPLETED',
			actual_end_at = COALESCE(actual_end_at, $2)
		WHERE id = $1 AND status = 'IN_PROGRESS'
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark order completed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Approve — условный переход WAIT_APPROVAL → PENDING.
func (r *OrderRepo) Approve(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'PENDING'
		WHERE id = $1 AND status = 'WAIT_APPROVAL'
	`, id)
	if err != nil {
		return fmt.Errorf("approve order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Cancel — условный переход PENDING | WAIT_APPROVAL → CANCELLED.
func (r *OrderRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'CANCELLED'
		WHERE id = $1 AND status IN ('PENDING', 'WAIT_APPROVAL')
	`, id)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// SetStepStatus переписывает статус этапа и его временные отметки.
func (r *OrderRepo) SetStepStatus(ctx context.Context, orderID uuid.UUID, stepIndex int, status domain.StepStatus, startedAt, completedAt *time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE order_steps
		SET status = $3, started_at = $4, completed_at = $5
		WHERE order_id = $1 AND step_index = $2
	`, orderID, stepIndex, status, startedAt, completedAt)
	if err != nil {
		return fmt.Errorf("set step status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCurrentStep сдвигает индекс текущего этапа.
func (r *OrderRepo) SetCurrentStep(ctx context.Context, orderID uuid.UUID, stepIndex int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET current_step_index = $2
		WHERE id = $1
	`, orderID, stepIndex)
	if err != nil {
		return fmt.Errorf("set current step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSummary переписывает денормализованную сводку заказа.
func (r *OrderRepo) SetSummary(ctx context.Context, orderID uuid.UUID, s domain.Summary) error {
	summaryJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE orders
		SET summary = $2
		WHERE id = $1
	`, orderID, summaryJSON)
	if err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// loadTrees дочитывает этапы и машины для уже отобранных заказов.
func (r *OrderRepo) loadTrees(ctx context.Context, byID map[uuid.UUID]*domain.Order) error {
	ids := make([]uuid.UUID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	stepRows, err := r.pool.Query(ctx, `
		SELECT order_id, step_index, step_id, status, started_at, completed_at
		FROM order_steps
		WHERE order_id = ANY($1)
		ORDER BY order_id, step_index
	`, ids)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}
	defer stepRows.Close()

	for stepRows.Next() {
		var orderID uuid.UUID
		var step domain.OrderStep
		if err := stepRows.Scan(&orderID, &step.StepIndex, &step.StepID, &step.Status, &step.StartedAt, &step.CompletedAt); err != nil {
			return fmt.Errorf("scan step: %w", err)
		}
		if o := byID[orderID]; o != nil {
			o.Steps = append(o.Steps, step)
		}
	}
	if err := stepRows.Err(); err != nil {
		return err
	}

	mpRows, err := r.pool.Query(ctx, `
		SELECT order_id, step_index, machine_id, sequence_order, status, operator_id,
		       started_at, completed_at, stopped_at, table_id, target, calculated,
		       quality_status, quality_notes, reason, note
		FROM machine_progress
		WHERE order_id = ANY($1)
		ORDER BY order_id, step_index, sequence_order
	`, ids)
	if err != nil {
		return fmt.Errorf("load machines: %w", err)
	}
	defer mpRows.Close()

	for mpRows.Next() {
		mp, err := scanProgressFromRows(mpRows)
		if err != nil {
			return err
		}
		o := byID[mp.OrderID]
		if o == nil {
			continue
		}
		if step, ok := o.Step(mp.StepIndex); ok {
			step.Machines = append(step.Machines, *mp)
		}
	}
	return mpRows.Err()
}

func (r *OrderRepo) collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := r.scanOrderFromRows(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *OrderRepo) scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var summaryJSON []byte

	err := row.Scan(
		&o.ID,
		&o.Number,
		&o.Status,
		&o.Priority,
		&o.CurrentStepIndex,
		&summaryJSON,
		&o.ActualStartAt,
		&o.ActualEndAt,
		&o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := unmarshalSummary(summaryJSON, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) scanOrderFromRows(rows pgx.Rows) (*domain.Order, error) {
	var o domain.Order
	var summaryJSON []byte

	err := rows.Scan(
		&o.ID,
		&o.Number,
		&o.Status,
		&o.Priority,
		&o.CurrentStepIndex,
		&summaryJSON,
		&o.ActualStartAt,
		&o.ActualEndAt,
		&o.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := unmarshalSummary(summaryJSON, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func marshalSummary(s *domain.Summary) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	return raw, nil
}

func unmarshalSummary(raw []byte, o *domain.Order) error {
	if raw == nil {
		return nil
	}
	var s domain.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("unmarshal summary: %w", err)
	}
	o.Summary = &s
	return nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
