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

// ProgressRepo — репозиторий записей выполнения машин.
//
// Ключ записи — пара (order_id, machine_id). Все переходы статуса
// выполняются условной записью по текущему статусу: конкурентные
// запросы к одной машине сериализуются на уровне БД, проигравший
// получает ErrInvalidState.
type ProgressRepo struct {
	pool *pgxpool.Pool
}

// NewProgressRepo создаёт новый ProgressRepo.
func NewProgressRepo(pool *pgxpool.Pool) *ProgressRepo {
	return &ProgressRepo{pool: pool}
}

const progressColumns = `order_id, step_index, machine_id, sequence_order, status, operator_id,
       started_at, completed_at, stopped_at, table_id, target, calculated,
       quality_status, quality_notes, reason, note`

// Get возвращает запись машины в заказе.
func (r *ProgressRepo) Get(ctx context.Context, orderID, machineID uuid.UUID) (*domain.MachineProgress, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+progressColumns+`
		FROM machine_progress
		WHERE order_id = $1 AND machine_id = $2
	`, orderID, machineID)

	mp, err := scanProgress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return mp, err
}

// Transition записывает новое состояние записи при условии, что текущий
// статус в БД входит в from (compare-and-swap).
func (r *ProgressRepo) Transition(ctx context.Context, mp *domain.MachineProgress, from ...domain.MachineStatus) error {
	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	calcJSON, err := marshalCalculated(mp.Calculated)
	if err != nil {
		return err
	}
	notesJSON, err := marshalNotes(mp.QualityNotes)
	if err != nil {
		return err
	}
	targetJSON, err := json.Marshal(mp.Target)
	if err != nil {
		return fmt.Errorf("marshal target: %w", err)
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE machine_progress
		SET status = $3,
			operator_id = $4,
			started_at = $5,
			completed_at = $6,
			stopped_at = $7,
			table_id = $8,
			target = $9,
			calculated = $10,
			quality_status = $11,
			quality_notes = $12,
			reason = $13,
			note = $14
		WHERE order_id = $1 AND machine_id = $2 AND status = ANY($15)
	`,
		mp.OrderID,
		mp.MachineID,
		mp.Status,
		mp.OperatorID,
		mp.StartedAt,
		mp.CompletedAt,
		mp.StoppedAt,
		mp.TableID,
		targetJSON,
		calcJSON,
		nullString(string(mp.QualityStatus)),
		notesJSON,
		nullString(mp.Reason),
		nullString(mp.Note),
		statuses,
	)
	if err != nil {
		return fmt.Errorf("transition machine %s: %w", mp.MachineID, err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// SetOutput переписывает снимок агрегированного выпуска.
// Финальный снимок завершённой машины не трогается.
func (r *ProgressRepo) SetOutput(ctx context.Context, orderID, machineID uuid.UUID, out domain.CalculatedOutput) error {
	calcJSON, err := marshalCalculated(&out)
	if err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE machine_progress
		SET calculated = $3
		WHERE order_id = $1 AND machine_id = $2 AND status <> 'COMPLETED'
	`, orderID, machineID, calcJSON)
	if err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// ListStalled возвращает машины, стоящие в PAUSED или ERROR дольше порога.
func (r *ProgressRepo) ListStalled(ctx context.Context, olderThan time.Duration) ([]domain.StalledMachine, error) {
	cutoff := time.Now().Add(-olderThan)

	rows, err := r.pool.Query(ctx, `
		SELECT order_id, machine_id, status, reason, stopped_at
		FROM machine_progress
		WHERE status IN ('PAUSED', 'ERROR') AND stopped_at <= $1
		ORDER BY stopped_at ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stalled: %w", err)
	}
	defer rows.Close()

	var stalled []domain.StalledMachine
	for rows.Next() {
		var sm domain.StalledMachine
		var reason *string
		if err := rows.Scan(&sm.OrderID, &sm.MachineID, &sm.Status, &reason, &sm.Since); err != nil {
			return nil, fmt.Errorf("scan stalled: %w", err)
		}
		if reason != nil {
			sm.Reason = *reason
		}
		stalled = append(stalled, sm)
	}
	return stalled, rows.Err()
}

// --- Helpers ---

func scanProgress(row pgx.Row) (*domain.MachineProgress, error) {
	return scanProgressInto(row.Scan)
}

func scanProgressFromRows(rows pgx.Rows) (*domain.MachineProgress, error) {
	return scanProgressInto(rows.Scan)
}

func scanProgressInto(scan func(...any) error) (*domain.MachineProgress, error) {
	var mp domain.MachineProgress
	var targetJSON, calcJSON, notesJSON []byte
	var qualityStatus, reason, note *string

	err := scan(
		&mp.OrderID,
		&mp.StepIndex,
		&mp.MachineID,
		&mp.SequenceOrder,
		&mp.Status,
		&mp.OperatorID,
		&mp.StartedAt,
		&mp.CompletedAt,
		&mp.StoppedAt,
		&mp.TableID,
		&targetJSON,
		&calcJSON,
		&qualityStatus,
		&notesJSON,
		&reason,
		&note,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan machine progress: %w", err)
	}

	if targetJSON != nil {
		if err := json.Unmarshal(targetJSON, &mp.Target); err != nil {
			return nil, fmt.Errorf("unmarshal target: %w", err)
		}
	}
	if calcJSON != nil {
		var out domain.CalculatedOutput
		if err := json.Unmarshal(calcJSON, &out); err != nil {
			return nil, fmt.Errorf("unmarshal calculated: %w", err)
		}
		mp.Calculated = &out
	}
	if notesJSON != nil {
		if err := json.Unmarshal(notesJSON, &mp.QualityNotes); err != nil {
			return nil, fmt.Errorf("unmarshal quality notes: %w", err)
		}
	}
	if qualityStatus != nil {
		mp.QualityStatus = domain.QualityStatus(*qualityStatus)
	}
	if reason != nil {
		mp.Reason = *reason
	}
	if note != nil {
		mp.Note = *note
	}

	return &mp, nil
}

func marshalCalculated(out *domain.CalculatedOutput) ([]byte, error) {
	if out == nil {
		return nil, nil
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal calculated: %w", err)
	}
	return raw, nil
}

func marshalNotes(notes []string) ([]byte, error) {
	if len(notes) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(notes)
	if err != nil {
		return nil, fmt.Errorf("marshal quality notes: %w", err)
	}
	return raw, nil
}
