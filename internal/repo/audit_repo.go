package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Fabrika/internal/domain"
)

// AuditRepo — журнал аудита, только накопление.
type AuditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo создаёт новый AuditRepo.
func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append добавляет запись в журнал.
func (r *AuditRepo) Append(ctx context.Context, e *domain.AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_log (id, order_id, machine_id, actor_id, action, stop_type, reason, note, planned_resume_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		e.ID,
		e.OrderID,
		e.MachineID,
		e.ActorID,
		e.Action,
		nullString(string(e.StopType)),
		nullString(e.Reason),
		nullString(e.Note),
		e.PlannedResumeAt,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List возвращает журнал заказа, новые записи первыми.
func (r *AuditRepo) List(ctx context.Context, orderID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, machine_id, actor_id, action, stop_type, reason, note, planned_resume_at, created_at
		FROM audit_log
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var stopType, reason, note *string
		err := rows.Scan(
			&e.ID,
			&e.OrderID,
			&e.MachineID,
			&e.ActorID,
			&e.Action,
			&stopType,
			&reason,
			&note,
			&e.PlannedResumeAt,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if stopType != nil {
			e.StopType = domain.StopType(*stopType)
		}
		if reason != nil {
			e.Reason = *reason
		}
		if note != nil {
			e.Note = *note
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
