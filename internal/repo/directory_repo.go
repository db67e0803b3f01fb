package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Fabrika/internal/domain"
)

// DirectoryRepo — справочник машин, операторов и назначений.
type DirectoryRepo struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepo создаёт новый DirectoryRepo.
func NewDirectoryRepo(pool *pgxpool.Pool) *DirectoryRepo {
	return &DirectoryRepo{pool: pool}
}

// CreateMachine добавляет машину в справочник.
func (r *DirectoryRepo) CreateMachine(ctx context.Context, m *domain.Machine) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO machines (id, code, name, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.Code, m.Name, m.IsActive, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert machine: %w", err)
	}
	return nil
}

// GetMachine возвращает машину по ID.
func (r *DirectoryRepo) GetMachine(ctx context.Context, id uuid.UUID) (*domain.Machine, error) {
	var m domain.Machine
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, name, is_active, created_at
		FROM machines
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Code, &m.Name, &m.IsActive, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan machine: %w", err)
	}
	return &m, nil
}

// ListMachines возвращает справочник машин.
func (r *DirectoryRepo) ListMachines(ctx context.Context) ([]domain.Machine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, name, is_active, created_at
		FROM machines
		ORDER BY code ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var machines []domain.Machine
	for rows.Next() {
		var m domain.Machine
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	return machines, rows.Err()
}

// CreateOperator добавляет оператора в справочник.
func (r *DirectoryRepo) CreateOperator(ctx context.Context, o *domain.Operator) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO operators (id, name, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, o.ID, o.Name, o.Role, o.IsActive, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert operator: %w", err)
	}
	return nil
}

// GetOperator возвращает оператора по ID.
func (r *DirectoryRepo) GetOperator(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	var o domain.Operator
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, role, is_active, created_at
		FROM operators
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.Role, &o.IsActive, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan operator: %w", err)
	}
	return &o, nil
}

// Assign назначает оператора на машину.
func (r *DirectoryRepo) Assign(ctx context.Context, operatorID, machineID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO operator_assignments (operator_id, machine_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, operatorID, machineID)
	if err != nil {
		return fmt.Errorf("assign operator: %w", err)
	}
	return nil
}

// Unassign снимает назначение.
func (r *DirectoryRepo) Unassign(ctx context.Context, operatorID, machineID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM operator_assignments
		WHERE operator_id = $1 AND machine_id = $2
	`, operatorID, machineID)
	if err != nil {
		return fmt.Errorf("unassign operator: %w", err)
	}
	return nil
}

// CanAct возвращает true, если активный оператор назначен на машину
// или имеет роль супервизора. Один запрос — проверка выполняется на
// каждом действии оператора.
func (r *DirectoryRepo) CanAct(ctx context.Context, operatorID, machineID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM operators o
			LEFT JOIN operator_assignments a
				ON a.operator_id = o.id AND a.machine_id = $2
			WHERE o.id = $1
			  AND o.is_active
			  AND (o.role = 'SUPERVISOR' OR a.operator_id IS NOT NULL)
		)
	`, operatorID, machineID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check operator access: %w", err)
	}
	return ok, nil
}

// IsSupervisor возвращает true для активного супервизора.
func (r *DirectoryRepo) IsSupervisor(ctx context.Context, operatorID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM operators
			WHERE id = $1 AND is_active AND role = 'SUPERVISOR'
		)
	`, operatorID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check supervisor role: %w", err)
	}
	return ok, nil
}
