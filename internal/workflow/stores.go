package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
)

// Интерфейсы хранилища. Реализация на Postgres живёт в пакете repo;
// контракт ошибок — сентинелы repo (ErrNotFound, ErrInvalidState,
// ErrAlreadyExists), Engine переводит их в свою таксономию.

// OrderStore — заказы, этапы и сводки.
type OrderStore interface {
	// Create сохраняет заказ целиком: этапы, машины, сводку.
	Create(ctx context.Context, o *domain.Order) error

	// Get возвращает заказ с полным деревом этапов и машин.
	Get(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// List возвращает заказы по статусу, отсортированные по дате создания.
	// Пустой статус — все заказы.
	List(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error)

	// ListActive возвращает заказы, в которых машины могут запускаться
	// (статусы из OrderStatus.CanStart), с полными деревьями.
	ListActive(ctx context.Context) ([]domain.Order, error)

	// MarkInProgress — условный переход PENDING | WAIT_APPROVAL → IN_PROGRESS.
	MarkInProgress(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkCompleted — условный переход IN_PROGRESS → COMPLETED.
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error

	// Approve — условный переход WAIT_APPROVAL → PENDING.
	Approve(ctx context.Context, id uuid.UUID) error

	// Cancel — условный переход PENDING | WAIT_APPROVAL → CANCELLED.
	Cancel(ctx context.Context, id uuid.UUID) error

	// SetStepStatus переписывает статус этапа и его временные отметки.
	SetStepStatus(ctx context.Context, orderID uuid.UUID, stepIndex int, status domain.StepStatus, startedAt, completedAt *time.Time) error

	// SetCurrentStep сдвигает индекс текущего этапа.
	SetCurrentStep(ctx context.Context, orderID uuid.UUID, stepIndex int) error

	// SetSummary переписывает денормализованную сводку заказа.
	SetSummary(ctx context.Context, orderID uuid.UUID, s domain.Summary) error
}

// ProgressStore — записи выполнения машин.
type ProgressStore interface {
	// Get возвращает запись машины в заказе.
	Get(ctx context.Context, orderID, machineID uuid.UUID) (*domain.MachineProgress, error)

	// Transition записывает новое состояние записи при условии, что
	// текущий статус в БД входит в from (compare-and-swap). Проигравший
	// конкурент получает repo.ErrInvalidState.
	Transition(ctx context.Context, mp *domain.MachineProgress, from ...domain.MachineStatus) error

	// SetOutput переписывает снимок агрегированного выпуска.
	SetOutput(ctx context.Context, orderID, machineID uuid.UUID, out domain.CalculatedOutput) error

	// ListStalled возвращает машины, стоящие в PAUSED или ERROR
	// дольше порога.
	ListStalled(ctx context.Context, olderThan time.Duration) ([]domain.StalledMachine, error)
}

// RowStore — производственные таблицы и строки.
type RowStore interface {
	CreateTable(ctx context.Context, t *domain.ProductionTable) error
	SetTableStatus(ctx context.Context, tableID uuid.UUID, status domain.TableStatus) error

	AddRow(ctx context.Context, r *domain.ProductionRow) error
	UpdateRow(ctx context.Context, tableID, rowID uuid.UUID, p domain.RowPayload, at time.Time) error
	DeleteRow(ctx context.Context, tableID, rowID uuid.UUID) error
	ListRows(ctx context.Context, tableID uuid.UUID) ([]domain.ProductionRow, error)

	// Totals сворачивает строки таблицы в агрегат.
	Totals(ctx context.Context, tableID uuid.UUID) (domain.TotalCalculations, error)
}

// AuditStore — журнал аудита, только накопление.
type AuditStore interface {
	Append(ctx context.Context, e *domain.AuditEntry) error
	List(ctx context.Context, orderID uuid.UUID, limit int) ([]domain.AuditEntry, error)
}

// Directory — справочник машин и операторов.
type Directory interface {
	// CanAct возвращает true, если активный оператор назначен на машину
	// или имеет роль супервизора.
	CanAct(ctx context.Context, operatorID, machineID uuid.UUID) (bool, error)

	// IsSupervisor возвращает true для активного супервизора.
	IsSupervisor(ctx context.Context, operatorID uuid.UUID) (bool, error)
}
