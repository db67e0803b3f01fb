package workflow

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/engine"
)

// GetOrder возвращает заказ с полным деревом этапов и машин.
func (e *Engine) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, storeErr(err)
	}
	return o, nil
}

// ListOrders возвращает заказы по статусу. Пустой статус — все.
func (e *Engine) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	orders, err := e.orders.List(ctx, status, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return orders, nil
}

// ListRows возвращает строки таблицы машины в заказе.
func (e *Engine) ListRows(ctx context.Context, orderID, machineID uuid.UUID) ([]domain.ProductionRow, error) {
	mp, err := e.progress.Get(ctx, orderID, machineID)
	if err != nil {
		return nil, storeErr(err)
	}
	if mp.TableID == nil {
		return nil, nil
	}

	rows, err := e.rows.ListRows(ctx, *mp.TableID)
	if err != nil {
		return nil, storeErr(err)
	}
	return rows, nil
}

// ListAudit возвращает журнал аудита заказа, новые записи первыми.
func (e *Engine) ListAudit(ctx context.Context, orderID uuid.UUID, limit int) ([]domain.AuditEntry, error) {
	entries, err := e.audit.List(ctx, orderID, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	return entries, nil
}

// PendingWork — машина, готовая к запуску, в очереди конкретного поста.
type PendingWork struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	Priority      domain.Priority     `json:"priority"`
	StepIndex     int                 `json:"step_index"`
	SequenceOrder int                 `json:"sequence_order"`
	Target        domain.TargetOutput `json:"target"`
	CreatedAt     time.Time           `json:"created_at"`
}

// GetPendingForMachine возвращает очередь работ для машины: заказы, в
// которых машина в PENDING и все её предшественники по конвейеру
// завершены. Сортировка — приоритет заказа, при равенстве более старый
// заказ первым.
func (e *Engine) GetPendingForMachine(ctx context.Context, machineID uuid.UUID) ([]PendingWork, error) {
	orders, err := e.orders.ListActive(ctx)
	if err != nil {
		return nil, storeErr(err)
	}

	var work []PendingWork
	for i := range orders {
		o := &orders[i]
		if o.Status == domain.OrderStatusWaitApproval {
			continue
		}

		stepIndex, mp, ok := o.FindMachine(machineID)
		if !ok || mp.Status != domain.MachineStatusPending {
			continue
		}
		if !engine.CanStart(o, stepIndex, machineID) {
			continue
		}

		work = append(work, PendingWork{
			OrderID:       o.ID,
			OrderNumber:   o.Number,
			Priority:      o.Priority,
			StepIndex:     stepIndex,
			SequenceOrder: mp.SequenceOrder,
			Target:        mp.Target,
			CreatedAt:     o.CreatedAt,
		})
	}

	sort.SliceStable(work, func(i, j int) bool {
		if work[i].Priority.Rank() != work[j].Priority.Rank() {
			return work[i].Priority.Rank() < work[j].Priority.Rank()
		}
		return work[i].CreatedAt.Before(work[j].CreatedAt)
	})

	return work, nil
}
