package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/catalog"
	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/engine"
	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/telemetry"
)

// CreateOrder создаёт заказ из плана каталога.
//
// План проверяется структурно (этапы, уникальность порядка машин),
// формулы целевого выпуска вычисляются один раз — дальше пороги
// неизменны. Заказ с RequiresApproval создаётся в WAIT_APPROVAL
// и не стартует, пока его не одобрят.
func (e *Engine) CreateOrder(ctx context.Context, plan *domain.OrderPlan) (*domain.Order, error) {
	if err := catalog.ValidatePlan(plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	at := e.now()

	o := &domain.Order{
		ID:        uuid.New(),
		Number:    plan.Number,
		Status:    domain.OrderStatusPending,
		Priority:  plan.Priority,
		CreatedAt: at,
	}
	if o.Priority == "" {
		o.Priority = domain.PriorityNormal
	}
	if plan.RequiresApproval {
		o.Status = domain.OrderStatusWaitApproval
	}

	for si, sp := range plan.Steps {
		step := domain.OrderStep{
			StepIndex: si,
			StepID:    sp.StepID,
			Status:    domain.StepStatusPending,
		}
		for mi := range sp.Machines {
			mp := &sp.Machines[mi]

			target, err := catalog.ResolveTargets(mp, plan.Params)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidation, err)
			}

			step.Machines = append(step.Machines, domain.MachineProgress{
				OrderID:       o.ID,
				StepIndex:     si,
				MachineID:     mp.MachineID,
				SequenceOrder: mp.SequenceOrder,
				Status:        domain.MachineStatusPending,
				Target:        target,
			})
		}
		o.Steps = append(o.Steps, step)
	}

	summary := engine.Summarize(o, at)
	o.Summary = &summary

	if err := e.orders.Create(ctx, o); err != nil {
		return nil, storeErr(err)
	}

	telemetry.OrdersCreated.Inc()

	e.logger.Info("order created",
		"order_id", o.ID,
		"number", o.Number,
		"status", o.Status,
		"steps", len(o.Steps),
	)

	e.appendAudit(ctx, domain.AuditEntry{
		OrderID: o.ID,
		Action:  domain.AuditOrderCreated,
	})
	e.publishOrderEvent(ctx, mq.MessageTypeOrderCreated, o)

	return o, nil
}

// ApproveOrder одобряет заказ, ожидающий подтверждения.
// Доступно только супервизору.
func (e *Engine) ApproveOrder(ctx context.Context, orderID, operatorID uuid.UUID) error {
	ok, err := e.dir.IsSupervisor(ctx, operatorID)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return fmt.Errorf("%w: approval requires supervisor role", ErrForbidden)
	}

	// Предусловие здесь не перечитывается, поэтому отказ условной
	// записи — это не гонка, а неподходящий статус заказа.
	if err := e.orders.Approve(ctx, orderID); err != nil {
		return stateErr(err)
	}

	e.logger.Info("order approved", "order_id", orderID, "actor_id", operatorID)
	return nil
}

// CancelOrder отменяет заказ, на котором ещё не началась работа.
func (e *Engine) CancelOrder(ctx context.Context, orderID, operatorID uuid.UUID) error {
	ok, err := e.dir.IsSupervisor(ctx, operatorID)
	if err != nil {
		return storeErr(err)
	}
	if !ok {
		return fmt.Errorf("%w: cancellation requires supervisor role", ErrForbidden)
	}

	if err := e.orders.Cancel(ctx, orderID); err != nil {
		return stateErr(err)
	}

	e.logger.Info("order cancelled", "order_id", orderID, "actor_id", operatorID)
	return nil
}
