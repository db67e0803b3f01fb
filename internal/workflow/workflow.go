package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/engine"
	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/repo"
	"github.com/shaiso/Fabrika/internal/telemetry"
)

// Engine координирует прохождение заказов по конвейеру.
//
// Все операции читают текущее состояние, проверяют предусловия в памяти
// и фиксируют переход условной записью. Сериализация конкурентных
// запросов к одной паре (заказ, машина) — на стороне хранилища.
type Engine struct {
	orders   OrderStore
	progress ProgressStore
	rows     RowStore
	audit    AuditStore
	dir      Directory

	// publisher опционален: nil отключает события без ветвлений
	// в операциях.
	publisher *mq.Publisher

	logger *slog.Logger
	now    func() time.Time
}

// Config — конфигурация Engine.
type Config struct {
	Orders    OrderStore
	Progress  ProgressStore
	Rows      RowStore
	Audit     AuditStore
	Directory Directory

	// Publisher — события в RabbitMQ, может быть nil.
	Publisher *mq.Publisher

	Logger *slog.Logger

	// Now — источник времени, для тестов. По умолчанию time.Now.
	Now func() time.Time
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		orders:    cfg.Orders,
		progress:  cfg.Progress,
		rows:      cfg.Rows,
		audit:     cfg.Audit,
		dir:       cfg.Directory,
		publisher: cfg.Publisher,
		logger:    logger,
		now:       now,
	}
}

// storeErr переводит сентинелы хранилища в таксономию конвейера.
// ErrInvalidState из условной записи означает, что конкурент успел
// первым — для вызывающего это конфликт, а не ошибка состояния.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repo.ErrInvalidState):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

// isNotFound и isConflict проверяют сентинелы хранилища там, где
// операция обрабатывает их не как отказ.
func isNotFound(err error) bool { return errors.Is(err, repo.ErrNotFound) }
func isConflict(err error) bool { return errors.Is(err, repo.ErrInvalidState) }

// stateErr — как storeErr, но отказ условной записи трактуется как
// неподходящий статус, а не конфликт: вызывающий не перечитывал
// состояние перед операцией.
func stateErr(err error) error {
	if errors.Is(err, repo.ErrInvalidState) {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return storeErr(err)
}

// refresh пересчитывает производные данные заказа после перехода машины:
// статусы этапов, индекс текущего этапа, сводку, финализацию заказа.
//
// Вызывается с уже изменённым в памяти деревом заказа. Ошибки пересчёта
// логируются и не откатывают сам переход: производные данные сойдутся
// на следующей мутации.
func (e *Engine) refresh(ctx context.Context, o *domain.Order) {
	at := e.now()

	for i := range o.Steps {
		step := &o.Steps[i]
		derived := engine.DeriveStepStatus(step.Machines)
		if derived == step.Status {
			continue
		}

		step.Status = derived
		switch derived {
		case domain.StepStatusInProgress:
			if step.StartedAt == nil {
				step.StartedAt = &at
			}
		case domain.StepStatusCompleted:
			if step.CompletedAt == nil {
				step.CompletedAt = &at
			}
		}

		if err := e.orders.SetStepStatus(ctx, o.ID, step.StepIndex, derived, step.StartedAt, step.CompletedAt); err != nil {
			e.logger.Error("failed to persist step status",
				"order_id", o.ID,
				"step_index", step.StepIndex,
				"error", err,
			)
		}
	}

	if next := engine.NextStepIndex(o); next != o.CurrentStepIndex {
		o.CurrentStepIndex = next
		if err := e.orders.SetCurrentStep(ctx, o.ID, next); err != nil {
			e.logger.Error("failed to persist current step",
				"order_id", o.ID,
				"error", err,
			)
		}
	}

	summary := engine.Summarize(o, at)
	o.Summary = &summary
	if err := e.orders.SetSummary(ctx, o.ID, summary); err != nil {
		e.logger.Error("failed to persist order summary",
			"order_id", o.ID,
			"error", err,
		)
	}

	if o.Status == domain.OrderStatusInProgress && engine.AllStepsCompleted(o) {
		e.finalizeOrder(ctx, o, at)
	}
}

// finalizeOrder завершает заказ, когда все этапы завершены.
func (e *Engine) finalizeOrder(ctx context.Context, o *domain.Order, at time.Time) {
	if err := e.orders.MarkCompleted(ctx, o.ID, at); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			// Конкурент уже финализировал.
			return
		}
		e.logger.Error("failed to complete order", "order_id", o.ID, "error", err)
		return
	}

	o.MarkCompleted(at)
	telemetry.OrdersCompleted.Inc()

	e.logger.Info("order completed",
		"order_id", o.ID,
		"number", o.Number,
	)

	e.publishOrderEvent(ctx, mq.MessageTypeOrderCompleted, o)
}

// appendAudit добавляет запись в журнал. Отказ журнала не откатывает
// операцию: аудит — производная, а не источник истины.
func (e *Engine) appendAudit(ctx context.Context, entry domain.AuditEntry) {
	entry.ID = uuid.New()
	entry.CreatedAt = e.now()

	if err := e.audit.Append(ctx, &entry); err != nil {
		e.logger.Error("failed to append audit entry",
			"order_id", entry.OrderID,
			"action", entry.Action,
			"error", err,
		)
	}
}

// publishMachineEvent публикует событие перехода машины.
func (e *Engine) publishMachineEvent(ctx context.Context, msgType mq.MessageType, mp *domain.MachineProgress, stopType domain.StopType) {
	if e.publisher == nil {
		return
	}

	payload := mq.MachineEventPayload{
		OrderID:    mp.OrderID,
		MachineID:  mp.MachineID,
		StepIndex:  mp.StepIndex,
		OperatorID: mp.OperatorID,
		Status:     string(mp.Status),
		StopType:   string(stopType),
		Reason:     mp.Reason,
	}

	if err := e.publisher.PublishMachineEvent(ctx, msgType, payload); err != nil {
		e.logger.Error("failed to publish machine event",
			"order_id", mp.OrderID,
			"machine_id", mp.MachineID,
			"type", msgType,
			"error", err,
		)
	}
}

// publishOrderEvent публикует событие жизненного цикла заказа.
func (e *Engine) publishOrderEvent(ctx context.Context, msgType mq.MessageType, o *domain.Order) {
	if e.publisher == nil {
		return
	}

	payload := mq.OrderEventPayload{
		OrderID: o.ID,
		Number:  o.Number,
		Status:  string(o.Status),
	}

	if err := e.publisher.PublishOrderEvent(ctx, msgType, payload); err != nil {
		e.logger.Error("failed to publish order event",
			"order_id", o.ID,
			"type", msgType,
			"error", err,
		)
	}
}
