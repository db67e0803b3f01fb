package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Fabrika/internal/domain"
	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/telemetry"
	"github.com/shaiso/Fabrika/internal/workflow"
)

// DefaultThreshold — порог простоя по умолчанию.
const DefaultThreshold = 4 * time.Hour

// Watchdog — монитор зависших машин.
type Watchdog struct {
	progress  workflow.ProgressStore
	audit     workflow.AuditStore
	publisher *mq.Publisher
	logger    *slog.Logger
	threshold time.Duration

	// reported — эпизоды простоя, о которых уже сообщено.
	// Ключ включает время остановки, поэтому после resume и новой
	// остановки машина будет зарепорчена снова.
	reported map[episodeKey]struct{}
}

type episodeKey struct {
	orderID   uuid.UUID
	machineID uuid.UUID
	since     int64
}

// Config — конфигурация Watchdog.
type Config struct {
	Progress  workflow.ProgressStore
	Audit     workflow.AuditStore
	Publisher *mq.Publisher // опционально
	Logger    *slog.Logger
	Threshold time.Duration // порог простоя (default: 4h)
}

// New создаёт новый Watchdog.
func New(cfg Config) *Watchdog {
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	return &Watchdog{
		progress:  cfg.Progress,
		audit:     cfg.Audit,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		threshold: threshold,
		reported:  make(map[episodeKey]struct{}),
	}
}

// Tick выполняет один проход мониторинга.
//
// 1. Находит машины в PAUSED/ERROR, стоящие дольше порога
// 2. Для каждой новой — пишет machine.stalled в журнал аудита
// 3. Публикует production.stalled в RabbitMQ
//
// Ошибки одной машины не блокируют обработку остальных.
func (w *Watchdog) Tick(ctx context.Context) error {
	stalled, err := w.progress.ListStalled(ctx, w.threshold)
	if err != nil {
		return fmt.Errorf("list stalled machines: %w", err)
	}

	telemetry.StalledMachines.Set(float64(len(stalled)))

	if len(stalled) == 0 {
		w.pruneReported(nil)
		return nil
	}

	w.logger.Debug("found stalled machines", "count", len(stalled))

	var reported int
	for i := range stalled {
		sm := &stalled[i]

		key := episodeKey{sm.OrderID, sm.MachineID, sm.Since.Unix()}
		if _, seen := w.reported[key]; seen {
			continue
		}

		if err := w.report(ctx, sm); err != nil {
			w.logger.Error("failed to report stalled machine",
				"order_id", sm.OrderID,
				"machine_id", sm.MachineID,
				"error", err,
			)
			// Продолжаем обработку остальных
			continue
		}

		w.reported[key] = struct{}{}
		reported++
	}

	w.pruneReported(stalled)

	w.logger.Info("watchdog tick completed",
		"stalled", len(stalled),
		"reported", reported,
	)

	return nil
}

// report фиксирует один эпизод простоя: запись в аудит и сигнал в MQ.
func (w *Watchdog) report(ctx context.Context, sm *domain.StalledMachine) error {
	entry := &domain.AuditEntry{
		ID:        uuid.New(),
		OrderID:   sm.OrderID,
		MachineID: &sm.MachineID,
		Action:    domain.AuditStalled,
		Reason:    sm.Reason,
		Note:      fmt.Sprintf("machine stalled in %s since %s", sm.Status, sm.Since.UTC().Format(time.RFC3339)),
		CreatedAt: time.Now(),
	}
	if err := w.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}

	w.logger.Warn("machine stalled",
		"order_id", sm.OrderID,
		"machine_id", sm.MachineID,
		"status", sm.Status,
		"since", sm.Since,
	)

	if w.publisher != nil {
		err := w.publisher.PublishStalled(ctx, mq.StalledPayload{
			OrderID:   sm.OrderID,
			MachineID: sm.MachineID,
			Status:    string(sm.Status),
			Reason:    sm.Reason,
			Since:     sm.Since,
		})
		if err != nil {
			// Не фатальная ошибка — запись в аудите уже есть
			w.logger.Warn("failed to publish production.stalled",
				"order_id", sm.OrderID,
				"machine_id", sm.MachineID,
				"error", err,
			)
		}
	}

	return nil
}

// pruneReported выбрасывает эпизоды, которых больше нет в выборке:
// машина возобновлена или заказ завершён, память не растёт бесконечно.
func (w *Watchdog) pruneReported(stalled []domain.StalledMachine) {
	if len(w.reported) == 0 {
		return
	}

	current := make(map[episodeKey]struct{}, len(stalled))
	for i := range stalled {
		sm := &stalled[i]
		current[episodeKey{sm.OrderID, sm.MachineID, sm.Since.Unix()}] = struct{}{}
	}

	for key := range w.reported {
		if _, ok := current[key]; !ok {
			delete(w.reported, key)
		}
	}
}
