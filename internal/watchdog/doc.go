// Package watchdog реализует мониторинг зависших машин.
//
// Watchdog периодически проверяет записи machine_progress, которые
// слишком долго стоят в PAUSED или ERROR, фиксирует их в журнале
// аудита и публикует сигнал production.stalled в RabbitMQ.
//
// Использование:
//
//	wd := watchdog.New(watchdog.Config{
//	    Progress:  progressRepo,
//	    Audit:     auditRepo,
//	    Publisher: publisher,  // опционально
//	    Logger:    logger,
//	    Threshold: 4 * time.Hour,
//	})
//
//	// Вызывается по расписанию (обычно раз в несколько минут)
//	if err := wd.Tick(ctx); err != nil {
//	    logger.Error("watchdog tick failed", "error", err)
//	}
//
// Watchdog ничего не меняет в состоянии конвейера: решение о том,
// что делать с зависшей машиной, остаётся за оператором.
package watchdog
