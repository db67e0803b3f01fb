// Fabrika Watchdog — фоновый демон конвейера.
//
// Watchdog:
//   - По cron-расписанию ищет машины, застрявшие в PAUSED/ERROR
//   - Пишет эпизоды простоя в журнал аудита и публикует production.stalled
//   - Потребляет события машин и заказов из RabbitMQ для сквозного лога
//
// Лидерство между репликами решается через pg_try_advisory_lock:
// Tick выполняет только лидер, consumers работают на каждой реплике.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Fabrika/internal/mq"
	"github.com/shaiso/Fabrika/internal/repo"
	"github.com/shaiso/Fabrika/internal/telemetry"
	"github.com/shaiso/Fabrika/internal/watchdog"
)

const watchdogLockKey int64 = 515151

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting fabrika-watchdog")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	progressRepo := repo.NewProgressRepo(pool)
	auditRepo := repo.NewAuditRepo(pool)

	// RabbitMQ — опционален, без него работает только аудит
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqConn, err = mq.NewConnection(mq.DefaultURL(), "fabrika-watchdog", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running without events", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	threshold := watchdog.DefaultThreshold
	if v := os.Getenv("WATCHDOG_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid WATCHDOG_THRESHOLD", "value", v, "error", err)
			os.Exit(1)
		}
		threshold = d
	}

	cronExpr := watchdog.DefaultCronExpr
	if v := os.Getenv("WATCHDOG_CRON"); v != "" {
		cronExpr = v
	}
	schedule, err := watchdog.ParseSchedule(cronExpr)
	if err != nil {
		logger.Error("invalid WATCHDOG_CRON", "value", cronExpr, "error", err)
		os.Exit(1)
	}

	wd := watchdog.New(watchdog.Config{
		Progress:  progressRepo,
		Audit:     auditRepo,
		Publisher: publisher,
		Logger:    logger,
		Threshold: threshold,
	})

	// watchdog loop: тик по cron-расписанию, только на лидере
	go func() {
		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", watchdogLockKey)
			}
		}()

		for {
			next := watchdog.NextTick(schedule, time.Now())
			timer := time.NewTimer(time.Until(next))

			select {
			case <-timer.C:
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", watchdogLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock failed", "error", err)
						continue
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := wd.Tick(ctx); err != nil {
					logger.Error("watchdog tick failed", "error", err)
				}

			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
	}()

	// consumers: сквозной лог событий конвейера
	if mqConn != nil {
		startEventConsumers(ctx, mqConn, logger)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if mqConn != nil && !mqConn.IsConnected() {
			w.Write([]byte("ok; amqp disconnected"))
			return
		}
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8083"
	if v := os.Getenv("WATCHDOG_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("fabrika-watchdog stopped")
}

// startEventConsumers подписывает демона на события машин и заказов.
// Обработка — журналирование: события уже записаны в БД их источником.
func startEventConsumers(ctx context.Context, conn *mq.Connection, logger *slog.Logger) {
	machineConsumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
		Queue: string(mq.QueueMachineEvents),
		Handler: mq.Typed(func(_ context.Context, msg *mq.Message, p mq.MachineEventPayload) error {
			logger.Info("machine event",
				"type", msg.Type,
				"order_id", p.OrderID,
				"machine_id", p.MachineID,
				"status", p.Status,
			)
			return nil
		}),
	})

	orderConsumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
		Queue: string(mq.QueueOrderEvents),
		Handler: mq.Typed(func(_ context.Context, msg *mq.Message, p mq.OrderEventPayload) error {
			logger.Info("order event",
				"type", msg.Type,
				"order_id", p.OrderID,
				"number", p.Number,
				"status", p.Status,
			)
			return nil
		}),
	})

	// Start блокируется до отмены контекста.
	go func() {
		if err := machineConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("machine events consumer stopped", "error", err)
		}
	}()
	go func() {
		if err := orderConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("order events consumer stopped", "error", err)
		}
	}()
}
