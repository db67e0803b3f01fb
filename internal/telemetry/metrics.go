package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики конвейера. Регистрируются в default registry и отдаются
// каждым сервисом на /metrics.
var (
	// OrdersCreated — созданные заказы.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fabrika_orders_created_total",
		Help: "Total production orders created",
	})

	// OrdersCompleted — заказы, прошедшие конвейер целиком.
	OrdersCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fabrika_orders_completed_total",
		Help: "Total production orders completed",
	})

	// MachineTransitions — переходы машин по типу (start, pause,
	// error, stop, resume, complete).
	MachineTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_machine_transitions_total",
		Help: "Machine state transitions by kind",
	}, []string{"transition"})

	// QualityVerdicts — вердикты контроля качества при завершении машин.
	QualityVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_quality_verdicts_total",
		Help: "Quality verdicts on machine completion",
	}, []string{"verdict"})

	// RowMutations — применённые и отклонённые мутации строк.
	RowMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_row_mutations_total",
		Help: "Production row mutations by op and outcome",
	}, []string{"op", "applied"})

	// EventsConsumed — сообщения из RabbitMQ по очереди и исходу
	// (ok, requeued, dropped).
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fabrika_events_consumed_total",
		Help: "Consumed broker messages by queue and outcome",
	}, []string{"queue", "outcome"})

	// StalledMachines — машины, которые watchdog нашёл застрявшими
	// на последнем обходе.
	StalledMachines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fabrika_stalled_machines",
		Help: "Machines stuck in PAUSED or ERROR beyond the threshold",
	})
)
