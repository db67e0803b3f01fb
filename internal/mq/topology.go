package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeProduction Exchange = "fabrika.production"
	ExchangeDLQ        Exchange = "fabrika.dlq"
)

// Queues — имена очередей.
const (
	QueueMachineEvents Queue = "production.machine_events"
	QueueOrderEvents   Queue = "production.order_events"
	QueueStalled       Queue = "production.stalled"
	QueueDLQProduction Queue = "dlq.production"
)

// Routing keys.
const (
	RoutingKeyMachine RoutingKey = "machine"
	RoutingKeyOrder   RoutingKey = "order"
	RoutingKeyStalled RoutingKey = "stalled"
	RoutingKeyDLQ     RoutingKey = "production"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeProduction, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// production.machine_events — с DLQ: каждый переход машины важен
		// для внешних потребителей (MES, отчётность)
		{QueueMachineEvents, dlqArgs},

		// production.order_events — события жизненного цикла заказов
		{QueueOrderEvents, nil},

		// production.stalled — сигналы watchdog о зависших машинах
		{QueueStalled, nil},

		// dlq.production — сама DLQ очередь
		{QueueDLQProduction, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueMachineEvents, RoutingKeyMachine, ExchangeProduction},
		{QueueOrderEvents, RoutingKeyOrder, ExchangeProduction},
		{QueueStalled, RoutingKeyStalled, ExchangeProduction},
		{QueueDLQProduction, RoutingKeyDLQ, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Fabrika RabbitMQ Topology:

    fabrika.production (direct)
    ├── production.machine_events [routing: machine]
    │       Consumer: watchdog, внешние системы
    │       DLQ: dlq.production
    ├── production.order_events [routing: order]
    │       Consumer: внешние системы
    └── production.stalled [routing: stalled]
            Producer: watchdog

    fabrika.dlq (direct)
    └── dlq.production [routing: production]
            Manual processing
  `
}
