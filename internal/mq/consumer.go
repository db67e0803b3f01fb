package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Fabrika/internal/telemetry"
)

// ErrDrop возвращается обработчиком, когда сообщение не подлежит
// повтору: оно уходит в DLQ вместо возврата в очередь.
var ErrDrop = errors.New("drop message")

// Handler — функция обработки сообщения. nil — ack, ErrDrop — DLQ,
// любая другая ошибка — возврат в очередь.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение с методами ack/nack.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Ack подтверждает успешную обработку сообщения.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение.
// requeue=true — вернуть в очередь, false — отправить в DLQ.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Typed оборачивает типизированный обработчик события: payload
// парсится в T, нечитаемый payload уходит в DLQ через ErrDrop.
func Typed[T any](fn func(ctx context.Context, msg *Message, payload T) error) Handler {
	return func(ctx context.Context, d *Delivery) error {
		payload, err := ParsePayload[T](&d.Message)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDrop, err)
		}
		return fn(ctx, &d.Message, payload)
	}
}

// Consumer потребляет сообщения из одной очереди RabbitMQ и
// переживает переподключения соединения.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	tag      string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Tag — имя потребителя в management UI брокера.
	// По умолчанию fabrika.<queue>.
	Tag string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество неподтверждённых сообщений в полёте.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	tag := cfg.Tag
	if tag == "" {
		tag = "fabrika." + cfg.Queue
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		tag:      tag,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start запускает цикл потребления. Блокируется до отмены контекста,
// вызывать в отдельной горутине.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	return c.run(ctx)
}

// run держит подписку живой через разрывы соединения.
func (c *Consumer) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "queue", c.queue, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
				continue
			}
		}

		c.logger.Info("consumer started", "queue", c.queue, "tag", c.tag)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("deliveries channel closed, reconnecting", "queue", c.queue)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.conn.ReconnectNotify():
				continue
			}
		}
	}
}

// subscribe выставляет prefetch и начинает потребление очереди.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		c.queue,
		c.tag,
		false, // auto-ack выключен, ack после обработчика
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	return deliveries, nil
}

// drain читает сообщения из канала до его закрытия.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}

			c.dispatch(ctx, raw)
		}
	}
}

// dispatch обрабатывает одно сообщение и решает его судьбу.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("failed to unmarshal message",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Нечитаемый конверт ретраями не лечится.
		raw.Nack(false, false)
		telemetry.EventsConsumed.WithLabelValues(c.queue, "dropped").Inc()
		return
	}

	d := &Delivery{Message: msg, Raw: raw}

	err := c.handler(ctx, d)
	switch {
	case err == nil:
		raw.Ack(false)
		telemetry.EventsConsumed.WithLabelValues(c.queue, "ok").Inc()

	case errors.Is(err, ErrDrop):
		c.logger.Error("message dropped",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		raw.Nack(false, false)
		telemetry.EventsConsumed.WithLabelValues(c.queue, "dropped").Inc()

	default:
		c.logger.Error("handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		// Возврат в очередь; исчерпанные ретраи DLQ ловит
		// на уровне топологии.
		raw.Nack(false, true)
		telemetry.EventsConsumed.WithLabelValues(c.queue, "requeued").Inc()
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload парсит payload сообщения в указанный тип.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	// Payload после transit-а — map, а не исходная структура.
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}

	if err := json.Unmarshal(payloadBytes, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
