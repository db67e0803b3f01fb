package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeMachineStarted   MessageType = "machine.started"
	MessageTypeMachineStopped   MessageType = "machine.stopped"
	MessageTypeMachineResumed   MessageType = "machine.resumed"
	MessageTypeMachineCompleted MessageType = "machine.completed"
	MessageTypeOrderCreated     MessageType = "order.created"
	MessageTypeOrderCompleted   MessageType = "order.completed"
	MessageTypeStalled          MessageType = "production.stalled"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// MachineEventPayload — payload события перехода машины.
type MachineEventPayload struct {
	OrderID    uuid.UUID  `json:"order_id"`
	MachineID  uuid.UUID  `json:"machine_id"`
	StepIndex  int        `json:"step_index"`
	OperatorID *uuid.UUID `json:"operator_id,omitempty"`
	Status     string     `json:"status"`
	StopType   string     `json:"stop_type,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// OrderEventPayload — payload события жизненного цикла заказа.
type OrderEventPayload struct {
	OrderID uuid.UUID `json:"order_id"`
	Number  string    `json:"number"`
	Status  string    `json:"status"`
}

// StalledPayload — payload сигнала о зависшей машине.
type StalledPayload struct {
	OrderID   uuid.UUID `json:"order_id"`
	MachineID uuid.UUID `json:"machine_id"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Since     time.Time `json:"since"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishMachineEvent публикует событие перехода машины.
// Потребители: watchdog и внешние системы.
func (p *Publisher) PublishMachineEvent(ctx context.Context, msgType MessageType, payload MachineEventPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeProduction, RoutingKeyMachine, msg)
}

// PublishOrderEvent публикует событие жизненного цикла заказа.
func (p *Publisher) PublishOrderEvent(ctx context.Context, msgType MessageType, payload OrderEventPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeProduction, RoutingKeyOrder, msg)
}

// PublishStalled публикует сигнал о машине, слишком долго стоящей
// на паузе или в ошибке. Продюсер: watchdog.
func (p *Publisher) PublishStalled(ctx context.Context, payload StalledPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeStalled,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeProduction, RoutingKeyStalled, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
