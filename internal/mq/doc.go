// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - machine.started / machine.stopped / machine.resumed / machine.completed
//     — переходы машины внутри заказа
//   - order.created / order.completed — жизненный цикл заказа
//   - production.stalled — машина слишком долго стоит на паузе или в ошибке
//
// Exchanges:
//   - fabrika.production — события производства
//   - fabrika.dlq        — dead letter queue
package mq
